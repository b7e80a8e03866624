// Package config holds runtime configuration: defaults, validation, and
// the enum types shared across the pipeline. The Config is populated once
// from CLI flags, validated at batch start, and treated as immutable
// afterwards.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/backmassage/clipforge/internal/quality"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// GPUMode controls use of a hardware H.264 encoder for the first encode
// attempt of each clip.
type GPUMode string

const (
	GPUAuto GPUMode = "auto" // Probe for a hardware encoder at startup (default).
	GPUOn   GPUMode = "on"   // Require a hardware encoder; warn and fall back if absent.
	GPUOff  GPUMode = "off"  // CPU encoding only.
)

// Config holds all runtime settings. It is populated by [DefaultConfig]
// and then mutated by the CLI layer before being passed (by pointer) to
// packages that need it. Fields are grouped by concern with inline
// documentation of defaults.
type Config struct {
	// Paths.
	InputPath string // Single video file or a directory of videos.
	OutputDir string

	// Segmentation.
	ClipDuration     float64 // Seconds per clip. Default: 30.
	MinTrailing      float64 // Trailing remainder at or below this merges into the previous clip. Default: 1.
	SceneDetection   bool    // Use scene boundaries instead of the fixed interval.
	MinSceneDuration float64 // Minimum scene length in seconds. Default: 10.
	SceneThreshold   float64 // Frame-difference score declaring a cut. Default: 0.3.
	DropShortTail    bool    // Drop an undersized trailing scene clip instead of merging it.

	// Encoding.
	Quality     string        // Preset name. Default: "youtube_hd".
	GPU         GPUMode       // Default: "auto".
	ClipTimeout time.Duration // Per-clip encoder subprocess bound. Default: 10m.

	// Naming.
	NamingPattern string // Default: "{name}_clip_{num:03d}".
	ProjectName   string // Auto-generated from source name + timestamp when empty.

	// Batch behavior.
	BatchMode    bool // Process every video in InputPath (a directory).
	Resume       bool // Resume from an existing checkpoint.
	DryRun       bool
	SkipExisting bool // Count a clip with a valid existing output as done.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
}

// DefaultConfig returns a Config with all documented defaults. Used as
// the base before the CLI applies overrides.
func DefaultConfig() Config {
	return Config{
		ClipDuration:     30,
		MinTrailing:      1,
		SceneDetection:   false,
		MinSceneDuration: 10,
		SceneThreshold:   0.3,
		Quality:          "youtube_hd",
		GPU:              GPUAuto,
		ClipTimeout:      10 * time.Minute,
		NamingPattern:    "{name}_clip_{num:03d}",
		ColorMode:        ColorAuto,
	}
}

// Validate checks enum fields and numeric ranges, and requires input and
// output paths. Called once before the batch starts; any error here is
// fatal to the run.
func (c *Config) Validate() error {
	if c.InputPath == "" || c.OutputDir == "" {
		return errors.New("need both an input path and an output directory")
	}

	if c.ClipDuration <= 0 {
		return errors.New("clip duration must be positive")
	}
	if c.MinTrailing < 0 {
		return errors.New("minimum trailing length must not be negative")
	}
	if c.SceneDetection {
		if c.MinSceneDuration <= 0 {
			return errors.New("minimum scene duration must be positive")
		}
		if c.SceneThreshold <= 0 || c.SceneThreshold >= 1 {
			return errors.New("scene threshold must be in (0, 1)")
		}
	}
	if c.ClipTimeout <= 0 {
		return errors.New("clip timeout must be positive")
	}

	if _, ok := quality.Lookup(c.Quality); !ok {
		return errors.Errorf("unknown quality preset %q (use %s)",
			c.Quality, strings.Join(quality.Names(), "|"))
	}

	switch c.GPU {
	case GPUAuto, GPUOn, GPUOff:
	default:
		return errors.New("invalid gpu mode (use 'auto', 'on' or 'off')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}
	return nil
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an
// empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// ValidatePaths ensures the resolved output directory is not inside (or
// equal to) the resolved input directory, which would make the batch
// discover its own clips. Both arguments must be absolute,
// symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}
