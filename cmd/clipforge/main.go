// Command clipforge is the entrypoint for the clipforge batch video
// splitter. It parses flags into config, validates paths and
// dependencies, and runs the checkpointed split pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmassage/clipforge/internal/batch"
	"github.com/backmassage/clipforge/internal/check"
	"github.com/backmassage/clipforge/internal/config"
	"github.com/backmassage/clipforge/internal/display"
	"github.com/backmassage/clipforge/internal/logging"
)

// version and commit are set at build time via -ldflags (e.g. Makefile).
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	cfg := config.DefaultConfig()
	var clipTimeoutSec int
	var gpu, colorMode string

	rootCmd := &cobra.Command{
		Use:           "clipforge",
		Short:         "Split videos into clips for editing and publishing",
		Long:          "clipforge splits one video or a directory of videos into fixed-interval\nor scene-aligned clips, re-encoded for the chosen target, with resumable\nbatch progress and editor project export.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	splitCmd := &cobra.Command{
		Use:   "split",
		Short: "Split videos into encoded clips",
		Long: `Split a video file (or every video under a directory with --batch) into
clips. Progress is checkpointed after every clip; rerun with --resume to
continue an interrupted batch.

Examples:
  clipforge split -i talk.mp4 -o ./out --duration 60
  clipforge split -i ./recordings -o ./out --batch --scene-detect
  clipforge split -i ./recordings -o ./out --batch --resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ClipTimeout = time.Duration(clipTimeoutSec) * time.Second
			cfg.GPU = config.GPUMode(gpu)
			cfg.ColorMode = config.ColorMode(colorMode)
			return runSplit(&cfg)
		},
	}

	f := splitCmd.Flags()
	f.StringVarP(&cfg.InputPath, "input", "i", "", "input video file or directory (required)")
	f.StringVarP(&cfg.OutputDir, "output", "o", "", "output directory (required)")
	f.Float64VarP(&cfg.ClipDuration, "duration", "d", cfg.ClipDuration, "clip length in seconds")
	f.Float64Var(&cfg.MinTrailing, "min-trailing", cfg.MinTrailing, "trailing remainder at or below this merges into the last clip")
	f.BoolVar(&cfg.SceneDetection, "scene-detect", false, "split at detected scene changes instead of fixed intervals")
	f.Float64Var(&cfg.MinSceneDuration, "min-scene", cfg.MinSceneDuration, "minimum scene clip length in seconds")
	f.Float64Var(&cfg.SceneThreshold, "scene-threshold", cfg.SceneThreshold, "scene change score threshold (0..1)")
	f.BoolVar(&cfg.DropShortTail, "drop-short-tail", false, "drop an undersized trailing scene clip instead of merging it")
	f.StringVarP(&cfg.Quality, "quality", "q", cfg.Quality, "quality preset: youtube_sd|youtube_hd|youtube_4k|original")
	f.StringVar(&gpu, "gpu", string(cfg.GPU), "hardware encoding: auto|on|off")
	f.IntVar(&clipTimeoutSec, "clip-timeout", int(cfg.ClipTimeout.Seconds()), "per-clip encode timeout in seconds")
	f.StringVar(&cfg.NamingPattern, "pattern", cfg.NamingPattern, "clip filename pattern")
	f.StringVarP(&cfg.ProjectName, "project", "p", "", "project name (default: derived from source name)")
	f.BoolVarP(&cfg.BatchMode, "batch", "b", false, "process every video under the input directory")
	f.BoolVarP(&cfg.Resume, "resume", "r", false, "resume from the checkpoint in the output directory")
	f.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "plan and report without encoding")
	f.BoolVar(&cfg.SkipExisting, "skip-existing", false, "count clips with valid existing output as done")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose logging")
	f.StringVar(&colorMode, "color", string(cfg.ColorMode), "color output: auto|always|never")
	f.StringVar(&cfg.LogFile, "log-file", "", "append log output to this file")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check ffmpeg, encoders, and hardware acceleration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ColorMode = config.ColorMode(colorMode)
			log, err := logging.NewLogger(&cfg)
			if err != nil {
				return err
			}
			defer log.Close()
			display.PrintBanner()
			if !check.RunCheck(log) {
				os.Exit(1)
			}
			return nil
		},
	}
	checkCmd.Flags().StringVar(&colorMode, "color", string(cfg.ColorMode), "color output: auto|always|never")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clipforge v%s (%s)\n", version, commit)
		},
	}

	rootCmd.AddCommand(splitCmd, checkCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "clipforge: %v\n", err)
		os.Exit(1)
	}
}

// runSplit is the split subcommand body: validate → logger → paths →
// dependency check → hardware probe → batch run. A batch with clip or
// video failures still exits 0; only setup errors and a fully failed run
// are non-zero.
func runSplit(cfg *config.Config) error {
	cfg.InputPath = config.NormalizeDirArg(cfg.InputPath)
	cfg.OutputDir = config.NormalizeDirArg(cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner()

	inputAbs, err := absPath(cfg.InputPath)
	if err != nil {
		log.Error("Input not found: %s", cfg.InputPath)
		os.Exit(1)
	}
	if fi, err := os.Stat(inputAbs); err == nil && fi.IsDir() && !cfg.BatchMode {
		log.Error("Input is a directory; pass --batch to process every video in it")
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Error("Cannot create output directory: %s", cfg.OutputDir)
		os.Exit(1)
	}
	outputAbs, err := absPath(cfg.OutputDir)
	if err != nil {
		log.Error("Cannot resolve output path: %s", cfg.OutputDir)
		os.Exit(1)
	}
	if err := cfg.ValidatePaths(inputAbs, outputAbs); err != nil {
		log.Error("%v", err)
		log.Error("Choose an output path outside: %s", cfg.InputPath)
		os.Exit(1)
	}

	log.Info("=== clipforge v%s ===", version)
	log.Info("In:  %s", cfg.InputPath)
	log.Info("Out: %s", cfg.OutputDir)
	if cfg.DryRun {
		log.Warn("DRY RUN")
	}
	log.Info("")

	if err := check.CheckDeps(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	var hwEncoder string
	if !cfg.DryRun {
		hwEncoder = check.DetectHWEncoder(cfg.GPU, log)
	}

	// SIGINT/SIGTERM cancel the run context; the orchestrator saves the
	// checkpoint between clips so an interrupt loses at most one clip.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := batch.NewOrchestrator(cfg, log, hwEncoder)
	stats, err := orch.Run(ctx)
	if err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	if stats.Interrupted {
		os.Exit(130)
	}
	if stats.VideosDone == 0 && stats.VideosSkipped == 0 && stats.VideosFailed > 0 {
		os.Exit(1)
	}
	return nil
}

// absPath returns the absolute path with symlinks resolved, for comparing
// input vs output hierarchy.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
