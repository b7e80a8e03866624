// Package check provides system diagnostics (the check subcommand) and
// pre-batch dependency validation for ffmpeg, ffprobe, the AAC encoder,
// and hardware H.264 acceleration.
package check

import (
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/backmassage/clipforge/internal/config"
)

// Sentinel errors returned by CheckDeps when a required tool is missing.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found on PATH")
	ErrFfprobeNotFound = errors.New("ffprobe not found on PATH")
)

// Hardware H.264 encoders probed in preference order.
var hwEncoders = []string{
	"h264_videotoolbox",
	"h264_nvenc",
	"h264_vaapi",
	"h264_qsv",
}

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// CheckDeps verifies ffmpeg and ffprobe are available before the batch
// starts; fails fast otherwise.
func CheckDeps() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return ErrFfmpegNotFound
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return ErrFfprobeNotFound
	}
	return nil
}

// DetectHWEncoder resolves the hardware capability value once, at
// orchestrator construction, and returns the encoder name to use for the
// accelerated first attempt ("" means CPU only). The chosen encoder must
// both be listed by ffmpeg and pass a short test encode.
func DetectHWEncoder(mode config.GPUMode, log Logger) string {
	if mode == config.GPUOff {
		return ""
	}

	listed := listedEncoders()
	for _, enc := range hwEncoders {
		if !listed[enc] {
			continue
		}
		if testEncode(enc) {
			log.Info("Hardware encoder: %s", enc)
			return enc
		}
	}

	if mode == config.GPUOn {
		log.Warn("No usable hardware H.264 encoder found; falling back to libx264")
	}
	return ""
}

// RunCheck runs the interactive diagnostics flow: availability of ffmpeg
// and ffprobe, H.264 encoder inventory, hardware test encodes, and the
// AAC encoder. Informational only; returns false when a hard dependency
// is missing.
func RunCheck(log Logger) bool {
	log.Info("=== System Check ===")

	ok := checkFfmpeg(log)
	ok = checkFfprobe(log) && ok
	checkH264Encoders(log)
	checkHardware(log)
	checkAAC(log)
	return ok
}

// checkFfmpeg verifies ffmpeg is on PATH and logs its version string.
func checkFfmpeg(log Logger) bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Error("ffmpeg not found")
		return false
	}
	cmd := exec.Command("ffmpeg", "-version")
	out, err := cmd.Output()
	if err != nil {
		log.Warn("ffmpeg found but -version failed: %v", err)
		return true
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	log.Success("ffmpeg: %s", firstLine)
	return true
}

func checkFfprobe(log Logger) bool {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		log.Error("ffprobe not found")
		return false
	}
	log.Success("ffprobe: found")
	return true
}

// checkH264Encoders lists all H.264 encoders reported by ffmpeg.
func checkH264Encoders(log Logger) {
	log.Info("H.264 encoders:")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "h264") || strings.Contains(lower, "x264") {
			log.Info("  %s", strings.TrimSpace(line))
		}
	}
}

// checkHardware runs a minimal test encode on each candidate hardware encoder.
func checkHardware(log Logger) {
	listed := listedEncoders()
	found := false
	for _, enc := range hwEncoders {
		if !listed[enc] {
			continue
		}
		log.Info("Testing %s...", enc)
		if testEncode(enc) {
			log.Success("%s works", enc)
			found = true
		} else {
			log.Warn("%s listed but test encode failed", enc)
		}
	}
	if !found {
		log.Info("No hardware H.264 encoder usable; clips will encode on CPU")
	}
}

// checkAAC runs a minimal AAC encode to verify the audio encoder works.
func checkAAC(log Logger) {
	log.Info("Testing AAC encoder...")
	if runSilent("ffmpeg",
		"-hide_banner", "-nostdin",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1",
		"-c:a", "aac", "-f", "null", "-",
	) {
		log.Success("AAC encoder works")
	} else {
		log.Error("AAC test encode failed")
	}
}

// listedEncoders parses `ffmpeg -encoders` into a presence set.
func listedEncoders() map[string]bool {
	set := make(map[string]bool)
	cmd := exec.Command("ffmpeg", "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return set
	}
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			set[fields[1]] = true
		}
	}
	return set
}

// testEncode runs a tiny synthetic encode through enc.
func testEncode(enc string) bool {
	return runSilent("ffmpeg",
		"-hide_banner", "-nostdin",
		"-f", "lavfi", "-i", "color=c=black:s=320x240:d=0.2",
		"-c:v", enc,
		"-f", "null", "-",
	)
}

func runSilent(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	return cmd.Run() == nil
}
