// Package encode drives one external encoder invocation per clip with a
// bounded retry policy: a fast (optionally hardware-accelerated) first
// attempt, then exactly one conservative CPU retry with an audio
// resample fallback. Attempt execution and output validation are
// separate phases so both are independently testable.
package encode

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/backmassage/clipforge/internal/config"
	"github.com/backmassage/clipforge/internal/logging"
	"github.com/backmassage/clipforge/internal/plan"
	"github.com/backmassage/clipforge/internal/probe"
	"github.com/backmassage/clipforge/internal/quality"
)

const maxAttempts = 2

var errNoAudio = errors.New("no audio stream in output")

// runFunc executes one encoder invocation and returns captured stderr.
type runFunc func(ctx context.Context, args []string) (stderr string, err error)

// validateFunc checks a finished output file (existence, size, audio
// stream presence).
type validateFunc func(path string) error

// Executor encodes clips one at a time. A single instance serves the
// whole batch; it holds the capability and timeout settings resolved at
// orchestrator construction.
type Executor struct {
	hwEncoder string // resolved hardware encoder name, "" for CPU-only
	timeout   time.Duration
	log       *logging.Logger
	verbose   bool

	run      runFunc
	validate validateFunc
}

// NewExecutor builds the production executor. hwEncoder is the hardware
// capability value probed once at startup ("" disables the accelerated
// first attempt).
func NewExecutor(cfg *config.Config, log *logging.Logger, hwEncoder string) *Executor {
	return &Executor{
		hwEncoder: hwEncoder,
		timeout:   cfg.ClipTimeout,
		log:       log,
		verbose:   cfg.Verbose,
		run:       runFFmpeg,
		validate:  ValidateOutput,
	}
}

// Encode runs the encoder for one clip. The first attempt uses the
// hardware encoder when available; a failed attempt (including a timeout
// or an output with no audio stream) is retried exactly once with the
// conservative CPU configuration. A second failure is terminal for the
// clip only. Partial output files are removed before returning.
func (e *Executor) Encode(ctx context.Context, clip plan.ClipSpec, preset quality.Preset, outputPath string) Result {
	res := Result{Clip: clip, OutputPath: outputPath}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt

		opts := AttemptOptions{}
		if attempt == 1 {
			opts.HWEncoder = e.hwEncoder
		} else {
			opts.AudioFallback = true
		}
		args := BuildArgs(clip, preset, outputPath, opts)

		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		stderr, err := e.run(runCtx, args)
		timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			err = e.validate(outputPath)
		}
		if err == nil {
			if fi, statErr := os.Stat(outputPath); statErr == nil {
				res.OutputSize = fi.Size()
			}
			res.Outcome = OutcomeSuccess
			return res
		}

		// Never leave a partial file behind a failed attempt.
		os.Remove(outputPath)

		switch {
		case timedOut:
			res.FailureReason = "encode timeout after " + e.timeout.String()
		case errors.Is(err, errNoAudio):
			res.FailureReason = errNoAudio.Error()
		default:
			res.FailureReason = err.Error()
			if tail := stderrTail(stderr); tail != "" {
				res.FailureReason += ": " + tail
			}
		}

		if ctx.Err() != nil && !timedOut {
			// Interrupted mid-encode: no retry, caller leaves the clip pending.
			res.Outcome = OutcomeFailed
			res.FailureReason = "interrupted"
			res.Interrupted = true
			return res
		}

		if attempt < maxAttempts {
			e.log.Warn("  Clip %03d attempt %d failed (%s), retrying with audio fallback",
				clip.Index+1, attempt, res.FailureReason)
		}
	}

	res.Outcome = OutcomeFailed
	return res
}

// runFFmpeg is the production runFunc: execute ffmpeg under the attempt
// context and capture stderr for failure diagnostics.
func runFFmpeg(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return stderrBuf.String(), err
}

// ValidateOutput is the production validateFunc: the file must exist,
// be non-empty, and contain an audio stream (the dropout the retry
// policy exists for). The orchestrator uses the same check to decide
// whether an existing clip can be counted as done.
func ValidateOutput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "output missing")
	}
	if fi.Size() == 0 {
		return errors.New("output is empty")
	}

	raw, err := ffmpeg.ProbeWithTimeout(path, 30*time.Second, nil)
	if err != nil {
		return errors.Wrap(err, "probe output")
	}
	res, err := probe.ParseJSON([]byte(raw))
	if err != nil {
		return err
	}
	if !res.HasAudioStream() {
		return errNoAudio
	}
	return nil
}

// stderrTail keeps the last few hundred bytes of encoder output for the
// failure reason; full logs stay on the encoder side.
func stderrTail(s string) string {
	const max = 400
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
