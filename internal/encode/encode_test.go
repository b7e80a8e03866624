package encode

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/backmassage/clipforge/internal/config"
	"github.com/backmassage/clipforge/internal/logging"
	"github.com/backmassage/clipforge/internal/plan"
	"github.com/backmassage/clipforge/internal/quality"
)

func testClip() plan.ClipSpec {
	return plan.ClipSpec{
		VideoPath:  "/in/video.mp4",
		Index:      0,
		Span:       plan.Span{Start: 30, End: 60},
		OutputName: "video_clip_001",
	}
}

func hdPreset(t *testing.T) quality.Preset {
	t.Helper()
	p, ok := quality.Lookup("youtube_hd")
	if !ok {
		t.Fatal("youtube_hd preset missing")
	}
	return p
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	log, err := logging.NewLogger(&cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return log
}

func testExecutor(t *testing.T, hwEncoder string) *Executor {
	cfg := config.DefaultConfig()
	cfg.ClipTimeout = time.Minute
	return NewExecutor(&cfg, testLogger(t), hwEncoder)
}

// hasPair reports whether args contains flag immediately followed by value.
func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func contains(args []string, v string) bool {
	for _, a := range args {
		if a == v {
			return true
		}
	}
	return false
}

// --- BuildArgs ---

func TestBuildArgs_TrimAndPreset(t *testing.T) {
	args := BuildArgs(testClip(), hdPreset(t), "/out/video_clip_001.mp4", AttemptOptions{})

	if !hasPair(args, "-ss", "30.000") {
		t.Errorf("missing trim start: %v", args)
	}
	if !hasPair(args, "-t", "30.000") {
		t.Errorf("missing trim length: %v", args)
	}
	if !hasPair(args, "-c:v", "libx264") {
		t.Errorf("missing video codec: %v", args)
	}
	if !hasPair(args, "-preset", "fast") {
		t.Errorf("missing encoder preset: %v", args)
	}
	if !hasPair(args, "-pix_fmt", "yuv420p") {
		t.Errorf("missing pixel format: %v", args)
	}
	if !hasPair(args, "-b:v", "5000k") {
		t.Errorf("missing video bitrate: %v", args)
	}
	if !hasPair(args, "-vf", "scale=1920:1080") {
		t.Errorf("missing scale filter: %v", args)
	}
	if !contains(args, "/out/video_clip_001.mp4") {
		t.Errorf("missing output path: %v", args)
	}
}

func TestBuildArgs_AudioAlwaysNormalized(t *testing.T) {
	for _, preset := range []string{"youtube_hd", "original"} {
		p, _ := quality.Lookup(preset)
		args := BuildArgs(testClip(), p, "/out/c.mp4", AttemptOptions{})
		if !hasPair(args, "-c:a", "aac") || !hasPair(args, "-b:a", "160k") ||
			!hasPair(args, "-ar", "44100") || !hasPair(args, "-ac", "2") {
			t.Errorf("%s: audio target not enforced: %v", preset, args)
		}
	}
}

func TestBuildArgs_CopyPreset(t *testing.T) {
	p, _ := quality.Lookup("original")
	args := BuildArgs(testClip(), p, "/out/c.mp4", AttemptOptions{})
	if !hasPair(args, "-c:v", "copy") {
		t.Errorf("copy preset must stream-copy video: %v", args)
	}
	if contains(args, "-vf") || contains(args, "-b:v") {
		t.Errorf("copy preset must not scale or set bitrate: %v", args)
	}
}

func TestBuildArgs_HardwareFirstAttempt(t *testing.T) {
	args := BuildArgs(testClip(), hdPreset(t), "/out/c.mp4", AttemptOptions{HWEncoder: "h264_nvenc"})
	if !hasPair(args, "-c:v", "h264_nvenc") {
		t.Errorf("hardware encoder not selected: %v", args)
	}
	if contains(args, "-preset") {
		t.Errorf("libx264 preset leaked into hardware attempt: %v", args)
	}
}

func TestBuildArgs_FallbackIsCPUWithResample(t *testing.T) {
	args := BuildArgs(testClip(), hdPreset(t), "/out/c.mp4",
		AttemptOptions{HWEncoder: "h264_nvenc", AudioFallback: true})
	if !hasPair(args, "-c:v", "libx264") {
		t.Errorf("fallback must use the CPU encoder: %v", args)
	}
	if !hasPair(args, "-af", "aresample=async=1:first_pts=0") {
		t.Errorf("fallback must resample audio: %v", args)
	}
}

// --- Executor retry policy ---

func TestEncode_FirstAttemptSucceeds(t *testing.T) {
	e := testExecutor(t, "")
	calls := 0
	e.run = func(ctx context.Context, args []string) (string, error) {
		calls++
		return "", nil
	}
	e.validate = func(path string) error { return nil }

	res := e.Encode(context.Background(), testClip(), hdPreset(t), "/tmp/nope/c.mp4")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: got %v, want success (%s)", res.Outcome, res.FailureReason)
	}
	if res.Attempts != 1 || calls != 1 {
		t.Errorf("attempts: got %d (calls %d), want 1", res.Attempts, calls)
	}
}

func TestEncode_RetryRecovers(t *testing.T) {
	e := testExecutor(t, "h264_nvenc")
	var gotArgs [][]string
	e.run = func(ctx context.Context, args []string) (string, error) {
		gotArgs = append(gotArgs, args)
		if len(gotArgs) == 1 {
			return "device busy", errors.New("exit status 1")
		}
		return "", nil
	}
	e.validate = func(path string) error { return nil }

	res := e.Encode(context.Background(), testClip(), hdPreset(t), "/tmp/nope/c.mp4")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: got %v, want success", res.Outcome)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts: got %d, want 2", res.Attempts)
	}
	if !hasPair(gotArgs[0], "-c:v", "h264_nvenc") {
		t.Errorf("first attempt not hardware: %v", gotArgs[0])
	}
	if !hasPair(gotArgs[1], "-c:v", "libx264") || !hasPair(gotArgs[1], "-af", "aresample=async=1:first_pts=0") {
		t.Errorf("retry not conservative: %v", gotArgs[1])
	}
}

func TestEncode_TwoFailuresTerminal(t *testing.T) {
	e := testExecutor(t, "")
	calls := 0
	e.run = func(ctx context.Context, args []string) (string, error) {
		calls++
		return "Invalid data found when processing input", errors.New("exit status 1")
	}
	e.validate = func(path string) error { return nil }

	res := e.Encode(context.Background(), testClip(), hdPreset(t), "/tmp/nope/c.mp4")
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome: got %v, want failed", res.Outcome)
	}
	if res.Attempts != 2 || calls != 2 {
		t.Errorf("attempts: got %d (calls %d), want exactly 2", res.Attempts, calls)
	}
	if res.FailureReason == "" {
		t.Error("failure reason missing")
	}
}

func TestEncode_MissingAudioTriggersRetry(t *testing.T) {
	e := testExecutor(t, "")
	validations := 0
	e.run = func(ctx context.Context, args []string) (string, error) { return "", nil }
	e.validate = func(path string) error {
		validations++
		if validations == 1 {
			return errNoAudio
		}
		return nil
	}

	res := e.Encode(context.Background(), testClip(), hdPreset(t), "/tmp/nope/c.mp4")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: got %v, want success after audio retry", res.Outcome)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts: got %d, want 2", res.Attempts)
	}
}

func TestEncode_TimeoutCountsAsFailedAttempt(t *testing.T) {
	e := testExecutor(t, "")
	e.timeout = 10 * time.Millisecond
	calls := 0
	e.run = func(ctx context.Context, args []string) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	}
	e.validate = func(path string) error { return nil }

	res := e.Encode(context.Background(), testClip(), hdPreset(t), "/tmp/nope/c.mp4")
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome: got %v, want failed", res.Outcome)
	}
	if calls != 2 {
		t.Errorf("timeout must still be retried once, got %d calls", calls)
	}
	if res.FailureReason == "" {
		t.Error("failure reason missing")
	}
}

func TestEncode_InterruptSkipsRetry(t *testing.T) {
	e := testExecutor(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	e.run = func(ctx context.Context, args []string) (string, error) {
		calls++
		cancel()
		return "", errors.New("signal: interrupt")
	}
	e.validate = func(path string) error { return nil }

	res := e.Encode(ctx, testClip(), hdPreset(t), "/tmp/nope/c.mp4")
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome: got %v, want failed", res.Outcome)
	}
	if calls != 1 {
		t.Errorf("interrupted encode must not retry, got %d calls", calls)
	}
	if !res.Interrupted {
		t.Error("result must carry the interruption flag")
	}
	if res.FailureReason != "interrupted" {
		t.Errorf("failure reason: got %q, want interrupted", res.FailureReason)
	}
}
