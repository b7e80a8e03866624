package plan

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// SceneOptions tunes scene-boundary detection and the shared tail policy.
type SceneOptions struct {
	Threshold        float64 // frame-difference score declaring a cut
	MinSceneDuration float64 // boundaries closer than this are merged
	MinTrailing      float64 // undersized-tail threshold, as for FixedInterval
	DropShortTail    bool    // drop the undersized tail instead of merging
}

// DetectScenes runs one ffmpeg analysis pass over the video and returns
// ordered spans aligned to detected scene cuts, covering [0, duration).
// Any two boundaries closer than MinSceneDuration are merged by dropping
// the later one, so every span except possibly the last is at least that
// long.
//
// Returns ErrDetectionUnavailable when the analysis pass cannot run;
// the caller must fall back to FixedInterval.
func DetectScenes(ctx context.Context, path string, duration float64, o SceneOptions) ([]Span, error) {
	if duration <= 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "duration must be positive")
	}

	stderr, err := runSceneFilter(ctx, path, o.Threshold)
	if err != nil {
		return nil, errors.Wrapf(ErrDetectionUnavailable, "%s: %v", path, err)
	}

	cuts := parseSceneTimes(stderr)
	return spansFromCuts(cuts, duration, o), nil
}

// runSceneFilter executes the ffmpeg select/metadata analysis pass and
// returns its captured stderr, where the filter prints per-cut records.
func runSceneFilter(ctx context.Context, path string, threshold float64) (string, error) {
	filter := fmt.Sprintf("select='gt(scene,%s)',metadata=print",
		strconv.FormatFloat(threshold, 'f', -1, 64))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-nostdin", "-nostats",
		"-i", path,
		"-vf", filter,
		"-an", "-sn",
		"-f", "null", "-",
	)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stderrBuf.String(), nil
}

// metadata=print emits lines like:
//
//	[Parsed_metadata_1 @ 0x...] frame:42 pts:215040 pts_time:14.336
//	[Parsed_metadata_1 @ 0x...] lavfi.scene_score=0.412
var reSceneTime = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// parseSceneTimes extracts cut timestamps from the analysis pass output,
// sorted ascending with duplicates removed.
func parseSceneTimes(stderr string) []float64 {
	var times []float64
	seen := make(map[float64]bool)
	for _, m := range reSceneTime.FindAllStringSubmatch(stderr, -1) {
		t, err := strconv.ParseFloat(m[1], 64)
		if err != nil || seen[t] {
			continue
		}
		seen[t] = true
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

// spansFromCuts turns cut timestamps into covering spans. Cuts at or
// before zero and at or beyond duration are ignored; cuts closer than
// MinSceneDuration to the previous kept boundary are merged (the later
// one is dropped); the shared undersized-tail policy is applied last.
func spansFromCuts(cuts []float64, duration float64, o SceneOptions) []Span {
	boundaries := []float64{0}
	for _, t := range cuts {
		if t <= 0 || t >= duration {
			continue
		}
		if t-boundaries[len(boundaries)-1] < o.MinSceneDuration {
			continue
		}
		boundaries = append(boundaries, t)
	}

	spans := make([]Span, 0, len(boundaries))
	for i, b := range boundaries {
		end := duration
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		spans = append(spans, Span{Start: b, End: end})
	}

	return mergeTrailing(spans, o.MinTrailing, o.DropShortTail)
}
