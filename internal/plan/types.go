// Package plan computes clip boundaries for a video, either on a fixed
// interval or aligned to detected scene cuts. Both paths honor the same
// coverage invariant: the spans partition [0, duration) in order, with no
// gaps or overlaps, and no degenerate trailing sliver.
package plan

import "github.com/pkg/errors"

// Sentinel errors for the segmentation stage.
var (
	// ErrInvalidParameter marks a bad duration or interval. Fatal to the
	// single operation, not the batch.
	ErrInvalidParameter = errors.New("invalid segmentation parameter")

	// ErrDetectionUnavailable marks an unusable scene-analysis pass
	// (e.g. corrupt stream). Callers must fall back to fixed-interval
	// planning.
	ErrDetectionUnavailable = errors.New("scene detection unavailable")
)

// Span is one clip boundary: the half-open interval [Start, End) in
// seconds on the source timeline. End > Start always.
type Span struct {
	Start float64
	End   float64
}

// Length returns the span duration in seconds.
func (s Span) Length() float64 { return s.End - s.Start }

// ClipSpec binds a span to its source video, zero-based index, and
// resolved output filename. Immutable after creation; consumed exactly
// once by the encode executor.
type ClipSpec struct {
	VideoPath  string
	Index      int
	Span       Span
	OutputName string
}

// Clips builds the final ClipSpec sequence from ordered spans. name maps
// the zero-based clip index to the resolved output filename.
func Clips(videoPath string, spans []Span, name func(i int) string) []ClipSpec {
	clips := make([]ClipSpec, len(spans))
	for i, sp := range spans {
		clips[i] = ClipSpec{
			VideoPath:  videoPath,
			Index:      i,
			Span:       sp,
			OutputName: name(i),
		}
	}
	return clips
}
