package plan

import (
	"math"

	"github.com/pkg/errors"
)

// FixedInterval partitions [0, duration) into spans of length interval.
// The final span carries the remainder; when that remainder is at or
// below minTrailing and a previous span exists, the previous span is
// extended to duration instead, so no near-zero-length clip is emitted.
//
// Pure and deterministic: identical inputs always yield identical spans.
func FixedInterval(duration, interval, minTrailing float64) ([]Span, error) {
	if duration <= 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "duration must be positive")
	}
	if interval <= 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "interval must be positive")
	}

	count := int(math.Ceil(duration / interval))
	spans := make([]Span, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * interval
		end := math.Min(float64(i+1)*interval, duration)
		if end <= start {
			break
		}
		spans = append(spans, Span{Start: start, End: end})
	}

	return mergeTrailing(spans, minTrailing, false), nil
}

// mergeTrailing applies the undersized-tail policy to an ordered span
// sequence: a final span of length <= minTrailing is merged into the
// previous span (or dropped entirely when drop is set). A single span is
// always kept, whatever its length.
func mergeTrailing(spans []Span, minTrailing float64, drop bool) []Span {
	n := len(spans)
	if n < 2 {
		return spans
	}
	last := spans[n-1]
	if last.Length() > minTrailing {
		return spans
	}
	if !drop {
		spans[n-2].End = last.End
	}
	return spans[:n-1]
}
