package encode

import "github.com/backmassage/clipforge/internal/plan"

// Outcome is the terminal state of one clip's encode.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Result records the outcome of encoding one ClipSpec. Produced once per
// clip; immutable. A failed result never aborts the batch — the
// orchestrator records it and moves to the next clip.
type Result struct {
	Clip          plan.ClipSpec
	Outcome       Outcome
	Attempts      int
	OutputPath    string
	OutputSize    int64  // bytes, set on success
	FailureReason string // set on failure

	// Interrupted marks a failure caused by run cancellation rather than
	// the encode itself: the clip stays pending and the batch stops.
	Interrupted bool
}
