package batch

// RunStats tracks aggregate counters across a batch run.
type RunStats struct {
	TotalVideos   int
	Current       int
	VideosDone    int
	VideosFailed  int
	VideosSkipped int

	ClipsPlanned int
	ClipsEncoded int
	ClipsSkipped int // already done (resume) or valid existing output
	ClipsFailed  int

	OutputBytes int64
	Interrupted bool
}
