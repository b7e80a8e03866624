package probe

import "time"

// VideoDescriptor holds the probed properties of a source video. It is
// immutable once built; the prober re-probes only when the file's
// modification time changes.
type VideoDescriptor struct {
	Path      string
	Duration  float64 // seconds
	FrameRate float64
	Format    string // container format name, e.g. "mov,mp4,m4a,3gp,3g2,mj2"
	HasAudio  bool
	Size      int64
	ModTime   time.Time
}

// StreamInfo holds the subset of per-stream ffprobe output the pipeline
// inspects: type and codec for audio validation, dimensions and frame
// rate for the video stream.
type StreamInfo struct {
	Index        int
	CodecType    string
	Codec        string
	Width        int
	Height       int
	AvgFrameRate string
}

// Result is the parsed output of one ffprobe JSON call.
type Result struct {
	FormatName string
	Duration   float64
	Streams    []StreamInfo
}

// PrimaryVideo returns the first video stream, or nil if none.
func (r *Result) PrimaryVideo() *StreamInfo {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "video" {
			return &r.Streams[i]
		}
	}
	return nil
}

// HasAudioStream reports whether any audio stream is present. The encode
// executor uses this to validate clip outputs for audio dropout.
func (r *Result) HasAudioStream() bool {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return true
		}
	}
	return false
}
