package encode

import (
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/backmassage/clipforge/internal/plan"
	"github.com/backmassage/clipforge/internal/quality"
)

// Audio is always normalized to a fixed target for cross-player
// compatibility, regardless of preset.
const (
	audioCodec      = "aac"
	audioBitrate    = "160k"
	audioSampleRate = 44100
	audioChannels   = 2
)

// AttemptOptions vary the command between the fast first attempt and the
// conservative retry.
type AttemptOptions struct {
	// HWEncoder names a hardware H.264 encoder (e.g. "h264_videotoolbox")
	// to use instead of libx264. Empty selects the CPU encoder.
	HWEncoder string

	// AudioFallback enables the resample filter that recovers clips whose
	// first attempt produced no audio stream. The retry is always CPU-only.
	AudioFallback bool
}

// BuildArgs assembles the ffmpeg argument list for one clip attempt:
// trim [start, end) from the source, apply the preset's scaling and
// bitrate (or stream copy for the passthrough preset), and force the
// fixed audio target.
func BuildArgs(clip plan.ClipSpec, preset quality.Preset, outputPath string, opts AttemptOptions) []string {
	inKw := ffmpeg.KwArgs{
		"ss": formatSeconds(clip.Span.Start),
		"t":  formatSeconds(clip.Span.Length()),
	}

	outKw := ffmpeg.KwArgs{
		"c:a": audioCodec,
		"b:a": audioBitrate,
		"ar":  strconv.Itoa(audioSampleRate),
		"ac":  strconv.Itoa(audioChannels),
	}

	if preset.Copy {
		outKw["c:v"] = "copy"
	} else {
		codec := "libx264"
		if opts.HWEncoder != "" && !opts.AudioFallback {
			codec = opts.HWEncoder
		}
		outKw["c:v"] = codec
		outKw["pix_fmt"] = "yuv420p"
		if codec == "libx264" {
			outKw["preset"] = "fast"
		}
		if preset.Bitrate != "" {
			outKw["b:v"] = preset.Bitrate
		}
		if scale := preset.Scale(); scale != "" {
			outKw["vf"] = scale
		}
	}

	if opts.AudioFallback {
		outKw["af"] = "aresample=async=1:first_pts=0"
	}

	return ffmpeg.Input(clip.VideoPath, inKw).
		Output(outputPath, outKw).
		OverWriteOutput().
		GlobalArgs("-hide_banner", "-nostdin", "-loglevel", "error").
		GetArgs()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
