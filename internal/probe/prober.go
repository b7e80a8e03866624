// Package probe wraps ffprobe JSON probing of source videos and caches the
// resulting descriptors keyed by path and modification time.
package probe

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrSourceUnreadable marks a video that cannot be probed. The batch
// records the video as failed and continues with its siblings.
var ErrSourceUnreadable = errors.New("source video unreadable")

const probeTimeout = 30 * time.Second

// Prober probes videos and caches descriptors. It is used from the
// single-threaded batch loop and needs no locking.
type Prober struct {
	cache map[string]*VideoDescriptor
}

// NewProber returns an empty Prober.
func NewProber() *Prober {
	return &Prober{cache: make(map[string]*VideoDescriptor)}
}

// Describe returns the descriptor for path, probing the file unless a
// cached descriptor with a matching modification time exists.
func (p *Prober) Describe(path string) (*VideoDescriptor, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnreadable, "stat %s: %v", path, err)
	}

	if d, ok := p.cache[path]; ok && d.ModTime.Equal(fi.ModTime()) {
		return d, nil
	}

	raw, err := ffmpeg.ProbeWithTimeout(path, probeTimeout, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnreadable, "ffprobe %s: %v", path, err)
	}

	res, err := ParseJSON([]byte(raw))
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnreadable, "%s: %v", path, err)
	}

	v := res.PrimaryVideo()
	if v == nil {
		return nil, errors.Wrapf(ErrSourceUnreadable, "%s: no video stream", path)
	}
	if res.Duration <= 0 {
		return nil, errors.Wrapf(ErrSourceUnreadable, "%s: no usable duration", path)
	}

	d := &VideoDescriptor{
		Path:      path,
		Duration:  res.Duration,
		FrameRate: ParseFrameRate(v.AvgFrameRate),
		Format:    res.FormatName,
		HasAudio:  res.HasAudioStream(),
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
	}
	p.cache[path] = d
	return d, nil
}

// ParseJSON converts raw ffprobe JSON output into a Result.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse ffprobe JSON")
	}

	res := &Result{
		FormatName: raw.Format.FormatName,
		Duration:   parseFloat(raw.Format.Duration),
	}
	for _, s := range raw.Streams {
		res.Streams = append(res.Streams, StreamInfo{
			Index:        s.Index,
			CodecType:    s.CodecType,
			Codec:        s.CodecName,
			Width:        s.Width,
			Height:       s.Height,
			AvgFrameRate: s.AvgFrameRate,
		})
	}
	return res, nil
}

// ParseFrameRate parses ffprobe's rational frame rate ("30000/1001") into
// frames per second. Returns 0 for unparseable or degenerate input.
func ParseFrameRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		return parseFloat(r)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// ffprobe returns numbers as strings.
func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
