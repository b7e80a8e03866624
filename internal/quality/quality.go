// Package quality defines the static table of output quality presets.
// Presets are loaded once at process start and looked up by name; there
// is no runtime mutation.
package quality

import "strconv"

// Preset is a named bundle of target resolution and video bitrate.
// Copy marks the passthrough preset: the video stream is copied with
// source parameters intact (audio is still normalized by the executor).
type Preset struct {
	Name    string
	Width   int
	Height  int
	Bitrate string // ffmpeg bitrate string, e.g. "5000k". Empty when Copy.
	Copy    bool
}

// presetOrder preserves the documented listing order for help text.
var presetOrder = []string{"youtube_sd", "youtube_hd", "youtube_4k", "original"}

var presets = map[string]Preset{
	"youtube_sd": {Name: "youtube_sd", Width: 1280, Height: 720, Bitrate: "2500k"},
	"youtube_hd": {Name: "youtube_hd", Width: 1920, Height: 1080, Bitrate: "5000k"},
	"youtube_4k": {Name: "youtube_4k", Width: 3840, Height: 2160, Bitrate: "16000k"},
	"original":   {Name: "original", Copy: true},
}

// Lookup returns the preset for name, and whether it exists.
func Lookup(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Names returns the preset names in documented order.
func Names() []string {
	out := make([]string, len(presetOrder))
	copy(out, presetOrder)
	return out
}

// Scale returns the ffmpeg scale filter expression for the preset, or ""
// when the preset copies source parameters.
func (p Preset) Scale() string {
	if p.Copy || p.Width <= 0 || p.Height <= 0 {
		return ""
	}
	return "scale=" + strconv.Itoa(p.Width) + ":" + strconv.Itoa(p.Height)
}
