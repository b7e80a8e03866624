package export

import (
	"fmt"
	"math"
	"strings"
)

// WriteEDL writes a CMX 3600 edit decision list placing every clip back
// to back on a new timeline at the source frame rate. Editors that
// predate the scripting host (or users who prefer File > Import >
// Timeline) can use this instead of the import script.
func WriteEDL(path, title string, fps float64, records []ClipMetadataRecord) error {
	if fps <= 0 {
		fps = 30
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	b.WriteString("FCM: NON-DROP FRAME\n\n")

	timelinePos := 0.0
	for i, r := range records {
		length := r.End - r.Start
		srcIn := Timecode(r.Start, fps)
		srcOut := Timecode(r.End, fps)
		recIn := Timecode(timelinePos, fps)
		recOut := Timecode(timelinePos+length, fps)

		fmt.Fprintf(&b, "%03d  AX       V     C        %s %s %s %s\n",
			i+1, srcIn, srcOut, recIn, recOut)
		fmt.Fprintf(&b, "* FROM CLIP NAME: %s\n\n", clipBasename(r.OutputPath))

		timelinePos += length
	}

	return writeAtomic(path, []byte(b.String()))
}

// Timecode renders seconds as HH:MM:SS:FF at the given frame rate.
func Timecode(seconds, fps float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := math.Floor(seconds)
	h := int(whole) / 3600
	m := (int(whole) % 3600) / 60
	s := int(whole) % 60
	f := int(math.Round((seconds - whole) * fps))
	if f >= int(math.Round(fps)) && f > 0 {
		f = int(math.Round(fps)) - 1
	}
	return fmt.Sprintf("%02d:%02d:%02d:%02d", h, m, s, f)
}

func clipBasename(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
