package naming

import (
	"path/filepath"
	"strings"
	"time"
)

// ProjectName returns explicit unchanged when set; otherwise it derives a
// project name from the first source file's cleaned stem plus a
// timestamp, e.g. "My_Video_20260827_143000".
func ProjectName(explicit, sourcePath string, now time.Time) string {
	if explicit != "" {
		return explicit
	}
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	cleaned := CleanName(stem)
	if cleaned == "" {
		cleaned = "project"
	}
	return cleaned + "_" + now.Format("20060102_150405")
}
