// Package naming resolves clip output filenames from a pattern template
// and derives project names from source files.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Recognized placeholders. {num} accepts an optional zero-padded width
// spec in the legacy "{num:03d}" form.
var placeholderRe = regexp.MustCompile(`\{(project|name|num|duration|timestamp)(?::0*(\d+)d)?\}`)

// Context supplies the values substituted into a pattern.
type Context struct {
	Project   string
	Name      string // cleaned source stem
	Num       int    // 1-based clip number
	Duration  float64
	Timestamp time.Time
}

// Resolve substitutes every recognized placeholder in pattern with the
// corresponding Context value. Unrecognized braces are left untouched.
// Pure function, no state.
func Resolve(pattern string, c Context) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		switch sub[1] {
		case "project":
			return c.Project
		case "name":
			return c.Name
		case "num":
			if sub[2] != "" {
				width, _ := strconv.Atoi(sub[2])
				return fmt.Sprintf("%0*d", width, c.Num)
			}
			return strconv.Itoa(c.Num)
		case "duration":
			return strconv.FormatFloat(c.Duration, 'f', -1, 64)
		case "timestamp":
			return c.Timestamp.Format("20060102_150405")
		}
		return m
	})
}
