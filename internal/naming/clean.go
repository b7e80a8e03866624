package naming

import (
	"regexp"
	"strings"
)

var (
	reNonWord     = regexp.MustCompile(`[^\w\s-]`)
	reWhitespace  = regexp.MustCompile(`\s+`)
	reUnderscores = regexp.MustCompile(`_+`)
)

// CleanName normalizes a source filename stem for use in clip names:
// special characters are stripped, whitespace becomes underscores, and
// underscore runs collapse to one.
func CleanName(stem string) string {
	s := reNonWord.ReplaceAllString(stem, "")
	s = reWhitespace.ReplaceAllString(s, "_")
	s = reUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
