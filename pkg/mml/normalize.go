package mml

import "regexp"

var (
	commentRe     = regexp.MustCompile(`<!--[\s\S]*?-->`)
	gluedAttrRe   = regexp.MustCompile(`"([\w-]+)="`)
	emptyAttrRe   = regexp.MustCompile(`([\w-]+)=""`)
	selfClosingRe = regexp.MustCompile(`<([\w-]+)([^<>]*?)\s*/>`)
)

// Normalize repairs common defects in hand-written or generated markup:
// it strips comments, separates attributes written without whitespace
// between them, fills empty attribute values with "0", and expands
// self-closing tags into explicit open/close pairs.
func Normalize(s string) string {
	s = commentRe.ReplaceAllString(s, "")
	s = gluedAttrRe.ReplaceAllString(s, `" $1="`)
	s = emptyAttrRe.ReplaceAllString(s, `$1="0"`)
	s = selfClosingRe.ReplaceAllString(s, `<$1$2></$1>`)
	return s
}
