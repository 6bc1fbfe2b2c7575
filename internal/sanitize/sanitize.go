// Package sanitize turns HTML-ish calendar free text into plain text.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	lineBreakTags = regexp.MustCompile(`(?i)<\s*(br|hr)\s*/?\s*>`)
	newlineEnts   = regexp.MustCompile(`&#1[03];`)
	anyTag        = regexp.MustCompile(`<[^>]*>`)
	blankRuns     = regexp.MustCompile(`[ \t]+`)
	blankAroundNL = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

// Clean strips markup from s while keeping intentional line breaks.
//
// <br> and <hr> (any case, optional self-closing slash) and the &#10; / &#13;
// entities become "\n". Any other tag is replaced by a single space so that
// adjacent words never merge; blank runs are then collapsed and the result is
// trimmed. Clean never fails and Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	if s == "" {
		return ""
	}

	s = lineBreakTags.ReplaceAllString(s, "\n")
	s = newlineEnts.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, " ")
	s = blankAroundNL.ReplaceAllString(s, "\n")

	return strings.TrimSpace(s)
}
