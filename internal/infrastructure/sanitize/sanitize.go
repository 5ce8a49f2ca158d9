// Package sanitize cleans user-supplied text before it reaches a prompt or the
// knowledge store.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy = bluemonday.StrictPolicy()

	// markupTag matches real HTML elements, comments and doctypes. Angle
	// brackets in prose or code (x<y, List<String>) do not match.
	markupTag = regexp.MustCompile(`(?i)<(?:!--|!doctype\b|/?(?:html|head|body|div|p|br|hr|span|a|b|i|u|em|strong|ul|ol|li|h[1-6]|table|thead|tbody|tr|td|th|pre|code|blockquote|img|script|style|iframe|font|section|article|header|footer|nav|meta|link)\b[^<>]*>)`)
)

// Text trims plain text and drops control characters. Everything else,
// including angle brackets, is kept as written.
func Text(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// IsHTML reports whether s contains HTML markup.
func IsHTML(s string) bool {
	return markupTag.MatchString(s)
}

// Markup strips tags from HTML input such as exported transcripts or saved
// pages, decoding entities back to text. Input without markup is handled as
// plain Text.
func Markup(s string) string {
	if !IsHTML(s) {
		return Text(s)
	}
	return Text(html.UnescapeString(policy.Sanitize(s)))
}
