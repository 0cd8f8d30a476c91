// Package sanitize turns user-submitted review text into markup-free text that
// is safe to embed in any HTML context.
package sanitize

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// policy strips every element; script and style bodies are dropped entirely
// and remaining text is HTML-escaped.
var policy = bluemonday.StrictPolicy()

// Text removes all markup from s and trims surrounding whitespace. Invalid
// UTF-8 sequences become U+FFFD so the result is always valid text.
func Text(s string) string {
	return strings.TrimSpace(policy.Sanitize(strings.ToValidUTF8(s, "�")))
}

// Length counts the characters a reader sees in sanitized text, so an
// escaped "&amp;" counts as one.
func Length(sanitized string) int {
	return utf8.RuneCountInString(html.UnescapeString(sanitized))
}
