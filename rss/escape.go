package rss

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape escapes s for XML character data and attribute values.
// It is not re-escape safe: apply it exactly once per field.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Clean replaces every character that cannot appear in an XML 1.0 document,
// including ill-formed UTF-8, with U+FFFD. It never fails.
func Clean(s string) string {
	out, _, err := transform.String(runes.Map(xmlRune), s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return out
}

func xmlRune(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r >= 0x20 && r <= 0xD7FF:
		return r
	case r >= 0xE000 && r <= 0xFFFD:
		return r
	case r >= 0x10000 && r <= utf8.MaxRune:
		return r
	}
	return utf8.RuneError
}
