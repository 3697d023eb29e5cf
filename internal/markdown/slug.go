// Package markdown parses the wiki's markdown subset into block and inline tokens.
//
// Every function in this package is total: any input string produces a
// deterministic result and nothing here returns an error or panics. Inputs
// outside the supported subset degrade into paragraphs and plain text.
package markdown

import (
	"strings"
	"unicode"
)

// Slugify converts heading text into a URL-safe anchor id.
//
// The text is lowercased, everything except ASCII word characters, whitespace
// and hyphens is dropped, whitespace runs become single hyphens, repeated
// hyphens collapse and leading or trailing hyphens are trimmed. Identical
// headings produce identical ids; no suffixes are added for duplicates.
func Slugify(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	hyphen := false
	for _, r := range strings.ToLower(text) {
		switch {
		case isWordRune(r):
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			hyphen = true
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
