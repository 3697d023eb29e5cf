package markdown

import "strings"

// InlineKind names the type of an inline token.
type InlineKind string

// Inline token kinds produced by ParseInline.
const (
	InlineText       InlineKind = "text"
	InlineCode       InlineKind = "code"
	InlineLink       InlineKind = "link"
	InlineBold       InlineKind = "bold"
	InlineBoldItalic InlineKind = "bold_italic"
	InlineItalic     InlineKind = "italic"
)

const inlineSpecials = "`[*"

// Inline is one styled span. Text is the visible content without delimiters;
// Raw is the exact source the token was read from.
type Inline struct {
	Kind InlineKind `json:"kind"`
	Text string     `json:"text"`
	Href string     `json:"href,omitempty"`
	Raw  string     `json:"-"`
}

// ParseInline tokenizes a run of inline markdown. At each position it tries,
// in order, a code span, a link, bold italic, bold and italic, then a run of
// plain text up to the next backtick, '[' or '*'. A special character that
// starts nothing becomes a one character text token. Concatenating the Raw
// fields of the result reproduces text exactly.
func ParseInline(text string) []Inline {
	var tokens []Inline
	for rest := text; rest != ""; {
		tok, n := nextInline(rest)
		tok.Raw = rest[:n]
		tokens = append(tokens, tok)
		rest = rest[n:]
	}
	return tokens
}

// PlainText returns the visible text of inline markdown with all delimiters
// and link targets removed.
func PlainText(text string) string {
	var b strings.Builder
	for _, tok := range ParseInline(text) {
		b.WriteString(tok.Text)
	}
	return b.String()
}

func nextInline(s string) (Inline, int) {
	switch s[0] {
	case '`':
		if end := strings.IndexByte(s[1:], '`'); end > 0 {
			return Inline{Kind: InlineCode, Text: s[1 : 1+end]}, end + 2
		}
	case '[':
		if tok, n, ok := matchLink(s); ok {
			return tok, n
		}
	case '*':
		for _, em := range emphasis {
			if inner, n, ok := matchEmphasis(s, em.stars); ok {
				return Inline{Kind: em.kind, Text: inner}, n
			}
		}
	}

	if n := strings.IndexAny(s, inlineSpecials); n != 0 {
		if n < 0 {
			n = len(s)
		}
		return Inline{Kind: InlineText, Text: s[:n]}, n
	}
	return Inline{Kind: InlineText, Text: s[:1]}, 1
}

var emphasis = []struct {
	kind  InlineKind
	stars int
}{
	{InlineBoldItalic, 3},
	{InlineBold, 2},
	{InlineItalic, 1},
}

// matchEmphasis matches stars asterisks, one or more non-asterisk
// characters, then the same number of asterisks.
func matchEmphasis(s string, stars int) (string, int, bool) {
	delim := strings.Repeat("*", stars)
	if !strings.HasPrefix(s, delim) {
		return "", 0, false
	}
	end := strings.IndexByte(s[stars:], '*')
	if end < 1 || !strings.HasPrefix(s[stars+end:], delim) {
		return "", 0, false
	}
	return s[stars : stars+end], stars + end + stars, true
}

// matchLink matches [text](href). The href ends at the first ')' that is not
// escaped with a backslash.
func matchLink(s string) (Inline, int, bool) {
	textEnd := strings.IndexByte(s[1:], ']')
	if textEnd < 1 {
		return Inline{}, 0, false
	}
	open := 1 + textEnd + 1
	if open >= len(s) || s[open] != '(' {
		return Inline{}, 0, false
	}

	hrefStart := open + 1
	for j := hrefStart; j < len(s); j++ {
		if s[j] != ')' || s[j-1] == '\\' {
			continue
		}
		if j == hrefStart {
			return Inline{}, 0, false
		}
		href := strings.ReplaceAll(s[hrefStart:j], `\)`, ")")
		return Inline{Kind: InlineLink, Text: s[1 : 1+textEnd], Href: href}, j + 1, true
	}
	return Inline{}, 0, false
}
