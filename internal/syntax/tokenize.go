// Package syntax splits code samples into highlight categories using per-language
// regular expression rules.
//
// Tokenize never drops or duplicates input: the texts of the returned tokens,
// concatenated in order, always equal the code that was passed in.
package syntax

import (
	"cmp"
	"log/slog"
	"slices"
)

// Category classifies a span of code for highlighting.
type Category string

// Highlight categories.
const (
	Comment   Category = "comment"
	String    Category = "string"
	Keyword   Category = "keyword"
	Number    Category = "number"
	Variable  Category = "variable"
	Type      Category = "type"
	Operator  Category = "operator"
	Attribute Category = "attribute"
	Tag       Category = "tag"
	Plain     Category = "plain"
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{Comment, String, Keyword, Number, Variable, Type, Operator, Attribute, Tag, Plain}
}

// Token is a categorized span of the input.
type Token struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// match is a candidate span in byte offsets.
type match struct {
	start, end int
	category   Category
}

// Tokenize classifies code using the rules for lang. Unknown or empty
// languages use a generic set of comment, string and number rules.
//
// Every rule runs over the whole input. Candidates are ordered by start
// offset with longer spans first and earlier rules breaking remaining ties,
// then swept left to right: a candidate overlapping an accepted one is
// discarded and gaps become plain tokens. Empty code yields no tokens.
func Tokenize(code, lang string) []Token {
	if code == "" {
		return nil
	}

	runes := []rune(code)
	offsets := byteOffsets(code, len(runes))

	var matches []match
	for _, r := range rulesFor(lang) {
		matches = r.collect(runes, offsets, matches)
	}
	slices.SortStableFunc(matches, func(a, b match) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(b.end-b.start, a.end-a.start)
	})

	tokens := make([]Token, 0, 2*len(matches)+1)
	cursor := 0
	for _, m := range matches {
		if m.start < cursor {
			continue
		}
		if m.start > cursor {
			tokens = append(tokens, Token{Category: Plain, Text: code[cursor:m.start]})
		}
		tokens = append(tokens, Token{Category: m.category, Text: code[m.start:m.end]})
		cursor = m.end
	}
	if cursor < len(code) {
		tokens = append(tokens, Token{Category: Plain, Text: code[cursor:]})
	}
	return tokens
}

// collect appends every non-empty match of the rule. A rule that exceeds its
// match timeout contributes no matches at all.
func (r rule) collect(runes []rune, offsets []int, matches []match) []match {
	before := len(matches)
	m, err := r.re.FindRunesMatch(runes)
	for m != nil && err == nil {
		if m.Length > 0 {
			matches = append(matches, match{
				start:    offsets[m.Index],
				end:      offsets[m.Index+m.Length],
				category: r.category,
			})
		}
		m, err = r.re.FindNextMatch(m)
	}
	if err != nil {
		slog.Default().Warn("syntax rule abandoned", "category", r.category, "error", err)
		return matches[:before]
	}
	return matches
}

// byteOffsets maps rune indexes, as reported by regexp2, to byte offsets in
// code. Invalid UTF-8 bytes count as one rune each, matching the []rune
// conversion.
func byteOffsets(code string, runeCount int) []int {
	offsets := make([]int, 0, runeCount+1)
	for i := range code {
		offsets = append(offsets, i)
	}
	return append(offsets, len(code))
}
