package syntax

import (
	"github.com/alecthomas/chroma/v2"
)

var chromaTypes = map[Category]chroma.TokenType{
	Comment:   chroma.Comment,
	String:    chroma.LiteralString,
	Keyword:   chroma.Keyword,
	Number:    chroma.LiteralNumber,
	Variable:  chroma.NameVariable,
	Type:      chroma.KeywordType,
	Operator:  chroma.Operator,
	Attribute: chroma.NameAttribute,
	Tag:       chroma.NameTag,
	Plain:     chroma.Text,
}

// ChromaType returns the chroma token type used to style the category.
func (c Category) ChromaType() chroma.TokenType {
	if t, ok := chromaTypes[c]; ok {
		return t
	}
	return chroma.Text
}

// Iterator adapts tokens to a chroma iterator so they can be written by any
// chroma formatter.
func Iterator(tokens []Token) chroma.Iterator {
	converted := make([]chroma.Token, len(tokens))
	for i, tok := range tokens {
		converted[i] = chroma.Token{Type: tok.Category.ChromaType(), Value: tok.Text}
	}
	return chroma.Literator(converted...)
}
