package syntax_test

import (
	"testing"

	"github.com/euforicio/techtips/internal/syntax"
)

func FuzzTokenizeTiles(f *testing.F) {
	seeds := []struct{ code, lang string }{
		{"", ""},
		{"x=1 # c", "unknownlang"},
		{"echo \"${HOME}\" 'a\\'b' `date`", "bash"},
		{"{\"a\": [1, 2.5e3, true, null, \"\\\"q\\\"\"]}", "json"},
		{"/* open comment", "go"},
		{"--[[ lua\nblock ]] x = [[raw]]", "lua"},
		{"<!-- c --><div class='x'>&amp;</div>", "xml"},
		{"FROM alpine AS build\nRUN apk add --no-cache git", "dockerfile"},
		{"[server]\nport = 8080 ; note", "toml"},
		{"\"\"\"doc\nstring\"\"\"\n@decorator\nclass A: pass", "python"},
		{"\xff\xfe\x00", "sql"},
	}
	for _, s := range seeds {
		f.Add(s.code, s.lang)
	}
	f.Fuzz(func(t *testing.T, code, lang string) {
		tokens := syntax.Tokenize(code, lang)
		if code == "" && len(tokens) != 0 {
			t.Fatalf("empty input produced %d tokens", len(tokens))
		}
		for i, tok := range tokens {
			if tok.Text == "" {
				t.Fatalf("token %d is empty", i)
			}
		}
		if got := join(tokens); got != code {
			t.Fatalf("tokens reconstruct %q, want %q", got, code)
		}
	})
}

func TestTokenizeTilesEveryLanguage(t *testing.T) {
	t.Parallel()

	code := "# c\n// d\n-- e\n/* f */ \"s\" 's' `b` 12 3.4 key: v\nkey = v\n<t a=\"1\"> $V ${W} Type --flag\n"
	for _, lang := range append(syntax.Languages(), "", "none") {
		if got := join(syntax.Tokenize(code, lang)); got != code {
			t.Errorf("%s: tokens reconstruct %q", lang, got)
		}
	}
}
