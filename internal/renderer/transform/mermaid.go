// Package transform renders fenced code blocks whose language names a diagram
// format instead of source code.
package transform

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/euforicio/techtips/internal/markdown"
)

const mermaidLanguage = "mermaid"

// Mermaid writes ```mermaid fences as divs Mermaid.js can hydrate in the browser.
type Mermaid struct{}

// Handles reports whether the fence language is mermaid.
func (Mermaid) Handles(language string) bool {
	return isLanguage(language, mermaidLanguage)
}

// RenderFence writes the escaped diagram source inside a mermaid div.
func (Mermaid) RenderFence(_ context.Context, w io.Writer, fence *markdown.CodeFence) error {
	if _, err := fmt.Fprintf(w, "<div class=\"mermaid\">%s</div>\n", html.EscapeString(fence.Source)); err != nil {
		return fmt.Errorf("write mermaid block: %w", err)
	}
	return nil
}

func isLanguage(language, want string) bool {
	return strings.EqualFold(strings.TrimSpace(language), want)
}
