package transform

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"github.com/euforicio/techtips/internal/markdown"
	d2renderer "github.com/euforicio/techtips/internal/renderer/d2"
)

const d2Language = "d2"

// Diagrammer compiles D2 source into SVG.
type Diagrammer interface {
	Render(ctx context.Context, source string) (d2renderer.Result, error)
}

// D2 replaces ```d2 fences with server-rendered SVG. Compile failures are
// shown inline instead of failing the page.
type D2 struct {
	renderer Diagrammer
	logger   *slog.Logger
}

// NewD2 constructs a fence renderer. If renderer is nil the fence is shown as
// an error block asking for D2 support to be enabled.
func NewD2(renderer Diagrammer, logger *slog.Logger) *D2 {
	if logger == nil {
		logger = slog.Default()
	}
	return &D2{renderer: renderer, logger: logger}
}

// Handles reports whether the fence language is d2.
func (t *D2) Handles(language string) bool {
	return isLanguage(language, d2Language)
}

// RenderFence writes a d2-block div holding either the SVG or the compile error.
func (t *D2) RenderFence(ctx context.Context, w io.Writer, fence *markdown.CodeFence) error {
	var attrs strings.Builder
	if fence.Source != "" {
		fmt.Fprintf(&attrs, ` data-source-b64="%s"`, encodeSource(fence.Source))
	}

	var body string
	switch {
	case t.renderer == nil:
		body = `<div class="d2-error">d2 rendering is disabled</div>`
	default:
		result, err := t.renderer.Render(ctx, fence.Source)
		if err != nil {
			t.logger.Warn("d2: render failed", "err", err)
			body = `<div class="d2-error">` + html.EscapeString(err.Error()) + `</div>`
			break
		}
		if result.Duration > 0 {
			fmt.Fprintf(&attrs, ` data-runtime-ms="%d"`, result.Duration.Milliseconds())
		}
		body = result.SVG
	}

	if _, err := io.WriteString(w, `<div class="d2-block"`+attrs.String()+`>`+body+"</div>\n"); err != nil {
		return fmt.Errorf("write d2 block: %w", err)
	}
	return nil
}

func encodeSource(src string) string {
	return base64.StdEncoding.EncodeToString([]byte(src))
}
