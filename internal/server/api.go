package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/syntax"
	"github.com/euforicio/techtips/internal/theme"
)

const (
	themeCookie    = "theme"
	themeCookieAge = 365 * 24 * time.Hour
)

// blockView is one parsed block with its inline markdown already tokenized.
//
//nolint:govet // field order follows the JSON output
type blockView struct {
	Kind   markdown.BlockKind    `json:"kind"`
	Block  markdown.Block        `json:"block"`
	Inline []markdown.Inline     `json:"inline,omitempty"`
	Cells  [][][]markdown.Inline `json:"cells,omitempty"`
	Items  []itemView            `json:"items,omitempty"`
	Tokens []syntax.Token        `json:"tokens,omitempty"`
}

type itemView struct {
	Inline   []markdown.Inline `json:"inline"`
	Children []itemView        `json:"children,omitempty"`
	Ordered  bool              `json:"ordered"`
}

func newBlockView(b markdown.Block) blockView {
	v := blockView{Kind: b.Kind(), Block: b}
	switch b := b.(type) {
	case *markdown.Heading:
		v.Inline = markdown.ParseInline(b.Text)
	case *markdown.Paragraph:
		v.Inline = markdown.ParseInline(b.Text)
	case *markdown.Blockquote:
		v.Inline = markdown.ParseInline(b.Text)
	case *markdown.List:
		v.Items = itemViews(b.Items)
	case *markdown.CodeFence:
		v.Tokens = syntax.Tokenize(b.Source, b.Language)
	case *markdown.Table:
		v.Cells = make([][][]markdown.Inline, len(b.Rows))
		for i, row := range b.Rows {
			cells := make([][]markdown.Inline, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = markdown.ParseInline(cell)
			}
			v.Cells[i] = cells
		}
	}
	return v
}

func itemViews(nodes []*markdown.ListNode) []itemView {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]itemView, len(nodes))
	for i, n := range nodes {
		out[i] = itemView{
			Inline:   markdown.ParseInline(n.Text),
			Ordered:  n.Ordered,
			Children: itemViews(n.Children),
		}
	}
	return out
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path, err := parseWildcardPath(r.PathValue("path"))
	if err != nil {
		s.respondPathError(w, err)
		return
	}

	doc, err := s.content.Document(ctx, path)
	if err != nil {
		respondJSON(w, s.documentErrorStatus(ctx, err, path), errorResponse(err.Error()))
		return
	}

	blocks := make([]blockView, len(doc.Blocks))
	for i, b := range doc.Blocks {
		blocks[i] = newBlockView(b)
	}

	resp := struct {
		Path   string      `json:"path"`
		Blocks []blockView `json:"blocks"`
	}{
		Path:   canonicalPath(path),
		Blocks: blocks,
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeadings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path, err := parseWildcardPath(r.PathValue("path"))
	if err != nil {
		s.respondPathError(w, err)
		return
	}

	doc, err := s.content.Document(ctx, path)
	if err != nil {
		respondJSON(w, s.documentErrorStatus(ctx, err, path), errorResponse(err.Error()))
		return
	}

	headings := doc.Headings
	if headings == nil {
		headings = []markdown.TOCEntry{}
	}
	resp := struct {
		Path     string              `json:"path"`
		Headings []markdown.TOCEntry `json:"headings"`
	}{
		Path:     canonicalPath(path),
		Headings: headings,
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.logger.WarnContext(r.Context(), "decode highlight payload failed", slog.Any("err", err))
		respondJSON(w, http.StatusBadRequest, errorResponse("invalid JSON payload"))
		return
	}

	tokens := syntax.Tokenize(payload.Code, strings.TrimSpace(payload.Language))
	if tokens == nil {
		tokens = []syntax.Token{}
	}
	resp := struct {
		Language string         `json:"language"`
		Tokens   []syntax.Token `json:"tokens"`
	}{
		Language: payload.Language,
		Tokens:   tokens,
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Theme string `json:"theme"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse("invalid JSON payload"))
		return
	}

	t, err := theme.Get(strings.TrimSpace(payload.Theme))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     themeCookie,
		Value:    t.Name,
		Path:     "/",
		MaxAge:   int(themeCookieAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	resp := struct {
		Theme string `json:"theme"`
		Next  string `json:"next"`
	}{
		Theme: t.Name,
		Next:  theme.Toggle(t.Name),
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleThemeCSS serves /theme/<name>.css generated from the palette.
func (s *Server) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, ".css")
	if !ok {
		http.NotFound(w, r)
		return
	}
	t, err := theme.Get(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := t.WriteCSS(&buf); err != nil {
		s.logger.ErrorContext(r.Context(), "write theme css failed", slog.Any("err", err), slog.String("theme", name))
		http.Error(w, "failed to build theme", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.DebugContext(r.Context(), "write theme css response failed", slog.Any("err", err))
	}
}

// themeFor picks the visitor's theme cookie, then the configured default.
func (s *Server) themeFor(r *http.Request) *theme.Theme {
	if c, err := r.Cookie(themeCookie); err == nil {
		if t, err := theme.Get(c.Value); err == nil {
			return t
		}
	}
	return theme.Resolve(s.cfg.Theme)
}
