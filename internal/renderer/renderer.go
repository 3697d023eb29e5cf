// Package renderer turns wiki markdown into HTML pages with caching, heading
// anchors and syntax highlighted code blocks.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2"

	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer/transform"
	"github.com/euforicio/techtips/internal/theme"
)

// Document represents a rendered markdown file.
//
//nolint:govet // field order optimized for readability, not memory
type Document struct {
	HTML     string
	Headings []markdown.TOCEntry
	Blocks   []markdown.Block
	Images   []string
	Metadata Metadata
	Modified time.Time
	Raw      string
}

type cacheEntry struct {
	modTime time.Time
	doc     Document
}

type cacheKey string

// FenceRenderer takes over rendering of code fences in specific languages.
type FenceRenderer interface {
	Handles(language string) bool
	RenderFence(ctx context.Context, w io.Writer, fence *markdown.CodeFence) error
}

// Service renders markdown into HTML with caching.
// Rendered documents are cached by path and modification time.
type Service struct {
	logger *slog.Logger
	fences []FenceRenderer
	style  *chroma.Style
	cache  sync.Map // map[cacheKey]cacheEntry
}

// Option customizes a Service.
type Option func(*Service)

// WithFenceRenderer registers an additional fence renderer. Renderers are
// consulted in registration order, after the built-in mermaid renderer.
func WithFenceRenderer(r FenceRenderer) Option {
	return func(s *Service) {
		if r != nil {
			s.fences = append(s.fences, r)
		}
	}
}

// WithD2 renders ```d2 fences through the given diagram compiler.
func WithD2(d transform.Diagrammer) Option {
	return func(s *Service) {
		s.fences = append(s.fences, transform.NewD2(d, s.logger))
	}
}

// NewService constructs a markdown renderer. Mermaid fences always become
// client-side diagrams; D2 fences are rendered only when WithD2 is supplied.
//
// If logger is nil, the default slog logger is used.
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	style, err := theme.Resolve(theme.Default).ChromaStyle()
	if err != nil {
		logger.Warn("renderer: falling back to chroma default style", "err", err)
		style = chroma.MustNewStyle("fallback", chroma.StyleEntries{})
	}

	s := &Service{
		logger: logger.With("component", "renderer"),
		fences: []FenceRenderer{transform.Mermaid{}},
		style:  style,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Render converts markdown content to HTML, caching results by path and modification time.
// If a cached entry exists with a matching modification time, it is returned immediately.
// The path parameter is used for cache key generation and relative link resolution.
func (s *Service) Render(ctx context.Context, path string, modTime time.Time, content []byte) (Document, error) {
	key := cacheKey(path)

	if entry, ok := s.cache.Load(key); ok {
		if cached, ok := entry.(cacheEntry); ok {
			if !cached.modTime.IsZero() && modTime.Equal(cached.modTime) {
				return cached.doc, nil
			}
		}
	}

	metadata, body, err := ParseMetadata(content)
	if err != nil {
		s.logger.Warn("ignoring invalid frontmatter", "path", path, "err", err)
	}

	blocks := markdown.ParseBlocks(body)
	buf := bytes.NewBuffer(make([]byte, 0, len(body)*2))
	w := &htmlWriter{
		ctx:     ctx,
		buf:     buf,
		service: s,
		links:   newLinkResolver(path),
	}
	if err := w.blocks(blocks); err != nil {
		return Document{}, fmt.Errorf("render markdown: %w", err)
	}

	doc := Document{
		HTML:     buf.String(),
		Headings: markdown.ParseHeadings(body),
		Blocks:   blocks,
		Images:   w.links.images(markdown.ImageURLs(body)),
		Metadata: metadata,
		Modified: modTime,
		Raw:      string(content),
	}

	s.cache.Store(key, cacheEntry{modTime: modTime, doc: doc})
	return doc, nil
}

// Invalidate removes the cached entry for the given path.
// This should be called when a document is updated or deleted to ensure
// the next Render call processes the latest content.
func (s *Service) Invalidate(path string) {
	s.cache.Delete(cacheKey(path))
}

func (s *Service) fenceRenderer(language string) FenceRenderer {
	for _, r := range s.fences {
		if r.Handles(language) {
			return r
		}
	}
	return nil
}
