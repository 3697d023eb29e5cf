// Package search provides full-text search over the wiki's parsed pages.
//
// Pages are parsed into blocks once per modification time and flattened into
// plain-text entries, each remembering the heading it sits under so results
// can link straight to the section.
package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jellydator/ttlcache/v3"
	"github.com/moby/patternmatcher"
	"golang.org/x/sync/errgroup"

	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer"
)

// ErrEmptyQuery is returned when the query has no non-space characters.
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	defaultLimit   = 200
	defaultContext = 60
	cacheTTL       = 30 * time.Minute
	cacheCapacity  = 4096
)

// Options controls a search. ExcludeDirs adds to the directories the navigation tree always skips.
type Options struct {
	IncludeGlobs  []string
	ExcludeGlobs  []string
	ExcludeDirs   []string
	Context       int
	Limit         int
	CaseSensitive bool
	IncludeCode   bool
	SearchHidden  bool
}

// Result is a single matching line.
type Result struct {
	Path    string             `json:"path"`
	Title   string             `json:"title"`
	Heading string             `json:"heading,omitempty"`
	Anchor  string             `json:"anchor,omitempty"`
	Kind    markdown.BlockKind `json:"kind"`
	Match   string             `json:"match"`
	Snippet string             `json:"snippet"`
	Block   int                `json:"block"`
}

// Entry is one searchable line of a page.
type Entry struct {
	Heading string             `json:"heading,omitempty"`
	Anchor  string             `json:"anchor,omitempty"`
	Kind    markdown.BlockKind `json:"kind"`
	Text    string             `json:"text"`
	Block   int                `json:"block"`
}

// Page is the searchable form of one markdown file.
type Page struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

type cachedPage struct {
	modTime time.Time
	page    *Page
}

// Service searches markdown files under a root directory.
type Service struct {
	logger *slog.Logger
	cache  *ttlcache.Cache[string, cachedPage]
	root   string
}

// NewService constructs a search service rooted at root.
func NewService(root string, logger *slog.Logger) (*Service, error) {
	if root == "" {
		return nil, errors.New("root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache := ttlcache.New[string, cachedPage](
		ttlcache.WithTTL[string, cachedPage](cacheTTL),
		ttlcache.WithCapacity[string, cachedPage](cacheCapacity),
	)
	return &Service{root: abs, logger: logger.With("component", "search"), cache: cache}, nil
}

// Invalidate drops the parsed form of a page.
func (s *Service) Invalidate(relPath string) {
	s.cache.Delete(relPath)
}

// Search returns matching lines in file order, then document order.
// Without CaseSensitive the query is smart-case: it only matches case
// sensitively when it contains an upper-case letter.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	pages, err := s.Pages(ctx, opts)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	radius := opts.Context
	if radius <= 0 {
		radius = defaultContext
	}
	m := newMatcher(query, opts.CaseSensitive || hasUpper(query))

	var results []Result
	for _, page := range pages {
		for _, entry := range page.Entries {
			if entry.Kind == markdown.KindCodeFence && !opts.IncludeCode {
				continue
			}
			start, end, ok := m.find(entry.Text)
			if !ok {
				continue
			}
			results = append(results, Result{
				Path:    page.Path,
				Title:   page.Title,
				Heading: entry.Heading,
				Anchor:  entry.Anchor,
				Kind:    entry.Kind,
				Match:   entry.Text[start:end],
				Snippet: snippet(entry.Text, start, end, radius),
				Block:   entry.Block,
			})
			if len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

// Pages parses every markdown file selected by opts. Unchanged files are
// served from the cache.
func (s *Service) Pages(ctx context.Context, opts Options) ([]*Page, error) {
	files, err := s.files(ctx, opts)
	if err != nil {
		return nil, err
	}

	pages := make([]*Page, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rel := range files {
		g.Go(func() error {
			page, err := s.load(gctx, rel)
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *Service) files(ctx context.Context, opts Options) ([]string, error) {
	include, err := newGlobMatcher(opts.IncludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("include globs: %w", err)
	}
	exclude, err := newGlobMatcher(opts.ExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("exclude globs: %w", err)
	}

	dirs := tree.Options{IncludeHidden: opts.SearchHidden, ExcludeDirs: opts.ExcludeDirs}
	var files []string
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == s.root {
			return nil
		}
		if d.IsDir() {
			if tree.Excluded(d.Name(), dirs) {
				return filepath.SkipDir
			}
			return nil
		}
		if !opts.SearchHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !tree.IsMarkdown(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if include != nil {
			if ok, err := include.MatchesOrParentMatches(rel); err != nil || !ok {
				return err
			}
		}
		if exclude != nil {
			if skip, err := exclude.MatchesOrParentMatches(rel); err != nil || skip {
				return err
			}
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	return files, nil
}

func (s *Service) load(ctx context.Context, rel string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}

	if item := s.cache.Get(rel); item != nil && item.Value().modTime.Equal(info.ModTime()) {
		return item.Value().page, nil
	}

	data, err := os.ReadFile(abs) //nolint:gosec // abs is built from a walked path under root
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	meta, body, err := renderer.ParseMetadata(data)
	if err != nil {
		s.logger.Debug("indexing page with invalid frontmatter", "path", rel, "err", err)
	}

	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	}
	page := &Page{Path: rel, Title: title, Entries: Flatten(markdown.ParseBlocks(body))}
	s.cache.Set(rel, cachedPage{modTime: info.ModTime(), page: page}, ttlcache.DefaultTTL)
	return page, nil
}

// Flatten turns blocks into searchable lines. Inline markup is reduced to its
// text and every line records the heading in effect.
func Flatten(blocks []markdown.Block) []Entry {
	var (
		entries []Entry
		heading string
		anchor  string
	)
	add := func(i int, kind markdown.BlockKind, text string) {
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			entries = append(entries, Entry{Heading: heading, Anchor: anchor, Kind: kind, Text: line, Block: i})
		}
	}

	for i, block := range blocks {
		switch b := block.(type) {
		case *markdown.Heading:
			heading, anchor = markdown.PlainText(b.Text), b.ID()
			add(i, b.Kind(), heading)
		case *markdown.Paragraph:
			add(i, b.Kind(), markdown.PlainText(b.Text))
		case *markdown.Blockquote:
			add(i, b.Kind(), markdown.PlainText(b.Text))
		case *markdown.List:
			var walk func([]*markdown.ListNode)
			walk = func(nodes []*markdown.ListNode) {
				for _, n := range nodes {
					add(i, b.Kind(), markdown.PlainText(n.Text))
					walk(n.Children)
				}
			}
			walk(b.Items)
		case *markdown.CodeFence:
			add(i, b.Kind(), b.Source)
		case *markdown.Image:
			add(i, b.Kind(), b.Alt)
		case *markdown.Table:
			for _, row := range b.Rows {
				add(i, b.Kind(), joinCells(row.Cells))
			}
		}
	}
	return entries
}

func joinCells(cells []string) string {
	plain := make([]string, len(cells))
	for i, c := range cells {
		plain[i] = markdown.PlainText(c)
	}
	return strings.Join(plain, " | ")
}

type matcher struct {
	query         string
	caseSensitive bool
}

func newMatcher(query string, caseSensitive bool) matcher {
	if !caseSensitive {
		query = strings.ToLower(query)
	}
	return matcher{query: query, caseSensitive: caseSensitive}
}

// find returns the byte range of the first match in text.
func (m matcher) find(text string) (int, int, bool) {
	if m.caseSensitive {
		i := strings.Index(text, m.query)
		if i < 0 {
			return 0, 0, false
		}
		return i, i + len(m.query), true
	}

	// Compare rune by rune so offsets stay valid in the original text even
	// when lower-casing changes a character's encoded width.
	want := []rune(m.query)
	for start := range text {
		end, ok := matchFoldedAt(text, start, want)
		if ok {
			return start, end, true
		}
	}
	return 0, 0, false
}

func matchFoldedAt(text string, start int, want []rune) (int, bool) {
	pos := start
	for _, w := range want {
		if pos >= len(text) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(text[pos:])
		if unicode.ToLower(r) != w {
			return 0, false
		}
		pos += size
	}
	return pos, true
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// snippet returns text around [start,end) with at most radius runes on
// either side.
func snippet(text string, start, end, radius int) string {
	before := []rune(text[:start])
	after := []rune(text[end:])

	var b strings.Builder
	if len(before) > radius {
		b.WriteString("…")
		before = before[len(before)-radius:]
	}
	b.WriteString(strings.TrimLeft(string(before), " \t"))
	b.WriteString(text[start:end])
	if len(after) > radius {
		b.WriteString(strings.TrimRight(string(after[:radius]), " \t"))
		b.WriteString("…")
	} else {
		b.WriteString(strings.TrimRight(string(after), " \t"))
	}
	return b.String()
}

// newGlobMatcher compiles dockerignore-style patterns. Patterns without a
// slash match at any depth.
func newGlobMatcher(globs []string) (*patternmatcher.PatternMatcher, error) {
	var patterns []string
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		g = strings.TrimPrefix(g, "!")
		if !strings.Contains(g, "/") {
			g = "**/" + g
		}
		patterns = append(patterns, g)
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return patternmatcher.New(patterns)
}
