// Package exporter writes the wiki out as a static site or as single pages
// in html, markdown, plain text and pdf form.
package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/euforicio/techtips/internal/config"
	"github.com/euforicio/techtips/internal/content"
	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer"
	d2renderer "github.com/euforicio/techtips/internal/renderer/d2"
	"github.com/euforicio/techtips/internal/search"
	"github.com/euforicio/techtips/internal/theme"
	techstatic "github.com/euforicio/techtips/static"
)

const indexHTML = "index.html"

// Options configure the static export behavior.
type Options struct {
	Site                config.Site
	Root                string
	OutputDir           string
	AssetsDir           string
	BaseURL             string
	IncludeHidden       bool
	GenerateSearchIndex bool
	CleanOutput         bool
}

// Exporter renders markdown content into a static HTML bundle.
type Exporter struct {
	renderer  *renderer.Service
	d2        *d2renderer.Renderer
	templates *templateRenderer
	logger    *slog.Logger
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithRenderer shares an existing renderer and its cache.
func WithRenderer(r *renderer.Service) Option {
	return func(e *Exporter) { e.renderer = r }
}

// WithD2 renders d2 fences: as SVG in html output and as PNG images in pdf
// output.
func WithD2(r *d2renderer.Renderer) Option {
	return func(e *Exporter) { e.d2 = r }
}

// New constructs an exporter instance ready for use.
func New(logger *slog.Logger, opts ...Option) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := newTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	e := &Exporter{
		templates: tmpl,
		logger:    logger.With("component", "exporter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		var rendererOpts []renderer.Option
		if e.d2 != nil {
			rendererOpts = append(rendererOpts, renderer.WithD2(e.d2))
		}
		e.renderer = renderer.NewService(logger, rendererOpts...)
	}
	return e, nil
}

// Export walks the markdown tree rooted at opts.Root and writes a static site
// to opts.OutputDir. The output mirrors the server's URL layout, so links in
// rendered pages keep working: pages under page/<path>/index.html, referenced
// images under media/, assets under static/ and theme stylesheets under theme/.
//
//nolint:gocognit,gocyclo // export orchestration requires sequential steps and validation
func (e *Exporter) Export(ctx context.Context, opts Options) error {
	if strings.TrimSpace(opts.Root) == "" {
		return errors.New("root directory is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return errors.New("output directory is required")
	}
	if strings.TrimSpace(opts.Site.Title) == "" {
		opts.Site.Title = config.DefaultSite().Title
	}

	rootDir, err := filepath.Abs(opts.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	outputDir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	if outputDir == rootDir {
		return errors.New("output directory must differ from the content root")
	}
	assetsDir := opts.AssetsDir
	if assetsDir != "" {
		if assetsDir, err = filepath.Abs(assetsDir); err != nil {
			return fmt.Errorf("resolve assets: %w", err)
		}
	}

	if err := e.prepareOutputDir(outputDir, opts.CleanOutput); err != nil {
		return err
	}

	generatedAt := time.Now().UTC()

	treeRoot, err := tree.Build(ctx, rootDir, tree.Options{
		IncludeHidden: opts.IncludeHidden,
		ExcludeDirs:   outputExclude(rootDir, outputDir),
	})
	if err != nil {
		return fmt.Errorf("build content tree: %w", err)
	}
	docs := treeRoot.Files()

	site := siteViewData{
		Title:       opts.Site.Title,
		Tagline:     opts.Site.Tagline,
		Theme:       theme.Resolve(opts.Site.Theme).Name,
		GeneratedAt: generatedAt,
		Tree:        treeRoot,
		BaseURL:     strings.TrimRight(opts.BaseURL, "/"),
	}

	if err := e.copyAssetBundle(filepath.Join(outputDir, "static"), assetsDir); err != nil {
		return err
	}
	if err := writeThemes(filepath.Join(outputDir, "theme")); err != nil {
		return err
	}

	var (
		media       = make(map[string]struct{})
		searchIndex []searchDocument
	)

	for _, node := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		absPath := filepath.Join(rootDir, filepath.FromSlash(node.RelativePath))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", node.RelativePath, err)
		}
		raw, err := os.ReadFile(absPath) //nolint:gosec // absPath constructed from validated root
		if err != nil {
			return fmt.Errorf("read %s: %w", node.RelativePath, err)
		}

		doc, err := e.renderer.Render(ctx, node.RelativePath, info.ModTime(), raw)
		if err != nil {
			return fmt.Errorf("render %s: %w", node.RelativePath, err)
		}
		for _, img := range doc.Images {
			if rel, ok := strings.CutPrefix(img, "/media/"); ok {
				media[rel] = struct{}{}
			}
		}

		page := pageViewData{
			Path:        node.RelativePath,
			URL:         pageURL(node.RelativePath),
			Title:       firstNonEmpty(doc.Metadata.Title, node.Title),
			HTML:        template.HTML(doc.HTML), //nolint:gosec // HTML from trusted renderer
			Metadata:    doc.Metadata,
			Modified:    doc.Modified,
			Headings:    doc.Headings,
			Breadcrumbs: breadcrumbsFor(treeRoot, node.RelativePath),
		}
		if site.BaseURL != "" {
			page.Canonical = site.BaseURL + page.URL
		}

		layout := layoutViewData{Site: site, Page: page, Active: node.RelativePath}
		if err := e.writeTemplate(outputDir, pageOutput(node.RelativePath), "page", layout); err != nil {
			return fmt.Errorf("write page %s: %w", node.RelativePath, err)
		}

		if opts.GenerateSearchIndex {
			searchIndex = append(searchIndex, searchDocument{
				URL:     page.URL,
				Summary: doc.Metadata.Description,
				Page: search.Page{
					Path:    node.RelativePath,
					Title:   page.Title,
					Entries: search.Flatten(doc.Blocks),
				},
			})
		}
	}

	home := layoutViewData{
		Site:  site,
		Cards: content.Cards(opts.Site, treeRoot),
	}
	home.Page.Title = site.Title
	home.Page.URL = "/"
	if site.BaseURL != "" {
		home.Page.Canonical = site.BaseURL + "/"
	}
	if err := e.writeTemplate(outputDir, indexHTML, "home", home); err != nil {
		return fmt.Errorf("write home page: %w", err)
	}

	if err := copyMedia(rootDir, filepath.Join(outputDir, "media"), media); err != nil {
		return err
	}

	if err := writeJSON(outputDir, "tree.json", treePayload{GeneratedAt: generatedAt, Root: treeRoot}); err != nil {
		return err
	}
	if opts.GenerateSearchIndex {
		payload := searchPayload{GeneratedAt: generatedAt, Documents: searchIndex}
		if err := writeJSON(outputDir, "search.json", payload); err != nil {
			return err
		}
	}

	e.logger.Info("export complete",
		slog.Int("documents", len(docs)),
		slog.Int("media", len(media)),
		slog.String("output", outputDir),
		slog.Duration("duration", time.Since(generatedAt)))

	return nil
}

func (e *Exporter) prepareOutputDir(output string, clean bool) error {
	if clean {
		if err := os.RemoveAll(output); err != nil {
			return fmt.Errorf("clean output: %w", err)
		}
	}
	return os.MkdirAll(output, 0o755) //nolint:gosec // standard directory permissions
}

func (e *Exporter) writeTemplate(root, rel, name string, data layoutViewData) error {
	dest := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil { //nolint:gosec // standard directory permissions
		return err
	}
	var buf bytes.Buffer
	if err := e.templates.render(&buf, name, data); err != nil {
		return err
	}
	return os.WriteFile(dest, buf.Bytes(), 0o644) //nolint:gosec // standard file permissions
}

func (e *Exporter) copyAssetBundle(dest, override string) error {
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("reset assets dir: %w", err)
	}
	override = strings.TrimSpace(override)
	if override != "" {
		if info, err := os.Stat(override); err == nil && info.IsDir() {
			if err := copyTree(override, dest); err != nil {
				return fmt.Errorf("copy override assets: %w", err)
			}
			e.logger.Debug("exporter using override assets", slog.String("source", override))
			return nil
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat assets override: %w", err)
		}
	}

	if err := techstatic.CopyAll(dest); err != nil {
		return fmt.Errorf("copy embedded assets: %w", err)
	}
	return nil
}

func writeThemes(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // standard directory permissions
		return fmt.Errorf("create theme dir: %w", err)
	}
	for _, name := range theme.Names() {
		var buf bytes.Buffer
		if err := theme.Resolve(name).WriteCSS(&buf); err != nil {
			return err
		}
		dest := filepath.Join(dir, name+".css")
		if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil { //nolint:gosec // standard file permissions
			return fmt.Errorf("write %s theme: %w", name, err)
		}
	}
	return nil
}

// copyMedia copies the images pages refer to. References to files that do
// not exist are skipped; the page shows a broken image like the server would.
func copyMedia(root, dest string, refs map[string]struct{}) error {
	for rel := range refs {
		clean := path.Clean(rel)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			continue
		}
		src := filepath.Join(root, filepath.FromSlash(clean))
		data, err := os.ReadFile(src) //nolint:gosec // src stays inside root
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read media %s: %w", rel, err)
		}
		target := filepath.Join(dest, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec // standard directory permissions
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec // standard file permissions
			return fmt.Errorf("write media %s: %w", rel, err)
		}
	}
	return nil
}

// pageURL is the site URL of a page, matching the server's /page/ route.
func pageURL(rel string) string {
	return "/page/" + rel + "/"
}

func pageOutput(rel string) string {
	return path.Join("page", rel, indexHTML)
}

// outputExclude returns the first path segment of output when it sits
// inside root, so an export into root/site never indexes itself.
func outputExclude(root, output string) []string {
	rel, err := filepath.Rel(root, output)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return []string{first}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type breadcrumb struct {
	Title string
	URL   string
}

func breadcrumbsFor(root *tree.Node, target string) []breadcrumb {
	nodes := findNodePath(root, target)
	if len(nodes) <= 1 {
		return nil
	}
	nodes = nodes[1:]
	out := make([]breadcrumb, 0, len(nodes))
	for i, node := range nodes {
		crumb := breadcrumb{Title: node.Title}
		if node.Type == tree.NodeTypeFile && i != len(nodes)-1 {
			crumb.URL = pageURL(node.RelativePath)
		}
		out = append(out, crumb)
	}
	return out
}

func findNodePath(root *tree.Node, target string) []*tree.Node {
	if root == nil {
		return nil
	}
	if root.RelativePath == target {
		return []*tree.Node{root}
	}
	for _, child := range root.Children {
		if p := findNodePath(child, target); len(p) > 0 {
			return append([]*tree.Node{root}, p...)
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755) //nolint:gosec // standard directory permissions
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec // standard directory permissions
			return err
		}
		data, err := os.ReadFile(p) //nolint:gosec // path from validated source directory
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644) //nolint:gosec // standard file permissions
	})
}

func writeJSON(output, name string, payload any) error {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(output, name), raw, 0o644); err != nil { //nolint:gosec // standard file permissions
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

type treePayload struct {
	GeneratedAt time.Time  `json:"generatedAt"`
	Root        *tree.Node `json:"root"`
}

type searchDocument struct {
	URL     string `json:"url"`
	Summary string `json:"summary,omitempty"`
	search.Page
}

type searchPayload struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Documents   []searchDocument `json:"documents"`
}

//nolint:govet // field order optimized for readability, not memory
type layoutViewData struct {
	Page   pageViewData
	Site   siteViewData
	Cards  []content.Card
	Active string
}

type siteViewData struct {
	GeneratedAt time.Time
	Tree        *tree.Node
	Title       string
	Tagline     string
	Theme       string
	BaseURL     string
}

type pageViewData struct {
	Metadata    renderer.Metadata
	Modified    time.Time
	Path        string
	URL         string
	Title       string
	HTML        template.HTML
	Canonical   string
	Headings    []markdown.TOCEntry
	Breadcrumbs []breadcrumb
}
