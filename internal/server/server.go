// Package server provides the HTTP server for browsing tips live.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/euforicio/techtips/internal/config"
	"github.com/euforicio/techtips/internal/content"
	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/exporter"
	"github.com/euforicio/techtips/internal/renderer"
	"github.com/euforicio/techtips/internal/search"
	"github.com/euforicio/techtips/static"
)

// Server wraps the HTTP server and the services it exposes: rendered pages,
// the navigation tree, search, single page export and live change events.
type Server struct { //nolint:govet // field order favors logical grouping over padding optimizations
	mux            *http.ServeMux
	httpServer     *http.Server
	logger         *slog.Logger
	content        *content.Service
	search         *search.Service
	exporter       *exporter.Exporter
	templates      *templateRenderer
	site           config.Site
	cfg            config.Config
	customCSSPaths []string // global first, then per-root
}

var (
	errPathRequired        = errors.New("path is required")
	errInvalidPathEncoding = errors.New("invalid path encoding")
)

var titleCaser = cases.Title(language.English)

// New constructs a Server. A nil exporter is replaced by one with its own
// renderer; pass one built with exporter.WithRenderer to share the page cache.
func New(cfg config.Config, site config.Site, logger *slog.Logger, contentSvc *content.Service, searchSvc *search.Service, exp *exporter.Exporter) (*Server, error) {
	if contentSvc == nil {
		return nil, errors.New("content service must be provided")
	}

	tmpl, err := newTemplateRenderer()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	if exp == nil {
		exp, err = exporter.New(logger)
		if err != nil {
			return nil, fmt.Errorf("init exporter: %w", err)
		}
	}

	s := &Server{
		cfg:       cfg,
		site:      site,
		mux:       http.NewServeMux(),
		logger:    logger.With("component", "http"),
		content:   contentSvc,
		search:    searchSvc,
		exporter:  exp,
		templates: tmpl,
	}

	s.registerRoutes()
	s.discoverCustomCSS()

	return s, nil
}

func (s *Server) registerRoutes() {
	staticHandler := http.StripPrefix("/static/", http.FileServer(s.resolveStaticFS()))
	s.mux.Handle("GET /static/{path...}", staticHandler)
	s.mux.Handle("HEAD /static/{path...}", staticHandler)

	s.mux.HandleFunc("GET /theme/{file}", s.handleThemeCSS)
	s.mux.HandleFunc("GET /custom-theme/{index}", s.handleCustomCSS)
	s.mux.HandleFunc("GET /media/{path...}", s.handleMedia)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /page/{path...}", s.handlePageRoute)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	s.mux.HandleFunc("GET /api/tree", s.handleTree)
	s.mux.HandleFunc("GET /api/page/{path...}", s.handlePage)
	s.mux.HandleFunc("GET /api/blocks/{path...}", s.handleBlocks)
	s.mux.HandleFunc("GET /api/headings/{path...}", s.handleHeadings)
	s.mux.HandleFunc("POST /api/highlight", s.handleHighlight)
	s.mux.HandleFunc("POST /api/theme", s.handleSetTheme)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("GET /events", s.handleEvents)
}

func (s *Server) resolveStaticFS() http.FileSystem {
	dir := strings.TrimSpace(s.cfg.AssetsDir)
	if dir != "" {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			s.logger.Debug("serving assets from filesystem", slog.String("dir", dir))
			return http.Dir(dir)
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("assets dir check failed", slog.String("dir", dir), slog.Any("err", err))
		}
	}
	s.logger.Debug("serving embedded assets")
	return static.HTTP()
}

// Handler returns the route table wrapped in the middleware stack.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		requestIDMiddleware,
		recoveryMiddleware,
		csrfMiddleware,
		compressMiddleware,
		loggingMiddleware(s.logger, s.cfg.Verbose),
	)
}

// Start runs the HTTP server and optionally opens the browser. Port 0 binds
// a free loopback port. Start blocks until ctx is canceled or the server
// fails, shutting down gracefully in the first case.
func (s *Server) Start(ctx context.Context) error {
	var (
		listener net.Listener
		err      error
	)
	if s.cfg.Port == 0 {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
	} else {
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	}
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		_ = listener.Close()
		return fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}
	serverURL := fmt.Sprintf("http://localhost:%d", tcpAddr.Port)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.invalidateSearchOnChange(ctx)

	errCh := make(chan error, 1)
	go func() {
		if _, err := fmt.Fprintf(os.Stdout, "techtips listening on %s\n", serverURL); err != nil {
			s.logger.Warn("failed to announce server address", slog.String("url", serverURL), slog.Any("err", err))
		}
		errCh <- s.httpServer.Serve(listener)
	}()

	if s.cfg.AutoOpen {
		go s.openBrowserWhenReady(ctx, serverURL)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.ErrorContext(ctx, "graceful shutdown failed", slog.Any("err", err))
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the server, waiting for active connections until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// invalidateSearchOnChange drops cached search pages for files the content
// watcher reports as changed or removed.
func (s *Server) invalidateSearchOnChange(ctx context.Context) {
	if s.search == nil {
		return
	}
	for evt := range s.content.Subscribe(ctx) {
		if evt.Path != "" {
			s.search.Invalidate(evt.Path)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if queryPage := strings.TrimSpace(r.URL.Query().Get("page")); queryPage != "" {
		http.Redirect(w, r, "/page/"+queryPage, http.StatusMovedPermanently)
		return
	}

	root, err := s.content.CurrentTree(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "load content tree failed", slog.Any("err", err))
		http.Error(w, "failed to load content tree", http.StatusInternalServerError)
		return
	}

	data := s.layoutData(r, root)
	data.Home = true
	data.Cards = content.Cards(s.site, root)
	s.renderTemplate(w, r, http.StatusOK, "layout", data)
}

func (s *Server) handlePageRoute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path, err := parseWildcardPath(r.PathValue("path"))
	if err != nil {
		s.respondPathError(w, err)
		return
	}

	root, err := s.content.CurrentTree(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "load content tree failed", slog.Any("err", err))
		http.Error(w, "failed to load content tree", http.StatusInternalServerError)
		return
	}

	data := s.layoutData(r, root)
	status := http.StatusOK

	doc, err := s.content.Document(ctx, path)
	switch {
	case err == nil:
		data.Page = pageViewFromDocument(root, path, doc)
		data.Active = data.Page.Path
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, content.ErrInvalidPath):
		status = http.StatusNotFound
		data.Page = missingPage(path)
	default:
		s.logger.WarnContext(ctx, "page load failed", slog.Any("err", err), slog.String("path", path))
		http.Error(w, "failed to load page", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, r, status, "layout", data)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	node, err := s.content.CurrentTree(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "fetch tree failed", slog.Any("err", err))
		respondJSON(w, http.StatusInternalServerError, errorResponse("failed to load tree"))
		return
	}

	if isHTMXRequest(r) {
		active := firstQuery(r, "active", "current", "page")
		setHXTrigger(w, map[string]any{
			"treeUpdated": map[string]any{
				"active": active,
			},
		})
		s.renderTemplate(w, r, http.StatusOK, "tree", treeViewData{
			Node:   node,
			Active: active,
		})
		return
	}

	resp := struct {
		GeneratedAt time.Time  `json:"generatedAt"`
		Root        *tree.Node `json:"root"`
	}{
		GeneratedAt: time.Now(),
		Root:        node,
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path, err := parseWildcardPath(r.PathValue("path"))
	if err != nil {
		s.respondPathError(w, err)
		return
	}

	doc, err := s.content.Document(ctx, path)
	if err != nil {
		status := s.documentErrorStatus(ctx, err, path)
		if isHTMXRequest(r) && status == http.StatusNotFound {
			setHXTrigger(w, map[string]any{
				"pageLoaded": map[string]any{
					"path":    path,
					"missing": true,
				},
			})
			s.renderTemplate(w, r, http.StatusOK, "page", missingPage(path))
			return
		}
		respondJSON(w, status, errorResponse(err.Error()))
		return
	}

	if isHTMXRequest(r) {
		root, err := s.content.CurrentTree(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "refresh tree for breadcrumbs failed", slog.Any("err", err))
		}
		page := pageViewFromDocument(root, path, doc)
		setHXTrigger(w, map[string]any{
			"pageLoaded": map[string]any{
				"path":  page.Path,
				"title": page.Title,
			},
		})
		w.Header().Set("X-Techtips-Path", page.Path)
		s.renderTemplate(w, r, http.StatusOK, "page", page)
		return
	}

	rel := canonicalPath(path)
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "raw" || format == "markdown" {
		//nolint:govet // inline struct field order optimized for readability
		resp := struct {
			Metadata renderer.Metadata `json:"metadata"`
			Modified time.Time         `json:"modified"`
			Path     string            `json:"path"`
			Raw      string            `json:"raw"`
		}{
			Path:     rel,
			Raw:      doc.Raw,
			Metadata: doc.Metadata,
			Modified: doc.Modified,
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	//nolint:govet // inline struct field order optimized for readability
	resp := struct {
		Metadata renderer.Metadata `json:"metadata"`
		Modified time.Time         `json:"modified"`
		Path     string            `json:"path"`
		HTML     string            `json:"html"`
	}{
		Path:     rel,
		HTML:     doc.HTML,
		Metadata: doc.Metadata,
		Modified: doc.Modified,
	}
	respondJSON(w, http.StatusOK, resp)
}

// documentErrorStatus maps a document load failure to a status code and logs it.
func (s *Server) documentErrorStatus(ctx context.Context, err error, path string) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, content.ErrInvalidPath):
		return http.StatusBadRequest
	}
	s.logger.WarnContext(ctx, "load page failed", slog.Any("err", err), slog.String("path", path))
	return http.StatusInternalServerError
}

func parseWildcardPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errPathRequired
	}
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		return "", errInvalidPathEncoding
	}
	path := strings.TrimSpace(decoded)
	if path == "" {
		return "", errPathRequired
	}
	return path, nil
}

func (s *Server) respondPathError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPathRequired):
		respondJSON(w, http.StatusBadRequest, errorResponse("path is required"))
	case errors.Is(err, errInvalidPathEncoding):
		respondJSON(w, http.StatusBadRequest, errorResponse("invalid path encoding"))
	default:
		respondJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.search == nil {
		respondJSON(w, http.StatusServiceUnavailable, errorResponse("search not configured"))
		return
	}

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		if isHTMXRequest(r) {
			setHXTrigger(w, map[string]any{
				"searchResults": map[string]any{"query": "", "count": 0},
			})
			s.renderTemplate(w, r, http.StatusOK, "search", searchViewData{})
			return
		}
		respondJSON(w, http.StatusBadRequest, errorResponse("query parameter 'q' is required"))
		return
	}

	opts, err := parseSearchOptions(r.URL.Query())
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	opts.ExcludeDirs = s.content.TreeOptions().ExcludeDirs

	results, err := s.search.Search(ctx, query, opts)
	if err != nil {
		s.logger.WarnContext(ctx, "search failed", slog.Any("err", err))
		respondJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if isHTMXRequest(r) {
		setHXTrigger(w, map[string]any{
			"searchResults": map[string]any{
				"query": query,
				"count": len(results),
			},
		})
		s.renderTemplate(w, r, http.StatusOK, "search", searchViewData{
			Query:   query,
			Count:   len(results),
			Results: results,
		})
		return
	}

	resp := struct {
		Query   string          `json:"query"`
		Results []search.Result `json:"results"`
		Options search.Options  `json:"options"`
		Count   int             `json:"count"`
	}{
		Query:   query,
		Count:   len(results),
		Results: results,
		Options: opts,
	}
	respondJSON(w, http.StatusOK, resp)
}

func parseSearchOptions(params url.Values) (search.Options, error) {
	var opts search.Options
	boolParams := []struct {
		dst  *bool
		name string
	}{
		{&opts.CaseSensitive, "caseSensitive"},
		{&opts.SearchHidden, "hidden"},
		{&opts.IncludeCode, "code"},
	}
	for _, p := range boolParams {
		v := params.Get(p.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid %s value", p.name)
		}
		*p.dst = b
	}

	intParams := []struct {
		dst  *int
		name string
	}{
		{&opts.Context, "context"},
		{&opts.Limit, "limit"},
	}
	for _, p := range intParams {
		v := params.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid %s value", p.name)
		}
		*p.dst = n
	}

	opts.IncludeGlobs = params["glob"]
	opts.ExcludeGlobs = params["exclude"]
	return opts, nil
}

func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.render(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "render template failed", slog.Any("err", err), slog.String("template", name))
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.DebugContext(r.Context(), "write template response failed", slog.Any("err", err))
	}
}

// layoutData fills the parts of the full-page view shared by every route.
func (s *Server) layoutData(r *http.Request, root *tree.Node) layoutViewData {
	return layoutViewData{
		Site: siteViewData{
			Tree:    root,
			Title:   s.site.Title,
			Tagline: s.site.Tagline,
			Theme:   s.themeFor(r).Name,
		},
		CustomCSSURLs:   s.customCSSURLs(),
		SearchAvailable: s.search != nil,
	}
}

func pageViewFromDocument(root *tree.Node, path string, doc renderer.Document) pageViewData {
	rel := canonicalPath(path)
	title := doc.Metadata.Title
	if title == "" {
		title = titleFromPath(rel)
	}

	var crumbs []breadcrumb
	if root != nil {
		crumbs = breadcrumbsFor(root, rel)
	}

	return pageViewData{
		Path:        rel,
		Title:       title,
		HTML:        template.HTML(doc.HTML), //nolint:gosec // HTML from trusted renderer
		Metadata:    doc.Metadata,
		Modified:    doc.Modified,
		Headings:    doc.Headings,
		Images:      doc.Images,
		Breadcrumbs: crumbs,
	}
}

func missingPage(path string) pageViewData {
	return pageViewData{
		Path:    path,
		Title:   fmt.Sprintf("%s (missing)", titleFromPath(path)),
		Missing: true,
	}
}

// canonicalPath adds the ".md" extension the content service assumes for
// extensionless paths.
func canonicalPath(path string) string {
	path = strings.TrimPrefix(filepath.ToSlash(path), "/")
	if tree.IsMarkdown(path) {
		return path
	}
	return path + ".md"
}

func titleFromPath(p string) string {
	name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Untitled Document"
	}
	return titleCaser.String(name)
}

func breadcrumbsFor(root *tree.Node, target string) []breadcrumb {
	nodes := findNodePath(root, target)
	if len(nodes) <= 1 {
		return nil
	}
	nodes = nodes[1:]
	out := make([]breadcrumb, 0, len(nodes))
	for i, node := range nodes {
		title := node.Title
		if title == "" {
			title = titleFromPath(node.RelativePath)
		}
		crumb := breadcrumb{Title: title}
		if node.Type == tree.NodeTypeFile && i != len(nodes)-1 {
			crumb.Path = node.RelativePath
		}
		out = append(out, crumb)
	}
	return out
}

func findNodePath(root *tree.Node, target string) []*tree.Node {
	if root == nil {
		return nil
	}
	if strings.EqualFold(root.RelativePath, target) {
		return []*tree.Node{root}
	}
	for _, child := range root.Children {
		if path := findNodePath(child, target); len(path) > 0 {
			return append([]*tree.Node{root}, path...)
		}
	}
	return nil
}

// handleEvents streams content events as named server-sent events, so
// browsers can listen per event type.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch := s.content.Subscribe(ctx)

	if _, err := w.Write([]byte(": ready\n\n")); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			payload, err := encodeJSON(evt)
			if err != nil {
				s.logger.WarnContext(ctx, "encode sse event failed", slog.Any("err", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse("path parameter is required"))
		return
	}

	rel, _, err := s.content.ResolvePath(path)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid export path attempted", slog.String("path", path))
		respondJSON(w, http.StatusBadRequest, errorResponse("invalid path"))
		return
	}

	format := exporter.FormatHTML
	if raw := strings.TrimSpace(r.URL.Query().Get("format")); raw != "" {
		parsed, ok := exporter.ParseFormat(raw)
		if !ok {
			respondJSON(w, http.StatusBadRequest, errorResponse("invalid format. Supported formats: html, pdf, markdown, txt"))
			return
		}
		format = parsed
	}

	if _, err := s.content.Source(ctx, rel); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		s.logger.WarnContext(ctx, "export document not found", slog.Any("err", err), slog.String("path", rel))
		respondJSON(w, status, errorResponse("document not found"))
		return
	}

	var buf bytes.Buffer
	opts := exporter.ExportPageOptions{
		RootDir: s.content.Root(),
		Path:    rel,
		Format:  format,
		Theme:   s.themeFor(r).Name,
		Writer:  &buf,
	}
	if err := s.exporter.ExportPage(ctx, opts); err != nil {
		s.logger.ErrorContext(ctx, "export failed", slog.Any("err", err), slog.String("path", rel), slog.String("format", string(format)))
		respondJSON(w, http.StatusInternalServerError, errorResponse("export failed"))
		return
	}

	filename := sanitizeFilename(rel) + exporter.FileExtension(format)
	w.Header().Set("Content-Type", exporter.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.DebugContext(ctx, "write export failed", slog.Any("err", err))
	}
}

func sanitizeFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		if r == ' ' {
			return '-'
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if name == "" {
		name = "export"
	}
	return name
}

func errorResponse(message string) map[string]string {
	return map[string]string{"error": message}
}

// handleMedia serves images and other files referenced by pages.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rawPath, err := parseWildcardPath(r.PathValue("path"))
	if err != nil {
		s.respondPathError(w, err)
		return
	}

	cleanPath := filepath.Clean(filepath.FromSlash(rawPath))
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) || filepath.IsAbs(cleanPath) {
		s.logger.WarnContext(ctx, "invalid media path attempted", slog.String("path", rawPath))
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	absRoot := s.content.Root()
	absPath := filepath.Join(absRoot, cleanPath)
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		s.logger.WarnContext(ctx, "media path outside root directory attempted",
			slog.String("path", rawPath),
			slog.String("resolved", absPath))
		http.Error(w, "Invalid path", http.StatusForbidden)
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		s.logger.WarnContext(ctx, "failed to stat media file", slog.Any("err", err), slog.String("path", rawPath))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.Error(w, "Path is a directory", http.StatusBadRequest)
		return
	}

	http.ServeFile(w, r, absPath)
}

func firstQuery(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, name := range names {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) openBrowserWhenReady(ctx context.Context, url string) {
	timer := time.NewTimer(300 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		if err := openBrowser(ctx, url); err != nil {
			s.logger.WarnContext(ctx, "auto-open failed", slog.String("url", url), slog.Any("err", err))
		}
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	return cmd.Start()
}
