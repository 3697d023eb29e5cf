package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/euforicio/techtips/internal/config"
	"github.com/euforicio/techtips/internal/content"
	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/exporter"
	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer"
	"github.com/euforicio/techtips/internal/search"
	"github.com/euforicio/techtips/internal/syntax"
)

func TestAPIHandlers(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	t.Run("tree returns root snapshot", func(t *testing.T) {
		rec := srv.get(t, "/api/tree", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var resp struct {
			GeneratedAt time.Time  `json:"generatedAt"`
			Root        *tree.Node `json:"root"`
		}
		decodeBody(t, rec, &resp)
		if resp.Root == nil || len(resp.Root.Children) == 0 {
			t.Fatalf("expected root with children, got %+v", resp.Root)
		}
		index := resp.Root.Find("index.md")
		if index == nil {
			t.Fatalf("expected to find index.md in tree; got %+v", resp.Root.Children)
		}
		if index.Metadata == nil || index.Metadata.Title != "Welcome" {
			t.Fatalf("expected metadata title 'Welcome', got %#v", index.Metadata)
		}
		if resp.Root.Find(".drafts/secret.md") != nil {
			t.Fatalf("hidden pages must not appear in the tree")
		}
	})

	t.Run("tree returns HTML for HTMX requests", func(t *testing.T) {
		rec := srv.get(t, "/api/tree?active=streaming.md", htmx)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get("HX-Trigger"), "streaming.md") {
			t.Fatalf("expected HX-Trigger naming the active page, got %q", rec.Header().Get("HX-Trigger"))
		}
		doc := parseHTML(t, rec)
		if doc.Find("[data-tree-path]").Length() == 0 {
			t.Fatalf("expected tree fragment")
		}
		if got := doc.Find("li.active").AttrOr("data-tree-path", ""); got != "streaming.md" {
			t.Fatalf("expected streaming.md to be active, got %q", got)
		}
	})

	t.Run("page endpoint renders markdown", func(t *testing.T) {
		rec := srv.get(t, "/api/page/index.md", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d with body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Path string `json:"path"`
			HTML string `json:"html"`
		}
		decodeBody(t, rec, &resp)
		if resp.Path != "index.md" {
			t.Fatalf("expected path index.md, got %s", resp.Path)
		}
		if !strings.Contains(resp.HTML, `<h1 id="welcome">Welcome`) {
			t.Fatalf("expected rendered HTML to contain heading, got %q", resp.HTML)
		}
		if !strings.Contains(resp.HTML, `href="/page/guides/getting_started.md"`) {
			t.Fatalf("expected markdown links rewritten to page routes, got %q", resp.HTML)
		}
	})

	t.Run("page endpoint returns raw markdown when requested", func(t *testing.T) {
		rec := srv.get(t, "/api/page/index?format=raw", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d with body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Path string `json:"path"`
			Raw  string `json:"raw"`
		}
		decodeBody(t, rec, &resp)
		if resp.Path != "index.md" {
			t.Fatalf("expected extension to be added, got %s", resp.Path)
		}
		if !strings.Contains(resp.Raw, "# Welcome") {
			t.Fatalf("expected raw markdown content, got %q", resp.Raw)
		}
	})

	t.Run("page endpoint supports percent-encoded paths", func(t *testing.T) {
		rec := srv.get(t, "/api/page/guides%2Fgetting_started.md?format=raw", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d with body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Path string `json:"path"`
			Raw  string `json:"raw"`
		}
		decodeBody(t, rec, &resp)
		if resp.Path != "guides/getting_started.md" {
			t.Fatalf("expected decoded path, got %s", resp.Path)
		}
		if !strings.Contains(resp.Raw, "Clone the repository") {
			t.Fatalf("expected raw markdown body, got %q", resp.Raw)
		}
	})

	t.Run("page endpoint returns HTML for HTMX requests", func(t *testing.T) {
		rec := srv.get(t, "/api/page/streaming.md", htmx)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("HX-Trigger") == "" {
			t.Fatalf("expected HX-Trigger header, got empty")
		}
		if rec.Header().Get("X-Techtips-Path") != "streaming.md" {
			t.Fatalf("expected path header, got %q", rec.Header().Get("X-Techtips-Path"))
		}
		doc := parseHTML(t, rec)
		if doc.Find("#page-view").Length() != 1 {
			t.Fatalf("expected page fragment, got %q", rec.Body.String())
		}
		if doc.Find(".toc a[href='#ports']").Length() != 1 {
			t.Fatalf("expected table of contents entry for Ports")
		}
	})

	t.Run("page endpoint handles missing documents", func(t *testing.T) {
		rec := srv.get(t, "/api/page/missing.md", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for missing document, got %d", rec.Code)
		}

		rec = srv.get(t, "/api/page/missing.md", htmx)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "was not found") {
			t.Fatalf("expected missing fragment for HTMX, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("blocks endpoint expands inline tokens", func(t *testing.T) {
		rec := srv.get(t, "/api/blocks/streaming.md", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d with body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Path   string `json:"path"`
			Blocks []struct {
				Kind   markdown.BlockKind    `json:"kind"`
				Inline []markdown.Inline     `json:"inline"`
				Cells  [][][]markdown.Inline `json:"cells"`
				Tokens []syntax.Token        `json:"tokens"`
				Block  json.RawMessage       `json:"block"`
			} `json:"blocks"`
		}
		decodeBody(t, rec, &resp)

		var kinds []markdown.BlockKind
		for _, b := range resp.Blocks {
			kinds = append(kinds, b.Kind)
		}
		want := []markdown.BlockKind{
			markdown.KindHeading, markdown.KindParagraph,
			markdown.KindHeading, markdown.KindTable,
			markdown.KindHeading, markdown.KindCodeFence,
			markdown.KindBlockquote,
		}
		if len(kinds) != len(want) {
			t.Fatalf("unexpected block kinds %v", kinds)
		}
		for i := range want {
			if kinds[i] != want[i] {
				t.Fatalf("block %d: expected %s, got %s", i, want[i], kinds[i])
			}
		}

		var bold bool
		for _, in := range resp.Blocks[1].Inline {
			if in.Kind == markdown.InlineBold && in.Text == "Jellyfin" {
				bold = true
			}
		}
		if !bold {
			t.Fatalf("expected bold Jellyfin inline token, got %+v", resp.Blocks[1].Inline)
		}

		cells := resp.Blocks[3].Cells
		if len(cells) != 3 || cells[1][0][0].Text != "Jellyfin" {
			t.Fatalf("unexpected table cells %+v", cells)
		}

		var code struct {
			Source string `json:"source"`
		}
		if err := json.Unmarshal(resp.Blocks[5].Block, &code); err != nil {
			t.Fatalf("decode code block: %v", err)
		}
		var joined strings.Builder
		for _, tok := range resp.Blocks[5].Tokens {
			joined.WriteString(tok.Text)
		}
		if joined.String() != code.Source {
			t.Fatalf("code tokens do not tile the source:\n%q\n%q", joined.String(), code.Source)
		}
	})

	t.Run("blocks endpoint nests list items", func(t *testing.T) {
		rec := srv.get(t, "/api/blocks/selfhosting.md", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Blocks []struct {
				Kind  markdown.BlockKind `json:"kind"`
				Items []itemView         `json:"items"`
			} `json:"blocks"`
		}
		decodeBody(t, rec, &resp)
		for _, b := range resp.Blocks {
			if b.Kind != markdown.KindList {
				continue
			}
			if len(b.Items) != 3 || len(b.Items[1].Children) != 1 {
				t.Fatalf("unexpected list shape %+v", b.Items)
			}
			if got := b.Items[1].Children[0].Inline[0].Text; got != "use a wildcard record" {
				t.Fatalf("unexpected nested item %q", got)
			}
			return
		}
		t.Fatalf("expected a list block")
	})

	t.Run("headings endpoint lists the table of contents", func(t *testing.T) {
		rec := srv.get(t, "/api/headings/streaming.md", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp struct {
			Headings []markdown.TOCEntry `json:"headings"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Headings) != 3 {
			t.Fatalf("expected 3 headings, got %+v", resp.Headings)
		}
		if resp.Headings[1].ID != "ports" || resp.Headings[1].Level != 2 || resp.Headings[2].ID != "compose" {
			t.Fatalf("unexpected headings %+v", resp.Headings)
		}
	})

	t.Run("headings endpoint handles missing documents", func(t *testing.T) {
		rec := srv.get(t, "/api/headings/missing.md", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("highlight endpoint tokenizes code", func(t *testing.T) {
		code := "x := 42 // answer\n"
		rec := srv.post(t, "/api/highlight", `{"code":"x := 42 // answer\n","language":"go"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d with body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Tokens []syntax.Token `json:"tokens"`
		}
		decodeBody(t, rec, &resp)

		var joined strings.Builder
		categories := map[syntax.Category]bool{}
		for _, tok := range resp.Tokens {
			joined.WriteString(tok.Text)
			categories[tok.Category] = true
		}
		if joined.String() != code {
			t.Fatalf("tokens do not tile input: %q", joined.String())
		}
		if !categories[syntax.Comment] || !categories[syntax.Number] {
			t.Fatalf("expected comment and number tokens, got %+v", resp.Tokens)
		}
	})

	t.Run("highlight endpoint rejects unknown fields", func(t *testing.T) {
		rec := srv.post(t, "/api/highlight", `{"code":"x","lang":"go"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("theme stylesheet is generated", func(t *testing.T) {
		rec := srv.get(t, "/theme/light.css", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css") {
			t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "color-scheme: light") {
			t.Fatalf("expected light palette, got %q", rec.Body.String())
		}
		for _, path := range []string{"/theme/neon.css", "/theme/dark"} {
			if rec := srv.get(t, path, nil); rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404 for %s, got %d", path, rec.Code)
			}
		}
	})

	t.Run("search endpoint returns results", func(t *testing.T) {
		rec := srv.get(t, "/api/search?q=jellyfin", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d with body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Results []search.Result `json:"results"`
			Count   int             `json:"count"`
		}
		decodeBody(t, rec, &resp)
		if resp.Count == 0 || resp.Count != len(resp.Results) {
			t.Fatalf("expected matching results, got %+v", resp)
		}
		for _, r := range resp.Results {
			if r.Path != "streaming.md" {
				t.Fatalf("unexpected result outside streaming.md: %+v", r)
			}
		}
	})

	t.Run("search endpoint returns HTML for HTMX requests", func(t *testing.T) {
		rec := srv.get(t, "/api/search?q=tuning", htmx)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("HX-Trigger") == "" {
			t.Fatalf("expected HX-Trigger header")
		}
		doc := parseHTML(t, rec)
		if !strings.Contains(doc.Find(".search-summary").Text(), "Results for") {
			t.Fatalf("expected rendered search fragment")
		}
		href, _ := doc.Find(".search-list a").First().Attr("href")
		if href != "/page/guides/advanced_topics.md#tuning" {
			t.Fatalf("expected link to the matching section, got %q", href)
		}
	})

	t.Run("search endpoint validates parameters", func(t *testing.T) {
		for _, path := range []string{"/api/search", "/api/search?q=x&context=-1", "/api/search?q=x&caseSensitive=maybe"} {
			if rec := srv.get(t, path, nil); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s, got %d", path, rec.Code)
			}
		}
	})

	t.Run("media endpoint serves referenced files", func(t *testing.T) {
		rec := srv.get(t, "/media/guides/img/diagram.svg", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "<svg") {
			t.Fatalf("expected svg body")
		}
		if rec := srv.get(t, "/media/guides/img/missing.png", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for missing media, got %d", rec.Code)
		}
		if rec := srv.get(t, "/media/guides", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for directory, got %d", rec.Code)
		}
	})

	t.Run("health check", func(t *testing.T) {
		if rec := srv.get(t, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestRequestIDs(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	rec := srv.get(t, "/healthz", nil)
	if _, err := uuid.Parse(rec.Header().Get(requestIDHeader)); err != nil {
		t.Fatalf("expected generated request id, got %q", rec.Header().Get(requestIDHeader))
	}

	supplied := uuid.NewString()
	rec = srv.get(t, "/healthz", func(r *http.Request) { r.Header.Set(requestIDHeader, supplied) })
	if rec.Header().Get(requestIDHeader) != supplied {
		t.Fatalf("expected supplied id to be kept, got %q", rec.Header().Get(requestIDHeader))
	}

	rec = srv.get(t, "/healthz", func(r *http.Request) { r.Header.Set(requestIDHeader, "not an id\r\n") })
	if got := rec.Header().Get(requestIDHeader); got == "" || strings.Contains(got, "not an id") {
		t.Fatalf("expected malformed id to be replaced, got %q", got)
	}
}

func TestRootHandlerRendersHome(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	rec := srv.get(t, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := parseHTML(t, rec)

	if got := doc.Find("title").Text(); got != "Test Tips" {
		t.Fatalf("unexpected title %q", got)
	}
	if doc.Find("#page-region").Length() != 1 {
		t.Fatalf("expected rendered layout with page region")
	}
	if live, _ := doc.Find("body").Attr("data-live"); live != "true" {
		t.Fatalf("expected live body marker")
	}

	cards := doc.Find(".cards .card")
	if cards.Length() != 2 {
		t.Fatalf("expected one card per topic, got %d", cards.Length())
	}
	first := doc.Find("#topic-streaming a.card-label")
	if href, _ := first.Attr("href"); href != "/page/streaming.md" {
		t.Fatalf("unexpected card link %q", href)
	}
	if first.Text() != "📺 Streaming" {
		t.Fatalf("unexpected card label %q", first.Text())
	}

	if rec := srv.get(t, "/?page=streaming.md", nil); rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/page/streaming.md" {
		t.Fatalf("expected legacy redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := srv.get(t, "/nowhere", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", rec.Code)
	}
}

func TestPageRouteRendersFullPage(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	rec := srv.get(t, "/page/guides/getting_started.md", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := parseHTML(t, rec)

	if got := doc.Find("title").Text(); got != "Getting Started · Test Tips" {
		t.Fatalf("unexpected title %q", got)
	}
	if page, _ := doc.Find("body").Attr("data-page"); page != "guides/getting_started.md" {
		t.Fatalf("unexpected data-page %q", page)
	}
	if href, _ := doc.Find(`link[rel="preload"][as="image"]`).Attr("href"); href != "/media/guides/img/diagram.svg" {
		t.Fatalf("expected image preload, got %q", href)
	}
	var toc []string
	doc.Find(".toc a").Each(func(_ int, s *goquery.Selection) {
		toc = append(toc, s.AttrOr("href", ""))
	})
	if strings.Join(toc, ",") != "#install,#next-steps" {
		t.Fatalf("unexpected table of contents %v", toc)
	}
	if doc.Find(".breadcrumbs li").Length() != 2 {
		t.Fatalf("expected directory and page breadcrumbs")
	}
	if doc.Find(`li.tree-file.active[data-tree-path="guides/getting_started.md"]`).Length() != 1 {
		t.Fatalf("expected active page highlighted in tree")
	}
	var pdfLink string
	doc.Find(".exports a").Each(func(_ int, s *goquery.Selection) {
		if href := s.AttrOr("href", ""); strings.Contains(href, "format=pdf") {
			pdfLink = href
		}
	})
	if !strings.HasPrefix(pdfLink, "/api/export?path=guides%2") || !strings.Contains(pdfLink, "getting_started.md") {
		t.Fatalf("expected pdf export link for the page, got %q", pdfLink)
	}

	rec = srv.get(t, "/page/nope.md", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing page, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "was not found") {
		t.Fatalf("expected missing page notice")
	}
}

func TestThemeCookie(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	rec := srv.post(t, "/api/theme", `{"theme":"light"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d with body %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != themeCookie || cookies[0].Value != "light" {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	home := srv.get(t, "/", func(r *http.Request) { r.AddCookie(cookies[0]) })
	doc := parseHTML(t, home)
	if theme, _ := doc.Find("html").Attr("data-theme"); theme != "light" {
		t.Fatalf("expected light theme from cookie, got %q", theme)
	}
	if href, _ := doc.Find("#theme-css").Attr("href"); href != "/theme/light.css" {
		t.Fatalf("unexpected theme stylesheet %q", href)
	}

	if rec := srv.post(t, "/api/theme", `{"theme":"neon"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown theme, got %d", rec.Code)
	}

	stale := srv.get(t, "/", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: themeCookie, Value: "neon"}) })
	if theme, _ := parseHTML(t, stale).Find("html").Attr("data-theme"); theme != "dark" {
		t.Fatalf("expected default theme for unknown cookie, got %q", theme)
	}
}

func TestEventsHandlerSendsReadyComment(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleEvents(rec, req)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ": ready\n\n") {
		t.Fatalf("expected ready comment in body, got %q", rec.Body.String())
	}
}

func TestEventsStreamNamedEvents(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() || scanner.Text() != ": ready" {
		t.Fatalf("expected ready comment, got %q", scanner.Text())
	}

	target := filepath.Join(srv.content.Root(), "streaming.md")
	if err := os.WriteFile(target, []byte("# 📺 Streaming\n\nUpdated.\n"), 0o644); err != nil {
		t.Fatalf("update page: %v", err)
	}

	var named bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: pageUpdated" {
			named = true
			continue
		}
		if named && strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, `"path":"streaming.md"`) {
				t.Fatalf("unexpected event payload %q", line)
			}
			return
		}
	}
	t.Fatalf("no pageUpdated event before timeout: %v", scanner.Err())
}

func TestExportHandlerSecurity(t *testing.T) {
	t.Parallel()
	srv, cleanup := newTestServer(t, nil)
	t.Cleanup(cleanup)

	errorOf := func(t *testing.T, rec *httptest.ResponseRecorder) string {
		t.Helper()
		var resp map[string]string
		decodeBody(t, rec, &resp)
		return resp["error"]
	}

	for _, bad := range []string{"../etc/passwd", "../../etc/passwd", "subdir/../../../etc/passwd", "/etc/passwd"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			t.Parallel()
			rec := srv.get(t, "/api/export?format=html&path="+bad, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if msg := errorOf(t, rec); !strings.Contains(msg, "invalid path") {
				t.Fatalf("expected 'invalid path' error, got %q", msg)
			}
		})
	}

	t.Run("rejects invalid format", func(t *testing.T) {
		t.Parallel()
		rec := srv.get(t, "/api/export?path=index.md&format=invalid", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		if msg := errorOf(t, rec); !strings.Contains(msg, "invalid format") {
			t.Fatalf("expected 'invalid format' error, got %q", msg)
		}
	})

	t.Run("requires path parameter", func(t *testing.T) {
		t.Parallel()
		rec := srv.get(t, "/api/export?format=html", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		if msg := errorOf(t, rec); !strings.Contains(msg, "path parameter is required") {
			t.Fatalf("expected 'path parameter is required' error, got %q", msg)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		t.Parallel()
		rec := srv.get(t, "/api/export?path=nope.md", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("defaults to html with the visitor theme", func(t *testing.T) {
		t.Parallel()
		rec := srv.get(t, "/api/export?path=index.md", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: themeCookie, Value: "light"})
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d with body: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
			t.Fatalf("expected content-type text/html, got %s", ct)
		}
		disposition := rec.Header().Get("Content-Disposition")
		if !strings.Contains(disposition, "attachment") || !strings.Contains(disposition, "index.html") {
			t.Fatalf("unexpected disposition %s", disposition)
		}
		if !strings.Contains(rec.Body.String(), `data-theme="light"`) {
			t.Fatalf("expected export to use the cookie theme")
		}
	})

	t.Run("accepts valid nested path", func(t *testing.T) {
		t.Parallel()
		rec := srv.get(t, "/api/export?path=guides/getting_started&format=md", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d with body: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/markdown") {
			t.Fatalf("expected content-type text/markdown, got %s", ct)
		}
		if !strings.Contains(rec.Header().Get("Content-Disposition"), "getting_started.md") {
			t.Fatalf("unexpected disposition %s", rec.Header().Get("Content-Disposition"))
		}
	})
}

func TestTitleFromPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"guides/getting_started.md": "Getting Started",
		"self-hosting.md":           "Self Hosting",
		"NOTES.md":                  "Notes",
		".md":                       "Untitled Document",
	}
	for in, want := range cases {
		if got := titleFromPath(in); got != want {
			t.Errorf("titleFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

var htmx = func(r *http.Request) { r.Header.Set("HX-Request", "true") }

// newTestServer serves a private copy of testdata/wiki. prepare, when set,
// runs against the copy before the services start.
func newTestServer(t *testing.T, prepare func(root string)) (*testServer, func()) {
	t.Helper()

	tempRoot := t.TempDir()
	copyDir(t, filepath.Join("..", "..", "testdata", "wiki"), tempRoot)
	if prepare != nil {
		prepare(tempRoot)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	renderSvc := renderer.NewService(logger)

	contentSvc, err := content.NewService(context.Background(), tempRoot, renderSvc, logger, content.Options{})
	if err != nil {
		t.Fatalf("content service init failed: %v", err)
	}

	searchSvc, err := search.NewService(tempRoot, logger)
	if err != nil {
		_ = contentSvc.Close()
		t.Fatalf("search service init failed: %v", err)
	}

	exp, err := exporter.New(logger, exporter.WithRenderer(renderSvc))
	if err != nil {
		_ = contentSvc.Close()
		t.Fatalf("exporter init failed: %v", err)
	}

	site, err := config.LoadSite(filepath.Join(tempRoot, config.DefaultSiteFile))
	if err != nil {
		_ = contentSvc.Close()
		t.Fatalf("load site failed: %v", err)
	}

	cfg := config.Default()
	cfg.RootDir = tempRoot
	cfg.AutoOpen = false
	cfg.AssetsDir = filepath.Join("..", "..", "static")

	srv, err := New(cfg, site, logger, contentSvc, searchSvc, exp)
	if err != nil {
		_ = contentSvc.Close()
		t.Fatalf("server init failed: %v", err)
	}

	cleanup := func() {
		_ = contentSvc.Close()
	}
	return &testServer{Server: srv, handler: srv.Handler()}, cleanup
}

// testServer wraps Server with its full middleware stack.
type testServer struct {
	*Server
	handler http.Handler
}

func (ts *testServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ts.handler.ServeHTTP(w, r)
}

func (ts *testServer) get(t *testing.T, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

// post sends a same-origin JSON request.
func (ts *testServer) post(t *testing.T, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Host = "localhost:8080"
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func copyDir(t *testing.T, src, dst string) {
	t.Helper()
	if err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	}); err != nil {
		t.Fatalf("copyDir failed: %v", err)
	}
}
