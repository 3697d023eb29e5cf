package exporter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/euforicio/techtips/internal/config"
)

func TestExportWritesStaticSite(t *testing.T) {
	t.Parallel()

	site, err := config.LoadSite(filepath.Join(fixtureRoot(), "site.toml"))
	if err != nil {
		t.Fatalf("LoadSite: %v", err)
	}
	exp, err := New(quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := filepath.Join(t.TempDir(), "site")
	err = exp.Export(context.Background(), Options{
		Site:                site,
		Root:                fixtureRoot(),
		OutputDir:           out,
		BaseURL:             "https://tips.example.com/",
		GenerateSearchIndex: true,
		CleanOutput:         true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	read := func(rel string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("expected %s in export: %v", rel, err)
		}
		return string(data)
	}

	home := read("index.html")
	for _, want := range []string{"Test Tips", "Fixture wiki", `id="topic-streaming"`, `href="/page/streaming.md/"`, `href="https://tips.example.com/"`} {
		if !strings.Contains(home, want) {
			t.Errorf("home page missing %q", want)
		}
	}

	page := read("page/streaming.md/index.html")
	for _, want := range []string{`<h2 id="ports">`, `href="#compose"`, `href="/theme/dark.css"`, "📺 Streaming · Test Tips"} {
		if !strings.Contains(page, want) {
			t.Errorf("streaming page missing %q", want)
		}
	}
	guide := read("page/guides/getting_started.md/index.html")
	if !strings.Contains(guide, `href="/page/guides/advanced_topics.md#tuning"`) {
		t.Errorf("expected wiki link rewritten to page route")
	}

	read("media/guides/img/diagram.svg")
	read("static/css/app.css")
	if css := read("theme/light.css"); !strings.Contains(css, "color-scheme: light") {
		t.Errorf("unexpected light theme css")
	}
	if _, err := os.Stat(filepath.Join(out, "page", ".drafts")); !os.IsNotExist(err) {
		t.Errorf("hidden pages should not be exported")
	}

	var index searchPayload
	if err := json.Unmarshal([]byte(read("search.json")), &index); err != nil {
		t.Fatalf("decode search.json: %v", err)
	}
	if len(index.Documents) != 5 {
		t.Fatalf("expected 5 searchable documents, got %d", len(index.Documents))
	}
	for _, doc := range index.Documents {
		if doc.Path == "streaming.md" {
			if doc.URL != "/page/streaming.md/" || len(doc.Entries) == 0 || doc.Entries[0].Text != "📺 Streaming" {
				t.Fatalf("unexpected search document %+v", doc)
			}
		}
	}

	var treeJSON treePayload
	if err := json.Unmarshal([]byte(read("tree.json")), &treeJSON); err != nil {
		t.Fatalf("decode tree.json: %v", err)
	}
	if treeJSON.Root == nil || len(treeJSON.Root.Files()) != 5 {
		t.Fatalf("unexpected tree payload")
	}
}

func TestExportSkipsOutputInsideRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "tips.md"), []byte("# Tips\n"), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}
	exp, err := New(quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for range 2 {
		if err := exp.Export(context.Background(), Options{Root: root, OutputDir: filepath.Join(root, "public")}); err != nil {
			t.Fatalf("Export: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "public", "page", "public")); !os.IsNotExist(err) {
		t.Fatalf("export output was indexed as content")
	}

	if err := exp.Export(context.Background(), Options{Root: root, OutputDir: root}); err == nil {
		t.Fatalf("expected error when exporting into the content root")
	}
}
