package server

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/euforicio/techtips/internal/content"
	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/exporter"
	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer"
	"github.com/euforicio/techtips/internal/search"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

type templateRenderer struct {
	tmpl *template.Template
}

func newTemplateRenderer() (*templateRenderer, error) {
	funcs := template.FuncMap{
		"dict": func(values ...any) (map[string]any, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("dict requires an even number of args")
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				m[key] = values[i+1]
			}
			return m, nil
		},
		"isActive": strings.EqualFold,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return humanize.Time(t)
		},
		"isoTime": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
		"bytes": func(n int64) string {
			return humanize.Bytes(uint64(max(n, 0)))
		},
		"hasMetadata": func(meta renderer.Metadata) bool {
			return !meta.IsZero()
		},
		"pageURL": func(rel string) string {
			return "/page/" + rel
		},
		"exportFormats": exporter.ValidFormats,
		"resultURL": func(r search.Result) string {
			u := "/page/" + r.Path
			if r.Anchor != "" {
				u += "#" + r.Anchor
			}
			return u
		},
	}

	base, err := template.New("layout").Funcs(funcs).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}

	return &templateRenderer{tmpl: base}, nil
}

func (r *templateRenderer) render(w io.Writer, name string, data any) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

//nolint:govet // struct fields grouped for template readability
type layoutViewData struct {
	Site            siteViewData
	Page            pageViewData
	Cards           []content.Card
	Active          string
	CustomCSSURLs   []string
	Home            bool
	SearchAvailable bool
}

type siteViewData struct {
	Tree    *tree.Node
	Title   string
	Tagline string
	Theme   string
}

//nolint:govet // struct fields grouped for template readability
type pageViewData struct {
	Path        string
	Title       string
	HTML        template.HTML
	Metadata    renderer.Metadata
	Modified    time.Time
	Headings    []markdown.TOCEntry
	Images      []string
	Breadcrumbs []breadcrumb
	Missing     bool
}

type treeViewData struct {
	Node   *tree.Node
	Active string
}

type searchViewData struct {
	Query   string
	Results []search.Result
	Count   int
}

type breadcrumb struct {
	Title string
	Path  string
}
