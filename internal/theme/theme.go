// Package theme defines the site's light and dark color themes and renders
// them as CSS custom properties plus a chroma stylesheet for code blocks.
package theme

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"

	"github.com/euforicio/techtips/internal/syntax"
)

// Default is the theme served when the visitor has not chosen one.
const Default = "dark"

// ErrUnknownTheme is returned by Get for names other than dark and light.
var ErrUnknownTheme = errors.New("unknown theme")

// Color is one CSS custom property.
type Color struct {
	Var   string
	Value string
}

// Fonts are the font stacks shared by both themes.
var Fonts = []Color{
	{"font-heading", "'Bricolage Grotesque', sans-serif"},
	{"font-body", "'IBM Plex Sans', sans-serif"},
	{"font-code", "'Fira Code', monospace"},
}

// Theme is a named palette plus per-category code colors.
type Theme struct {
	Name   string
	Colors []Color
	Syntax map[syntax.Category]string
}

var themes = map[string]*Theme{
	"dark": {
		Name: "dark",
		Colors: []Color{
			{"bg", "#0d1117"},
			{"bg-secondary", "#161b22"},
			{"bg-tertiary", "#21262d"},
			{"bg-card", "#1c2128"},
			{"text", "#e6edf3"},
			{"text-muted", "#8b949e"},
			{"text-faint", "#484f58"},
			{"border", "#30363d"},
			{"accent", "#00d4aa"},
			{"accent-dim", "rgba(0,212,170,0.12)"},
			{"accent-alt", "#f0883e"},
			{"header-bg", "rgba(13,17,23,0.9)"},
			{"code-bg", "#161b22"},
			{"code-border", "#30363d"},
			{"blockquote-bg", "rgba(0,212,170,0.06)"},
			{"blockquote-border", "#00d4aa"},
			{"table-alt", "rgba(255,255,255,0.025)"},
			{"table-header", "#21262d"},
			{"inline-code", "#f0883e"},
			{"inline-code-bg", "rgba(240,136,62,0.12)"},
			{"skeleton", "linear-gradient(90deg,#21262d 25%,#2d333b 50%,#21262d 75%)"},
			{"shadow", "0 8px 32px rgba(0,0,0,0.5)"},
			{"sidebar-bg", "#0d1117"},
		},
		Syntax: map[syntax.Category]string{
			syntax.Comment:   "#6a9955",
			syntax.String:    "#ce9178",
			syntax.Keyword:   "#569cd6",
			syntax.Number:    "#b5cea8",
			syntax.Variable:  "#9cdcfe",
			syntax.Type:      "#4ec9b0",
			syntax.Operator:  "#d4d4d4",
			syntax.Attribute: "#9cdcfe",
			syntax.Tag:       "#4ec9b0",
			syntax.Plain:     "#d4d4d4",
		},
	},
	"light": {
		Name: "light",
		Colors: []Color{
			{"bg", "#fafaf7"},
			{"bg-secondary", "#f0ece3"},
			{"bg-tertiary", "#e8e2d9"},
			{"bg-card", "#ffffff"},
			{"text", "#1a1814"},
			{"text-muted", "#6b6560"},
			{"text-faint", "#a09890"},
			{"border", "#d4cfc7"},
			{"accent", "#007acc"},
			{"accent-dim", "rgba(0,122,204,0.1)"},
			{"accent-alt", "#c05000"},
			{"header-bg", "rgba(250,250,247,0.9)"},
			{"code-bg", "#f0ece3"},
			{"code-border", "#d4cfc7"},
			{"blockquote-bg", "rgba(0,122,204,0.05)"},
			{"blockquote-border", "#007acc"},
			{"table-alt", "rgba(0,0,0,0.025)"},
			{"table-header", "#e8e2d9"},
			{"inline-code", "#c05000"},
			{"inline-code-bg", "rgba(192,80,0,0.08)"},
			{"skeleton", "linear-gradient(90deg,#e8e2d9 25%,#f0ece3 50%,#e8e2d9 75%)"},
			{"shadow", "0 8px 32px rgba(0,0,0,0.1)"},
			{"sidebar-bg", "#fafaf7"},
		},
		Syntax: map[syntax.Category]string{
			syntax.Comment:   "#008000",
			syntax.String:    "#a31515",
			syntax.Keyword:   "#0000ff",
			syntax.Number:    "#098658",
			syntax.Variable:  "#001080",
			syntax.Type:      "#267f99",
			syntax.Operator:  "#383838",
			syntax.Attribute: "#ff0000",
			syntax.Tag:       "#800000",
			syntax.Plain:     "#383838",
		},
	},
}

// Names lists the available themes.
func Names() []string {
	return []string{"dark", "light"}
}

// Get returns the named theme.
func Get(name string) (*Theme, error) {
	t, ok := themes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
	return t, nil
}

// Resolve returns the named theme, or the default theme if name is unknown.
func Resolve(name string) *Theme {
	if t, err := Get(name); err == nil {
		return t
	}
	return themes[Default]
}

// Toggle returns the name of the opposite theme.
func Toggle(name string) string {
	if Resolve(name).Name == "dark" {
		return "light"
	}
	return "dark"
}

// Color looks up a palette entry by variable name.
func (t *Theme) Color(name string) string {
	for _, c := range t.Colors {
		if c.Var == name {
			return c.Value
		}
	}
	return ""
}

// ChromaStyle builds a chroma style whose colors follow the theme's syntax
// palette and code background.
func (t *Theme) ChromaStyle() (*chroma.Style, error) {
	entries := chroma.StyleEntries{
		chroma.Background: fmt.Sprintf("bg:%s %s", t.Color("code-bg"), t.Syntax[syntax.Plain]),
	}
	for _, c := range syntax.Categories() {
		if c == syntax.Plain {
			continue
		}
		entries[c.ChromaType()] = t.Syntax[c]
	}
	style, err := chroma.NewStyle("techtips-"+t.Name, entries)
	if err != nil {
		return nil, fmt.Errorf("build chroma style %s: %w", t.Name, err)
	}
	return style, nil
}

// WriteCSS writes the theme's custom properties on :root followed by the
// class based chroma rules for code blocks.
func (t *Theme) WriteCSS(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "/* theme: %s */\n:root {\n", t.Name)
	fmt.Fprintf(&b, "  color-scheme: %s;\n", t.Name)
	for _, c := range t.Colors {
		fmt.Fprintf(&b, "  --%s: %s;\n", c.Var, c.Value)
	}
	for _, c := range Fonts {
		fmt.Fprintf(&b, "  --%s: %s;\n", c.Var, c.Value)
	}
	for _, c := range syntax.Categories() {
		fmt.Fprintf(&b, "  --syn-%s: %s;\n", c, t.Syntax[c])
	}
	b.WriteString("}\n\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write theme variables: %w", err)
	}

	style, err := t.ChromaStyle()
	if err != nil {
		return err
	}
	if err := Formatter().WriteCSS(w, style); err != nil {
		return fmt.Errorf("write chroma css: %w", err)
	}
	return nil
}

// Formatter returns the chroma HTML formatter that pairs with WriteCSS.
func Formatter() *html.Formatter {
	return html.New(
		html.WithClasses(true),
		html.WithAllClasses(true),
		html.ClassPrefix(""),
		html.WithLineNumbers(false),
		html.PreventSurroundingPre(true),
	)
}
