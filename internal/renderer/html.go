package renderer

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/syntax"
	"github.com/euforicio/techtips/internal/theme"
)

// htmlWriter renders one document's blocks into buf.
type htmlWriter struct {
	ctx     context.Context
	buf     *bytes.Buffer
	service *Service
	links   linkResolver
}

func (w *htmlWriter) blocks(blocks []markdown.Block) error {
	for _, block := range blocks {
		if err := w.block(block); err != nil {
			return err
		}
	}
	return nil
}

func (w *htmlWriter) block(block markdown.Block) error {
	switch b := block.(type) {
	case *markdown.Heading:
		id := b.ID()
		fmt.Fprintf(w.buf, `<h%d id="%s">`, b.Level, id)
		w.inline(b.Text)
		fmt.Fprintf(w.buf, `<a class="anchor" href="#%s" aria-label="Link to this section">#</a></h%d>`+"\n", id, b.Level)
	case *markdown.Paragraph:
		w.buf.WriteString("<p>")
		w.inline(b.Text)
		w.buf.WriteString("</p>\n")
	case *markdown.Blockquote:
		w.buf.WriteString("<blockquote><p>")
		w.inline(b.Text)
		w.buf.WriteString("</p></blockquote>\n")
	case *markdown.List:
		w.list(b.Items, b.Start)
	case *markdown.CodeFence:
		return w.codeFence(b)
	case *markdown.Image:
		w.image(b)
	case *markdown.Table:
		w.table(b)
	default:
		return fmt.Errorf("unsupported block %T", block)
	}
	return nil
}

// list writes sibling items as <ol> when the first item is numbered.
func (w *htmlWriter) list(items []*markdown.ListNode, start int) {
	if len(items) == 0 {
		return
	}

	tag := "ul"
	if items[0].Ordered {
		tag = "ol"
	}
	if tag == "ol" && start > 1 {
		fmt.Fprintf(w.buf, `<ol start="%d">`, start)
	} else {
		w.buf.WriteString("<" + tag + ">")
	}

	for _, item := range items {
		w.buf.WriteString("<li>")
		w.inline(item.Text)
		w.list(item.Children, 1)
		w.buf.WriteString("</li>")
	}
	w.buf.WriteString("</" + tag + ">\n")
}

func (w *htmlWriter) codeFence(fence *markdown.CodeFence) error {
	if r := w.service.fenceRenderer(fence.Language); r != nil {
		return r.RenderFence(w.ctx, w.buf, fence)
	}

	label := fence.Language
	if label == "" {
		label = "code"
	}
	lang := html.EscapeString(fence.Language)

	fmt.Fprintf(w.buf, `<div class="code-block" data-language="%s">`, lang)
	fmt.Fprintf(w.buf, `<div class="code-header"><span class="code-lang">%s</span>`, html.EscapeString(label))
	w.buf.WriteString(`<button type="button" class="copy-button" data-copy-code aria-label="Copy code">Copy</button></div>`)
	w.buf.WriteString(`<pre class="chroma"><code`)
	if lang != "" {
		fmt.Fprintf(w.buf, ` class="language-%s"`, lang)
	}
	w.buf.WriteString(">")

	tokens := syntax.Tokenize(fence.Source, fence.Language)
	if err := theme.Formatter().Format(w.buf, w.service.style, syntax.Iterator(tokens)); err != nil {
		return fmt.Errorf("highlight %s block: %w", label, err)
	}
	w.buf.WriteString("</code></pre></div>\n")
	return nil
}

func (w *htmlWriter) image(img *markdown.Image) {
	fmt.Fprintf(w.buf, `<figure class="image"><img src="%s" alt="%s" loading="lazy">`,
		html.EscapeString(w.links.image(img.URL)), html.EscapeString(img.Alt))
	if img.Alt != "" {
		w.buf.WriteString("<figcaption>")
		w.buf.WriteString(html.EscapeString(img.Alt))
		w.buf.WriteString("</figcaption>")
	}
	w.buf.WriteString("</figure>\n")
}

func (w *htmlWriter) table(t *markdown.Table) {
	w.buf.WriteString(`<div class="table-wrapper"><table>`)
	body := false
	for _, row := range t.Rows {
		cell := "td"
		switch {
		case row.Header:
			cell = "th"
			w.buf.WriteString("<thead>")
		case !body:
			body = true
			w.buf.WriteString("<tbody>")
		}

		w.buf.WriteString("<tr>")
		for _, text := range row.Cells {
			w.buf.WriteString("<" + cell + ">")
			w.inline(text)
			w.buf.WriteString("</" + cell + ">")
		}
		w.buf.WriteString("</tr>")

		if row.Header {
			w.buf.WriteString("</thead>")
		}
	}
	if body {
		w.buf.WriteString("</tbody>")
	}
	w.buf.WriteString("</table></div>\n")
}

func (w *htmlWriter) inline(text string) {
	for _, tok := range markdown.ParseInline(text) {
		content := html.EscapeString(tok.Text)
		switch tok.Kind {
		case markdown.InlineCode:
			w.buf.WriteString("<code>" + content + "</code>")
		case markdown.InlineLink:
			href := w.links.link(tok.Href)
			fmt.Fprintf(w.buf, `<a href="%s"`, html.EscapeString(href))
			if isExternalLink(href) {
				w.buf.WriteString(` target="_blank" rel="noopener noreferrer"`)
			}
			w.buf.WriteString(">" + content + "</a>")
		case markdown.InlineBoldItalic:
			w.buf.WriteString("<strong><em>" + content + "</em></strong>")
		case markdown.InlineBold:
			w.buf.WriteString("<strong>" + content + "</strong>")
		case markdown.InlineItalic:
			w.buf.WriteString("<em>" + content + "</em>")
		default:
			w.buf.WriteString(content)
		}
	}
}

// RenderInline renders a single run of inline markdown to HTML using the
// same link rewriting as full documents rendered at docPath.
func RenderInline(docPath, text string) string {
	var buf bytes.Buffer
	w := &htmlWriter{buf: &buf, links: newLinkResolver(docPath)}
	w.inline(text)
	return strings.TrimSpace(buf.String())
}
