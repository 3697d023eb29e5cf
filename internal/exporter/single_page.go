package exporter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	pdf "github.com/stephenafamo/goldmark-pdf"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/euforicio/techtips/internal/content/tree"
	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer"
	"github.com/euforicio/techtips/internal/theme"
)

// Format represents an export format.
type Format string

const (
	// FormatHTML exports a standalone HTML document.
	FormatHTML Format = "html"
	// FormatMarkdown exports the page source unchanged.
	FormatMarkdown Format = "markdown"
	// FormatPlainText exports the page text without markup.
	FormatPlainText Format = "txt"
	// FormatPDF exports a PDF document.
	FormatPDF Format = "pdf"
)

// ErrInvalidPath is returned for page paths that leave the export root.
var ErrInvalidPath = errors.New("invalid page path")

// ValidFormats returns the list of supported export formats.
func ValidFormats() []Format {
	return []Format{FormatHTML, FormatMarkdown, FormatPlainText, FormatPDF}
}

// ParseFormat normalizes a format name.
func ParseFormat(format string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "md" {
		f = FormatMarkdown
	}
	for _, valid := range ValidFormats() {
		if f == valid {
			return f, true
		}
	}
	return "", false
}

// IsValidFormat checks if the given format is valid.
func IsValidFormat(format string) bool {
	_, ok := ParseFormat(format)
	return ok
}

// ExportPageOptions configures a single page export.
type ExportPageOptions struct {
	Writer  io.Writer
	Format  Format
	RootDir string
	Path    string
	// Theme colors the html export; empty means the default theme.
	Theme string
}

// ExportPage exports a single page in the specified format.
func (e *Exporter) ExportPage(ctx context.Context, opts ExportPageOptions) error {
	if err := validateExportPageOptions(opts); err != nil {
		return err
	}

	rootDir, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	rel, absPath, err := resolveExportPath(rootDir, opts.Path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("page %s: %w", rel, err)
	}
	if info.IsDir() {
		return fmt.Errorf("page %s is a directory: %w", rel, fs.ErrNotExist)
	}
	raw, err := os.ReadFile(absPath) //nolint:gosec // absPath constructed from validated root
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}

	format, _ := ParseFormat(string(opts.Format))
	if format == FormatMarkdown {
		_, err := opts.Writer.Write(raw)
		return err
	}

	if format == FormatPDF {
		return e.exportPDF(ctx, raw, opts.Writer)
	}

	doc, err := e.renderer.Render(ctx, rel, info.ModTime(), raw)
	if err != nil {
		return fmt.Errorf("render %s: %w", rel, err)
	}
	if format == FormatHTML {
		return e.exportHTML(doc, opts.Theme, opts.Writer)
	}
	return writePlainText(opts.Writer, doc.Blocks)
}

func validateExportPageOptions(opts ExportPageOptions) error {
	if strings.TrimSpace(opts.RootDir) == "" {
		return errors.New("root directory is required")
	}
	if strings.TrimSpace(opts.Path) == "" {
		return errors.New("page path is required")
	}
	if opts.Writer == nil {
		return errors.New("writer is required")
	}
	if !IsValidFormat(string(opts.Format)) {
		return fmt.Errorf("unsupported format: %s (allowed: html, pdf, markdown, txt)", opts.Format)
	}
	return nil
}

// resolveExportPath returns the cleaned slash-separated page path and its
// absolute location. A missing ".md" extension is added.
func resolveExportPath(rootDir, pagePath string) (string, string, error) {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(strings.TrimSpace(pagePath))))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") || filepath.IsAbs(clean) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidPath, pagePath)
	}
	if !tree.IsMarkdown(clean) {
		clean += ".md"
	}

	absPath := filepath.Join(rootDir, filepath.FromSlash(clean))
	if !strings.HasPrefix(absPath, rootDir+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: must be within root directory", ErrInvalidPath)
	}
	return clean, absPath, nil
}

func (e *Exporter) exportHTML(doc renderer.Document, themeName string, w io.Writer) error {
	var css strings.Builder
	t := theme.Resolve(themeName)
	if err := t.WriteCSS(&css); err != nil {
		return err
	}

	data := standaloneViewData{
		Title:    firstNonEmpty(doc.Metadata.Title, "Untitled"),
		Theme:    t.Name,
		CSS:      template.CSS(css.String()), //nolint:gosec // generated from the built-in palettes
		HTML:     template.HTML(doc.HTML),    //nolint:gosec // HTML from trusted renderer
		Metadata: doc.Metadata,
		Modified: doc.Modified,
	}
	return e.templates.render(w, "standalone", data)
}

// writePlainText writes blocks as readable text: headings underlined, list
// items indented, code indented by four spaces and tables as pipe separated
// rows.
func writePlainText(w io.Writer, blocks []markdown.Block) error {
	bw := bufio.NewWriter(w)
	for i, block := range blocks {
		if i > 0 {
			bw.WriteByte('\n')
		}
		switch b := block.(type) {
		case *markdown.Heading:
			text := markdown.PlainText(b.Text)
			bw.WriteString(text + "\n")
			switch b.Level {
			case 1:
				bw.WriteString(strings.Repeat("=", utf8.RuneCountInString(text)) + "\n")
			case 2:
				bw.WriteString(strings.Repeat("-", utf8.RuneCountInString(text)) + "\n")
			}
		case *markdown.Paragraph:
			bw.WriteString(markdown.PlainText(b.Text) + "\n")
		case *markdown.Blockquote:
			for _, line := range strings.Split(markdown.PlainText(b.Text), "\n") {
				bw.WriteString("> " + line + "\n")
			}
		case *markdown.List:
			writeListText(bw, b.Items, b.Start, 0)
		case *markdown.CodeFence:
			for _, line := range strings.Split(b.Source, "\n") {
				if line == "" {
					bw.WriteByte('\n')
					continue
				}
				bw.WriteString("    " + line + "\n")
			}
		case *markdown.Image:
			fmt.Fprintf(bw, "[image: %s] (%s)\n", b.Alt, b.URL)
		case *markdown.Table:
			for _, row := range b.Rows {
				cells := make([]string, len(row.Cells))
				for j, c := range row.Cells {
					cells[j] = markdown.PlainText(c)
				}
				bw.WriteString(strings.Join(cells, " | ") + "\n")
			}
		}
	}
	return bw.Flush()
}

func writeListText(w *bufio.Writer, items []*markdown.ListNode, start, depth int) {
	indent := strings.Repeat("  ", depth)
	for i, item := range items {
		marker := "-"
		if item.Ordered {
			marker = strconv.Itoa(start+i) + "."
		}
		w.WriteString(indent + marker + " " + markdown.PlainText(item.Text) + "\n")
		writeListText(w, item.Children, 1, depth+1)
	}
}

// exportPDF renders the page through goldmark's PDF renderer. The goldmark
// input is rebuilt from ParseBlocks so the PDF has the same block structure
// as the page the wiki serves. D2 fences become rasterized images first when
// a D2 compiler is configured.
func (e *Exporter) exportPDF(ctx context.Context, raw []byte, w io.Writer) error {
	source, err := (&diagramEncoder{d2: e.d2, logger: e.logger}).encode(ctx, pdfSource(raw))
	if err != nil {
		return fmt.Errorf("encode diagrams: %w", err)
	}

	var highlight []highlighting.Option
	style, err := theme.Resolve("light").ChromaStyle()
	if err != nil {
		e.logger.Warn("pdf: falling back to the github code style", slog.Any("err", err))
		highlight = append(highlight, highlighting.WithStyle("github"))
	} else {
		highlight = append(highlight, highlighting.WithCustomStyle(style))
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			meta.Meta,
			highlighting.NewHighlighting(highlight...),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRenderer(pdf.New()),
	)

	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return fmt.Errorf("convert markdown to PDF: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// pdfSource keeps the page's frontmatter block for goldmark-meta and replaces
// the body with its block stream written as CommonMark.
func pdfSource(raw []byte) []byte {
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	_, body, _ := renderer.ParseMetadata([]byte(normalized))
	front := ""
	if strings.HasSuffix(normalized, body) {
		front = normalized[:len(normalized)-len(body)]
	}
	return []byte(front + commonMarkSource(markdown.ParseBlocks(body)))
}

// ContentType returns the MIME type for the given format.
func ContentType(format Format) string {
	switch format {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatPlainText:
		return "text/plain; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// FileExtension returns the file extension for the given format.
func FileExtension(format Format) string {
	switch format {
	case FormatHTML:
		return ".html"
	case FormatMarkdown:
		return ".md"
	case FormatPlainText:
		return ".txt"
	case FormatPDF:
		return ".pdf"
	default:
		return ""
	}
}

type standaloneViewData struct {
	Metadata renderer.Metadata
	Modified time.Time
	Title    string
	Theme    string
	CSS      template.CSS
	HTML     template.HTML
}
