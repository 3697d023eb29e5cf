package markdown

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// BlockKind names the type of a block token.
type BlockKind string

// Block kinds produced by ParseBlocks.
const (
	KindHeading    BlockKind = "heading"
	KindParagraph  BlockKind = "paragraph"
	KindBlockquote BlockKind = "blockquote"
	KindList       BlockKind = "list"
	KindCodeFence  BlockKind = "code"
	KindImage      BlockKind = "image"
	KindTable      BlockKind = "table"
)

const quotePrefix = "> "

// Block is one structural unit of a parsed document. Text fields hold raw
// inline markdown; pass them to ParseInline when rendering.
type Block interface {
	Kind() BlockKind
	block()
}

// Heading is an ATX heading of level 1 to 3.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// Paragraph joins consecutive plain lines with single spaces.
type Paragraph struct {
	Text string `json:"text"`
}

// Blockquote joins consecutive "> " lines with single spaces.
type Blockquote struct {
	Text string `json:"text"`
}

// List owns a tree of items. Start is the number of the first top-level
// ordered item.
type List struct {
	Items []*ListNode `json:"items"`
	Start int         `json:"start"`
}

// CodeFence is a fenced code block. Source excludes the fence lines.
type CodeFence struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

// Image is a line holding a single image.
type Image struct {
	Alt string `json:"alt"`
	URL string `json:"url"`
}

// Table is a header row followed by zero or more body rows.
type Table struct {
	Rows []Row `json:"rows"`
}

// Row is one table row of trimmed raw cell text.
type Row struct {
	Cells  []string `json:"cells"`
	Header bool     `json:"header"`
}

func (*Heading) Kind() BlockKind    { return KindHeading }
func (*Paragraph) Kind() BlockKind  { return KindParagraph }
func (*Blockquote) Kind() BlockKind { return KindBlockquote }
func (*List) Kind() BlockKind       { return KindList }
func (*CodeFence) Kind() BlockKind  { return KindCodeFence }
func (*Image) Kind() BlockKind      { return KindImage }
func (*Table) Kind() BlockKind      { return KindTable }

func (*Heading) block()    {}
func (*Paragraph) block()  {}
func (*Blockquote) block() {}
func (*List) block()       {}
func (*CodeFence) block()  {}
func (*Image) block()      {}
func (*Table) block()      {}

// ID returns the anchor id of the heading. It always equals the id
// ParseHeadings reports for the same text.
func (h *Heading) ID() string {
	return Slugify(h.Text)
}

// ParseBlocks segments document into block tokens in source order.
//
// Each position is classified by the first matching rule: fence, heading,
// blockquote, table, standalone image, list, blank line, then paragraph.
// Unterminated fences run to the end of the document.
func ParseBlocks(document string) []Block {
	lines := splitLines(document)

	var blocks []Block
	for i := 0; i < len(lines); {
		line := lines[i]

		if lang, ok := FenceLanguage(line); ok {
			i++
			start := i
			for i < len(lines) && !isFence(lines[i]) {
				i++
			}
			blocks = append(blocks, &CodeFence{Language: lang, Source: strings.Join(lines[start:i], "\n")})
			i++
			continue
		}

		if level, text, ok := atxHeading(line); ok {
			blocks = append(blocks, &Heading{Level: level, Text: text})
			i++
			continue
		}

		if strings.HasPrefix(line, quotePrefix) {
			var parts []string
			for i < len(lines) && strings.HasPrefix(lines[i], quotePrefix) {
				parts = append(parts, lines[i][len(quotePrefix):])
				i++
			}
			blocks = append(blocks, &Blockquote{Text: strings.Join(parts, " ")})
			continue
		}

		if startsTable(lines, i) {
			table := &Table{Rows: []Row{{Header: true, Cells: splitRow(line)}}}
			i += 2
			for i < len(lines) && strings.HasPrefix(lines[i], "|") {
				table.Rows = append(table.Rows, Row{Cells: splitRow(lines[i])})
				i++
			}
			blocks = append(blocks, table)
			continue
		}

		if alt, url, ok := standaloneImage(line); ok {
			blocks = append(blocks, &Image{Alt: alt, URL: url})
			i++
			continue
		}

		if first, ok := parseListItem(line); ok {
			start := i
			for i < len(lines) && !isBlank(lines[i]) {
				if _, ok := parseListItem(lines[i]); !ok {
					break
				}
				i++
			}
			blocks = append(blocks, &List{Items: BuildListTree(lines[start:i]), Start: first.start()})
			continue
		}

		if isBlank(line) {
			i++
			continue
		}

		parts := []string{line}
		i++
		for i < len(lines) && !isBlank(lines[i]) && !startsBlock(lines, i) {
			parts = append(parts, lines[i])
			i++
		}
		blocks = append(blocks, &Paragraph{Text: strings.Join(parts, " ")})
	}
	return blocks
}

// startsBlock reports whether lines[i] opens any non-paragraph block.
func startsBlock(lines []string, i int) bool {
	line := lines[i]
	if isFence(line) || strings.HasPrefix(line, quotePrefix) || startsTable(lines, i) {
		return true
	}
	if _, _, ok := atxHeading(line); ok {
		return true
	}
	if _, _, ok := standaloneImage(line); ok {
		return true
	}
	_, ok := parseListItem(line)
	return ok
}

func startsTable(lines []string, i int) bool {
	return strings.HasPrefix(lines[i], "|") && i+1 < len(lines) && isTableSeparator(lines[i+1])
}

// isTableSeparator matches a leading '|', one or more characters from
// whitespace, '-', ':' and '|', then a '|'.
func isTableSeparator(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	run := line[1:]
	for j, r := range run {
		if r != '-' && r != ':' && r != '|' && !unicode.IsSpace(r) {
			run = run[:j]
			break
		}
	}
	return strings.LastIndexByte(run, '|') >= 1
}

// splitRow drops the empty field before the leading pipe and the field after
// a trailing pipe, then trims every cell.
func splitRow(line string) []string {
	fields := strings.Split(line, "|")[1:]
	if n := len(fields); n > 0 && strings.TrimSpace(fields[n-1]) == "" {
		fields = fields[:n-1]
	}
	cells := make([]string, len(fields))
	for j, f := range fields {
		cells[j] = strings.TrimSpace(f)
	}
	return cells
}

// standaloneImage matches a line that holds nothing but ![alt](url).
func standaloneImage(line string) (string, string, bool) {
	alt, url, n, ok := matchImage(line)
	if !ok || strings.TrimSpace(line[n:]) != "" {
		return "", "", false
	}
	return alt, url, true
}

// matchImage matches ![alt](url) at the start of s and returns its length.
// Alt may be empty, url may not, and neither may contain its closing bracket
// or a line break.
func matchImage(s string) (string, string, int, bool) {
	if !strings.HasPrefix(s, "![") {
		return "", "", 0, false
	}
	altEnd := strings.IndexByte(s[2:], ']')
	if altEnd < 0 {
		return "", "", 0, false
	}
	alt := s[2 : 2+altEnd]
	rest := s[2+altEnd+1:]
	if !strings.HasPrefix(rest, "(") {
		return "", "", 0, false
	}
	urlEnd := strings.IndexByte(rest[1:], ')')
	if urlEnd < 1 {
		return "", "", 0, false
	}
	url := rest[1 : 1+urlEnd]
	if strings.ContainsRune(alt, '\n') || strings.ContainsRune(url, '\n') {
		return "", "", 0, false
	}
	return alt, url, 2 + altEnd + 1 + 1 + urlEnd + 1, true
}

// ImageURLs returns the target of every ![alt](url) in document, in order,
// including images embedded inside paragraphs.
func ImageURLs(document string) []string {
	var urls []string
	for rest := document; rest != ""; {
		idx := strings.Index(rest, "![")
		if idx < 0 {
			break
		}
		rest = rest[idx:]
		if _, url, n, ok := matchImage(rest); ok {
			urls = append(urls, url)
			rest = rest[n:]
			continue
		}
		_, size := utf8.DecodeRuneInString(rest)
		rest = rest[size:]
	}
	return urls
}
