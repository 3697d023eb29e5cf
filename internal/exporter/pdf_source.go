package exporter

import (
	"strconv"
	"strings"

	"github.com/euforicio/techtips/internal/markdown"
)

// commonMarkSource writes blocks back out as markdown that a CommonMark
// parser splits into the same blocks: one blank line between blocks, list
// numbering kept, and paragraph lines that would open another block escaped.
func commonMarkSource(blocks []markdown.Block) string {
	var (
		b        strings.Builder
		lists    int
		prevList bool
	)
	for i, block := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		list, isList := block.(*markdown.List)
		if !isList {
			prevList = false
		}
		switch blk := block.(type) {
		case *markdown.Heading:
			b.WriteString(strings.Repeat("#", blk.Level) + " " + blk.Text + "\n")
		case *markdown.Paragraph:
			b.WriteString(escapeBlockStart(blk.Text) + "\n")
		case *markdown.Blockquote:
			b.WriteString("> " + escapeBlockStart(blk.Text) + "\n")
		case *markdown.List:
			// Adjacent lists of one type merge unless the marker changes.
			if prevList {
				lists++
			} else {
				lists = 0
			}
			writeCommonMarkList(&b, list.Items, max(list.Start, 1), "", lists%2 == 1)
			prevList = true
		case *markdown.CodeFence:
			fence := strings.Repeat("`", max(3, longestRun(blk.Source, '`')+1))
			b.WriteString(fence + blk.Language + "\n")
			if blk.Source != "" {
				b.WriteString(blk.Source + "\n")
			}
			b.WriteString(fence + "\n")
		case *markdown.Image:
			b.WriteString("![" + blk.Alt + "](" + imageDestination(blk.URL) + ")\n")
		case *markdown.Table:
			writeCommonMarkTable(&b, blk.Rows)
		}
	}
	return b.String()
}

func writeCommonMarkList(b *strings.Builder, items []*markdown.ListNode, start int, indent string, alternate bool) {
	if len(items) == 0 {
		return
	}
	// The first sibling decides the marker style for the whole level.
	ordered := items[0].Ordered
	for i, item := range items {
		marker := "-"
		if alternate {
			marker = "*"
		}
		if ordered {
			delim := "."
			if alternate {
				delim = ")"
			}
			marker = strconv.Itoa(start+i) + delim
		}
		b.WriteString(indent + marker + " " + escapeBlockStart(item.Text) + "\n")
		writeCommonMarkList(b, item.Children, 1, indent+strings.Repeat(" ", len(marker)+1), false)
	}
}

func writeCommonMarkTable(b *strings.Builder, rows []markdown.Row) {
	if len(rows) == 0 {
		return
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row.Cells))
	}
	cols = max(cols, 1)

	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := range cols {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	body := rows
	if rows[0].Header {
		writeRow(rows[0].Cells)
		body = rows[1:]
	} else {
		writeRow(nil)
	}
	b.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
	for _, row := range body {
		writeRow(row.Cells)
	}
}

// escapeBlockStart trims leading whitespace and backslash-escapes a first
// character that CommonMark would read as the start of a heading, list,
// quote, fence, thematic break, table, setext underline or HTML block.
func escapeBlockStart(line string) string {
	line = strings.TrimLeft(line, " \t")
	if line == "" {
		return line
	}
	switch line[0] {
	case '#', '>', '`', '~', '|', '<', '=':
		return `\` + line
	case '-', '+', '*', '_':
		if len(line) == 1 || line[1] == ' ' || line[1] == '\t' || isRuleLine(line) {
			return `\` + line
		}
		return line
	}
	if digits := leadingDigits(line); digits > 0 && digits <= 9 && digits < len(line) {
		if d := line[digits]; d == '.' || d == ')' {
			return line[:digits] + `\` + line[digits:]
		}
	}
	return line
}

func isRuleLine(line string) bool {
	return strings.Trim(line, "-*_= \t") == ""
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return longest
}

func imageDestination(url string) string {
	if strings.ContainsAny(url, " ()<>") {
		return "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(url) + ">"
	}
	return url
}
