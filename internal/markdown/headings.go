package markdown

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	fenceMarker = "```"
	maxTOCLevel = 3
)

// TOCEntry is a heading extracted for the table of contents.
type TOCEntry struct {
	Text  string `json:"text"`
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// ParseHeadings returns the level 1-3 headings of document in order.
// Lines inside fenced code blocks are skipped so shell or python comments
// in code samples are never reported as headings.
func ParseHeadings(document string) []TOCEntry {
	var (
		entries []TOCEntry
		inFence bool
	)
	for _, line := range splitLines(document) {
		if isFence(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if level, text, ok := atxHeading(line); ok {
			entries = append(entries, TOCEntry{Level: level, Text: text, ID: Slugify(text)})
		}
	}
	return entries
}

// FenceLanguage reports whether line opens or closes a fenced code block and
// returns the trimmed language tag that follows the marker.
func FenceLanguage(line string) (string, bool) {
	if !isFence(line) {
		return "", false
	}
	return strings.TrimSpace(line[len(fenceMarker):]), true
}

func isFence(line string) bool {
	return strings.HasPrefix(line, fenceMarker)
}

// atxHeading matches 1-3 '#' characters, at least one whitespace character
// and at least one further character.
func atxHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > maxTOCLevel {
		return 0, "", false
	}

	rest := line[level:]
	r, size := utf8.DecodeRuneInString(rest)
	if size == 0 || !unicode.IsSpace(r) || len(rest) == size {
		return 0, "", false
	}
	return level, strings.TrimSpace(rest), true
}

func splitLines(document string) []string {
	document = strings.ReplaceAll(document, "\r\n", "\n")
	return strings.Split(document, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
