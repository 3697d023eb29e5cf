package renderer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/euforicio/techtips/internal/markdown"
)

const frontmatterDelimiter = "---"

// Metadata captures optional frontmatter data rendered alongside a document.
type Metadata struct {
	Raw         map[string]any `json:"raw,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// IsZero reports whether the metadata carries any meaningful values.
func (m Metadata) IsZero() bool {
	if m.Title != "" || m.Description != "" || len(m.Tags) > 0 {
		return false
	}
	return len(m.Raw) == 0
}

// ParseMetadata splits a leading YAML frontmatter block from content and
// decodes it. The returned body is the markdown after the block. When the
// document has no frontmatter title, the first level 1 heading is used.
// A decode error is returned alongside the body and the heading title.
func ParseMetadata(content []byte) (Metadata, string, error) {
	front, body := splitFrontmatter(string(content))

	var (
		meta Metadata
		err  error
	)
	if front != "" {
		raw := make(map[string]any)
		if decodeErr := yaml.Unmarshal([]byte(front), &raw); decodeErr != nil {
			err = fmt.Errorf("decode frontmatter: %w", decodeErr)
		} else {
			meta = metadataFromMap(raw)
		}
	}

	if meta.Title == "" {
		meta.Title = firstTitle(body)
	}
	return meta, body, err
}

// splitFrontmatter returns the text between an opening "---" line at the very
// start of content and the next "---" line, plus everything after it. Without
// a closed block the whole content is the body.
func splitFrontmatter(content string) (string, string) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelimiter+"\n") {
		return "", content
	}

	rest := normalized[len(frontmatterDelimiter)+1:]
	for offset := 0; offset <= len(rest); {
		end := strings.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if end >= 0 {
			line = rest[offset : offset+end]
		}
		if strings.TrimRight(line, " \t") == frontmatterDelimiter {
			front := rest[:offset]
			if end < 0 {
				return front, ""
			}
			return front, rest[offset+end+1:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return "", content
}

func firstTitle(body string) string {
	for _, h := range markdown.ParseHeadings(body) {
		if h.Level == 1 {
			return markdown.PlainText(h.Text)
		}
	}
	return ""
}

func metadataFromMap(raw map[string]any) Metadata {
	var meta Metadata
	if len(raw) == 0 {
		return meta
	}

	meta.Raw = make(map[string]any, len(raw))
	for k, v := range raw {
		meta.Raw[k] = v
		switch k {
		case "title":
			if str, ok := toString(v); ok {
				meta.Title = str
			}
		case "description", "summary":
			if str, ok := toString(v); ok {
				meta.Description = str
			}
		case "tags", "keywords":
			meta.Tags = toStringSlice(v)
		}
	}
	return meta
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if str, ok := toString(item); ok {
				out = append(out, str)
			}
		}
		return out
	case []string:
		return append([]string(nil), vv...)
	default:
		if str, ok := toString(v); ok {
			return []string{str}
		}
		return nil
	}
}
