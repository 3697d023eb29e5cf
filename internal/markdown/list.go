package markdown

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ListNode is one list item and its nested items.
// Text is raw inline markdown.
type ListNode struct {
	Text     string      `json:"text"`
	Children []*ListNode `json:"children,omitempty"`
	Ordered  bool        `json:"ordered"`
}

// listItem is a single parsed list line.
type listItem struct {
	text    string
	number  string
	indent  int
	ordered bool
}

// parseListItem matches optional leading whitespace, a bullet ('-' or '*')
// or a digit run followed by '.', and at least one whitespace character.
func parseListItem(line string) (listItem, bool) {
	body := strings.TrimLeftFunc(line, unicode.IsSpace)
	item := listItem{indent: utf8.RuneCountInString(line[:len(line)-len(body)])}

	var rest string
	switch {
	case body == "":
		return listItem{}, false
	case body[0] == '-' || body[0] == '*':
		rest = body[1:]
	default:
		digits := 0
		for digits < len(body) && body[digits] >= '0' && body[digits] <= '9' {
			digits++
		}
		if digits == 0 || digits >= len(body) || body[digits] != '.' {
			return listItem{}, false
		}
		item.ordered = true
		item.number = body[:digits]
		rest = body[digits+1:]
	}

	r, size := utf8.DecodeRuneInString(rest)
	if size == 0 || !unicode.IsSpace(r) {
		return listItem{}, false
	}
	item.text = strings.TrimLeftFunc(rest, unicode.IsSpace)
	return item, true
}

// start returns the ordered-list start value carried by the item, or 1.
func (it listItem) start() int {
	if !it.ordered {
		return 1
	}
	n, err := strconv.Atoi(it.number)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

type stackEntry struct {
	node   *ListNode
	indent int
}

// BuildListTree nests raw list lines by indentation. A strictly deeper line
// becomes a child of the line before it; equal indentation is always a
// sibling, whatever the marker type. Lines that are not list items are
// ignored.
func BuildListTree(lines []string) []*ListNode {
	root := &ListNode{}
	stack := []stackEntry{{node: root, indent: -1}}

	for _, line := range lines {
		item, ok := parseListItem(line)
		if !ok {
			continue
		}
		for len(stack) > 1 && stack[len(stack)-1].indent >= item.indent {
			stack = stack[:len(stack)-1]
		}

		node := &ListNode{Text: item.text, Ordered: item.ordered}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, node)
		stack = append(stack, stackEntry{node: node, indent: item.indent})
	}
	return root.Children
}
