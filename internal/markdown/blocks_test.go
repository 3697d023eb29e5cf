package markdown_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/euforicio/techtips/internal/markdown"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}

func TestParseBlocksDocument(t *testing.T) {
	t.Parallel()

	doc := lines(
		"# Jellyfin",
		"",
		"Jellyfin is a **free** media server",
		"for your own hardware.",
		"> Tip: use hardware",
		"> transcoding.",
		"",
		"![Dashboard](img/dashboard.png)",
		"",
		"| Port | Use |",
		"|------|:---:|",
		"| 8096 | http |",
		"| 8920 | https |",
		"",
		"- one",
		"- two",
		"",
		"```yaml",
		"services:",
		"  jellyfin:",
		"```",
	)

	blocks := markdown.ParseBlocks(doc)
	require.Len(t, blocks, 7)

	assert.Equal(t, &markdown.Heading{Level: 1, Text: "Jellyfin"}, blocks[0])
	assert.Equal(t, &markdown.Paragraph{Text: "Jellyfin is a **free** media server for your own hardware."}, blocks[1])
	assert.Equal(t, &markdown.Blockquote{Text: "Tip: use hardware transcoding."}, blocks[2])
	assert.Equal(t, &markdown.Image{Alt: "Dashboard", URL: "img/dashboard.png"}, blocks[3])
	assert.Equal(t, &markdown.Table{Rows: []markdown.Row{
		{Header: true, Cells: []string{"Port", "Use"}},
		{Cells: []string{"8096", "http"}},
		{Cells: []string{"8920", "https"}},
	}}, blocks[4])

	list, ok := blocks[5].(*markdown.List)
	require.True(t, ok)
	assert.Equal(t, 1, list.Start)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "one", list.Items[0].Text)
	assert.Equal(t, "two", list.Items[1].Text)

	assert.Equal(t, &markdown.CodeFence{Language: "yaml", Source: "services:\n  jellyfin:"}, blocks[6])
}

func TestParseBlocksKinds(t *testing.T) {
	t.Parallel()

	blocks := markdown.ParseBlocks("# h\n\np\n\n> q\n\n- l\n\n```\nc\n```\n![a](b)\n|x|\n|-|\n")
	var kinds []markdown.BlockKind
	for _, b := range blocks {
		kinds = append(kinds, b.Kind())
	}
	assert.Equal(t, []markdown.BlockKind{
		markdown.KindHeading,
		markdown.KindParagraph,
		markdown.KindBlockquote,
		markdown.KindList,
		markdown.KindCodeFence,
		markdown.KindImage,
		markdown.KindTable,
	}, kinds)
}

func TestParseBlocksFenceLanguage(t *testing.T) {
	t.Parallel()

	blocks := markdown.ParseBlocks("```python\nprint(1)\n```")
	require.Len(t, blocks, 1)
	assert.Equal(t, &markdown.CodeFence{Language: "python", Source: "print(1)"}, blocks[0])
}

func TestParseBlocksUnterminatedFence(t *testing.T) {
	t.Parallel()

	blocks := markdown.ParseBlocks("intro\n\n```sh\necho hi\n\n# comment")
	require.Len(t, blocks, 2)
	assert.Equal(t, &markdown.CodeFence{Language: "sh", Source: "echo hi\n\n# comment"}, blocks[1])
}

func TestParseBlocksFenceKeepsInteriorVerbatim(t *testing.T) {
	t.Parallel()

	blocks := markdown.ParseBlocks("```\n- not a list\n| not | table |\n```\nafter")
	require.Len(t, blocks, 2)
	assert.Equal(t, "- not a list\n| not | table |", blocks[0].(*markdown.CodeFence).Source)
	assert.Equal(t, &markdown.Paragraph{Text: "after"}, blocks[1])
}

func TestParseBlocksTable(t *testing.T) {
	t.Parallel()

	t.Run("header and body", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("|a|b|", "|--|--|", "|1|2|"))
		require.Len(t, blocks, 1)
		assert.Equal(t, &markdown.Table{Rows: []markdown.Row{
			{Header: true, Cells: []string{"a", "b"}},
			{Cells: []string{"1", "2"}},
		}}, blocks[0])
	})

	t.Run("header only", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("| a | b |", "| --- | --- |", "", "text"))
		require.Len(t, blocks, 2)
		table, ok := blocks[0].(*markdown.Table)
		require.True(t, ok)
		require.Len(t, table.Rows, 1)
		assert.True(t, table.Rows[0].Header)
	})

	t.Run("mismatched columns", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("|a|b|c|", "|-|-|-|", "|1|", "|1|2|3|4|"))
		table := blocks[0].(*markdown.Table)
		require.Len(t, table.Rows, 3)
		assert.Equal(t, []string{"1"}, table.Rows[1].Cells)
		assert.Equal(t, []string{"1", "2", "3", "4"}, table.Rows[2].Cells)
	})

	t.Run("missing trailing pipe keeps last cell", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("| a | b", "|---|---|"))
		assert.Equal(t, []string{"a", "b"}, blocks[0].(*markdown.Table).Rows[0].Cells)
	})

	t.Run("pipe line without separator is a paragraph", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("| just a pipe", "next line"))
		require.Len(t, blocks, 1)
		assert.Equal(t, &markdown.Paragraph{Text: "| just a pipe next line"}, blocks[0])
	})
}

func TestParseBlocksBlockquoteNeedsSpace(t *testing.T) {
	t.Parallel()

	blocks := markdown.ParseBlocks(lines(">no space", "> quoted"))
	require.Len(t, blocks, 2)
	assert.Equal(t, &markdown.Paragraph{Text: ">no space"}, blocks[0])
	assert.Equal(t, &markdown.Blockquote{Text: "quoted"}, blocks[1])
}

func TestParseBlocksParagraphStopsAtBlockStart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		next string
		kind markdown.BlockKind
	}{
		{"heading", "## Next", markdown.KindHeading},
		{"fence", "```", markdown.KindCodeFence},
		{"quote", "> q", markdown.KindBlockquote},
		{"bullet", "- item", markdown.KindList},
		{"numbered", "2. item", markdown.KindList},
		{"indented bullet", "  * item", markdown.KindList},
		{"image", "![x](y.png)", markdown.KindImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blocks := markdown.ParseBlocks(lines("some text", tt.next))
			require.Len(t, blocks, 2)
			assert.Equal(t, &markdown.Paragraph{Text: "some text"}, blocks[0])
			assert.Equal(t, tt.kind, blocks[1].Kind())
		})
	}
}

func TestParseBlocksMalformedLinesProgress(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"#",
		"# ",
		"!not an image",
		"![alt](url) trailing caption",
		"|",
		"||",
		"-",
		"1.",
		"*",
		"#### four",
		"#hashtag",
	}
	for _, in := range inputs {
		blocks := markdown.ParseBlocks(in)
		require.Len(t, blocks, 1, "input %q", in)
		assert.Equal(t, &markdown.Paragraph{Text: in}, blocks[0], "input %q", in)
	}
}

func TestParseBlocksList(t *testing.T) {
	t.Parallel()

	t.Run("nesting", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("- a", "  - b", "- c"))
		require.Len(t, blocks, 1)
		list := blocks[0].(*markdown.List)
		assert.Equal(t, []*markdown.ListNode{
			{Text: "a", Children: []*markdown.ListNode{{Text: "b"}}},
			{Text: "c"},
		}, list.Items)
	})

	t.Run("ordered start", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("3. x", "4. y"))
		require.Len(t, blocks, 1)
		list := blocks[0].(*markdown.List)
		assert.Equal(t, 3, list.Start)
		require.Len(t, list.Items, 2)
		assert.True(t, list.Items[0].Ordered)
	})

	t.Run("start read from first line only", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("- intro", "7. seven"))
		assert.Equal(t, 1, blocks[0].(*markdown.List).Start)
	})

	t.Run("zero start clamps to one", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks("0. zero")
		assert.Equal(t, 1, blocks[0].(*markdown.List).Start)
	})

	t.Run("blank line splits lists", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("1. a", "2. b", "", "3. c"))
		require.Len(t, blocks, 2)
		assert.Equal(t, 1, blocks[0].(*markdown.List).Start)
		assert.Equal(t, 3, blocks[1].(*markdown.List).Start)
	})

	t.Run("non list line ends the block", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("- a", "plain", "- b"))
		require.Len(t, blocks, 3)
		assert.Equal(t, markdown.KindList, blocks[0].Kind())
		assert.Equal(t, &markdown.Paragraph{Text: "plain"}, blocks[1])
		assert.Equal(t, markdown.KindList, blocks[2].Kind())
	})

	t.Run("indented first line", func(t *testing.T) {
		t.Parallel()
		blocks := markdown.ParseBlocks(lines("  - a", "  - b"))
		require.Len(t, blocks, 1)
		assert.Len(t, blocks[0].(*markdown.List).Items, 2)
	})
}

func TestParseBlocksCRLF(t *testing.T) {
	t.Parallel()

	blocks := markdown.ParseBlocks("# Title\r\n\r\nbody\r\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, &markdown.Heading{Level: 1, Text: "Title"}, blocks[0])
	assert.Equal(t, &markdown.Paragraph{Text: "body"}, blocks[1])
}

func TestParseBlocksEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, markdown.ParseBlocks(""))
	assert.Empty(t, markdown.ParseBlocks("\n\n  \n"))
}

func TestParseBlocksDeterministic(t *testing.T) {
	t.Parallel()

	doc := lines("# a", "- b", "  1. c", "|x|y|", "|-|-|", "text *em*")
	assert.Equal(t, markdown.ParseBlocks(doc), markdown.ParseBlocks(doc))
}

func TestImageURLs(t *testing.T) {
	t.Parallel()

	doc := lines(
		"![one](a.png)",
		"Inline ![two](https://example.com/b.jpg) and ![](c.gif).",
		"```",
		"![three](d.png)",
		"```",
		"![broken](",
		"![empty]()",
	)
	assert.Equal(t, []string{"a.png", "https://example.com/b.jpg", "c.gif", "d.png"}, markdown.ImageURLs(doc))
	assert.Empty(t, markdown.ImageURLs("no images here"))
}
