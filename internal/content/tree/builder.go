// Package tree builds the navigation tree of markdown pages under a content root.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/renderer"
)

// NodeType identifies what a tree node represents.
type NodeType string

// Node type constants for directory and file entries.
const (
	NodeTypeDirectory NodeType = "directory"
	NodeTypeFile      NodeType = "file"
)

// Node represents a navigation entry (directory or markdown page).
type Node struct {
	Modified     time.Time          `json:"modified"`
	Metadata     *renderer.Metadata `json:"metadata,omitempty"`
	Name         string             `json:"name"`
	RawName      string             `json:"rawName"`
	RelativePath string             `json:"relativePath"`
	Slug         string             `json:"slug"`
	Type         NodeType           `json:"type"`
	Title        string             `json:"title"`
	Children     []*Node            `json:"children,omitempty"`
	Headings     int                `json:"headings,omitempty"`
	Size         int64              `json:"size"`
}

// Options control how the tree is constructed.
type Options struct {
	ExcludeDirs   []string
	IncludeHidden bool
}

// Build walks the root directory and returns the tree of markdown pages.
// Directories without any page are left out; the root is always returned.
func Build(ctx context.Context, root string, opts Options) (*Node, error) {
	if root == "" {
		return nil, errors.New("root directory must be provided")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}

	return newBuilder(absRoot, opts).buildDir(ctx, absRoot, "")
}

type builder struct {
	title cases.Caser
	order *collate.Collator
	root  string
	opts  Options
}

var defaultExcludedDirs = []string{
	"node_modules",
	"vendor",
	"venv",
	".venv",
	"third_party",
	".git",
	".hg",
	".svn",
	".idea",
	".vscode",
	"dist",
}

// Excluded reports whether a walk over the content root skips the directory
// named name. Hidden directories are skipped unless opts.IncludeHidden is set;
// dependency and tooling directories and opts.ExcludeDirs always are. Names
// compare case-insensitively.
func Excluded(name string, opts Options) bool {
	if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if slices.ContainsFunc(defaultExcludedDirs, func(dir string) bool { return strings.EqualFold(dir, name) }) {
		return true
	}
	return slices.ContainsFunc(opts.ExcludeDirs, func(dir string) bool {
		return strings.EqualFold(strings.TrimSpace(dir), name)
	})
}

func newBuilder(absRoot string, opts Options) *builder {
	return &builder{
		root:  absRoot,
		opts:  opts,
		title: cases.Title(language.English, cases.NoLower),
		order: collate.New(language.English, collate.IgnoreCase, collate.Numeric),
	}
}

func (b *builder) buildDir(ctx context.Context, absPath, relPath string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", absPath, err)
	}

	children := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		if !b.opts.IncludeHidden && strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		childRel := path.Join(relPath, entry.Name())
		childAbs := filepath.Join(absPath, entry.Name())

		if entry.IsDir() {
			if Excluded(entry.Name(), b.opts) {
				continue
			}
			child, err := b.buildDir(ctx, childAbs, childRel)
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}
			continue
		}

		if !IsMarkdown(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat file %s: %w", childAbs, err)
		}
		node, err := b.buildFileNode(childAbs, childRel, info)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}

	if len(children) == 0 && relPath != "" {
		return nil, nil
	}

	slices.SortStableFunc(children, func(a, c *Node) int {
		if a.Type != c.Type {
			if a.Type == NodeTypeDirectory {
				return -1
			}
			return 1
		}
		return b.order.CompareString(a.Title, c.Title)
	})

	dirInfo, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat directory %s: %w", absPath, err)
	}

	name := b.displayName(filepath.Base(absPath))
	return &Node{
		Name:         name,
		RawName:      filepath.Base(absPath),
		RelativePath: relPath,
		Slug:         slugPath(relPath),
		Type:         NodeTypeDirectory,
		Title:        name,
		Modified:     dirInfo.ModTime(),
		Children:     children,
	}, nil
}

func (b *builder) buildFileNode(absPath, relPath string, info fs.FileInfo) (*Node, error) {
	content, err := os.ReadFile(absPath) //nolint:gosec // absPath is constructed from validated root
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", absPath, err)
	}

	name := b.displayName(path.Base(relPath))
	node := &Node{
		Name:         name,
		RawName:      path.Base(relPath),
		RelativePath: relPath,
		Slug:         slugPath(strings.TrimSuffix(relPath, path.Ext(relPath))),
		Type:         NodeTypeFile,
		Title:        name,
		Modified:     info.ModTime(),
		Size:         info.Size(),
	}

	// Broken frontmatter still yields the heading title, which is all the
	// navigation needs; the renderer reports the error when the page is viewed.
	meta, body, _ := renderer.ParseMetadata(content)
	node.Headings = len(markdown.ParseHeadings(body))
	if !meta.IsZero() {
		node.Metadata = &meta
		if meta.Title != "" {
			node.Title = meta.Title
		}
	}
	return node, nil
}

// displayName turns a file or directory name into a readable label:
// "advanced_topics.md" becomes "Advanced Topics".
func (b *builder) displayName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return b.title.String(strings.Join(strings.Fields(name), " "))
}

// IsMarkdown reports whether name carries a markdown extension.
func IsMarkdown(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

func slugPath(rel string) string {
	if rel == "" {
		return ""
	}
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		parts[i] = markdown.Slugify(strings.ReplaceAll(part, "_", " "))
	}
	return strings.Join(parts, "/")
}

// Files returns the page nodes under n in navigation order.
func (n *Node) Files() []*Node {
	var out []*Node
	n.Walk(func(node *Node) {
		if node.Type == NodeTypeFile {
			out = append(out, node)
		}
	})
	return out
}

// Walk calls fn for n and every descendant, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Find returns the node with the given relative path, or nil.
func (n *Node) Find(relPath string) *Node {
	var found *Node
	n.Walk(func(node *Node) {
		if found == nil && node.RelativePath == relPath {
			found = node
		}
	})
	return found
}
