// Package main pretty-prints the block structure of a markdown page, which
// helps when a page renders differently than expected.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/k0kubun/pp"
	"github.com/spf13/pflag"

	"github.com/euforicio/techtips/internal/markdown"
	"github.com/euforicio/techtips/internal/syntax"
)

func main() {
	flags := pflag.NewFlagSet("dump-blocks", pflag.ExitOnError)
	headings := flags.Bool("headings", false, "print the table of contents instead of blocks")
	tokens := flags.Bool("tokens", false, "also print highlight tokens for every code fence")
	noColor := flags.Bool("no-color", false, "disable colored output")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "parse flags: %v\n", err)
		os.Exit(1)
	}

	pp.ColoringEnabled = !*noColor

	src, err := readInput(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *headings {
		pp.Println(markdown.ParseHeadings(src))
		return
	}

	for _, block := range markdown.ParseBlocks(src) {
		pp.Println(block)
		if fence, ok := block.(*markdown.CodeFence); ok && *tokens {
			pp.Println(syntax.Tokenize(fence.Source, fence.Language))
		}
	}
}

// readInput reads the named file, or stdin when name is empty or "-".
func readInput(name string) (string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name) //nolint:gosec // developer tool reading a chosen file
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}
