// Package main writes the theme stylesheets served under /theme/.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/euforicio/techtips/internal/theme"
)

func main() {
	flags := pflag.NewFlagSet("generate-theme-css", pflag.ExitOnError)
	name := flags.StringP("theme", "t", "", "theme to write to stdout (dark or light)")
	out := flags.StringP("out", "o", "", "write every theme as <name>.css into this directory")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "parse flags: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		t, err := theme.Get(firstNonEmpty(*name, theme.Default))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if err := t.WriteCSS(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating CSS: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}
	for _, n := range theme.Names() {
		if err := writeTheme(filepath.Join(*out, n+".css"), theme.Resolve(n)); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
}

func writeTheme(path string, t *theme.Theme) error {
	f, err := os.Create(path) //nolint:gosec // developer tool writing to a chosen directory
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.WriteCSS(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
