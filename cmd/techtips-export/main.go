// Package main provides the techtips static site and single page export CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/euforicio/techtips/internal/buildinfo"
	"github.com/euforicio/techtips/internal/config"
	"github.com/euforicio/techtips/internal/exporter"
	"github.com/euforicio/techtips/internal/renderer"
	d2renderer "github.com/euforicio/techtips/internal/renderer/d2"
	"github.com/euforicio/techtips/internal/theme"
)

func main() {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)

	flags := pflag.NewFlagSet("techtips-export", pflag.ExitOnError)
	flags.StringVarP(&cfg.RootDir, "root", "r", cfg.RootDir, "root directory containing markdown files to export")
	flags.StringVar(&cfg.SiteFile, "site", cfg.SiteFile, "site configuration file (default: <root>/site.toml)")
	flags.StringVar(&cfg.StaticOutput, "out", cfg.StaticOutput, "output directory for the generated static site")
	flags.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "directory containing prepared static assets to copy")
	flags.StringVar(&cfg.Theme, "theme", cfg.Theme, "theme for single page HTML exports (dark or light)")
	flags.BoolVar(&cfg.RenderD2, "d2", cfg.RenderD2, "render ```d2 fences to SVG")

	includeHidden := flags.Bool("hidden", false, "include hidden files when scanning the content tree")
	searchIndex := flags.Bool("search-index", false, "generate a JSON search index alongside the export")
	clean := flags.Bool("clean", true, "wipe the output directory before exporting")
	baseURL := flags.String("base-url", "", "optional absolute base URL for canonical link tags")
	page := flags.String("page", "", "export a single page (relative to --root) instead of the whole site")
	format := flags.String("format", string(exporter.FormatHTML), "single page format: "+formatList())
	output := flags.StringP("output", "o", "-", "single page destination file, - for stdout")
	versionFlag := flags.Bool("version", false, "Print version information and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("flag parsing failed", slog.Any("err", err))
		os.Exit(1)
	}
	if *versionFlag {
		fmt.Println(buildinfo.Summary())
		os.Exit(0)
	}

	if err := config.Finalize(&cfg); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	// Single page output may go to stdout, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("starting techtips-export", slog.String("version", buildinfo.Summary()))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exp, err := newExporter(logger, cfg)
	if err != nil {
		logger.Error("init exporter failed", slog.Any("err", err))
		os.Exit(1) //nolint:gocritic // exitAfterDefer: nothing to clean up yet
	}

	if *page != "" {
		if err := exportPage(ctx, exp, cfg, *page, *format, *output); err != nil {
			logger.Error("page export failed", slog.String("page", *page), slog.Any("err", err))
			os.Exit(1)
		}
		return
	}

	site, err := config.LoadSite(cfg.SiteFile)
	if err != nil {
		logger.Error("load site file", slog.Any("err", err))
		os.Exit(1)
	}
	if flags.Changed("theme") {
		site.Theme = cfg.Theme
	}

	assetsOverride := ""
	if flags.Changed("assets") {
		assetsOverride = cfg.AssetsDir
	}

	if err := exp.Export(ctx, exporter.Options{
		Site:                site,
		Root:                cfg.RootDir,
		OutputDir:           cfg.StaticOutput,
		AssetsDir:           assetsOverride,
		BaseURL:             *baseURL,
		IncludeHidden:       *includeHidden,
		GenerateSearchIndex: *searchIndex,
		CleanOutput:         *clean,
	}); err != nil {
		logger.Error("export failed", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("export succeeded", slog.String("output", cfg.StaticOutput))
}

func newExporter(logger *slog.Logger, cfg config.Config) (*exporter.Exporter, error) {
	var (
		rendererOpts []renderer.Option
		opts         []exporter.Option
	)
	if cfg.RenderD2 {
		diagrams := d2renderer.New(logger, &d2renderer.Options{Dark: cfg.Theme == "dark"})
		rendererOpts = append(rendererOpts, renderer.WithD2(diagrams))
		opts = append(opts, exporter.WithD2(diagrams))
	}
	opts = append(opts, exporter.WithRenderer(renderer.NewService(logger, rendererOpts...)))
	return exporter.New(logger, opts...)
}

func exportPage(ctx context.Context, exp *exporter.Exporter, cfg config.Config, page, rawFormat, output string) error {
	format, ok := exporter.ParseFormat(rawFormat)
	if !ok {
		return fmt.Errorf("invalid format %q, supported formats: %s", rawFormat, formatList())
	}

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output) //nolint:gosec // destination chosen by the operator
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	return exp.ExportPage(ctx, exporter.ExportPageOptions{
		Writer:  w,
		Format:  format,
		RootDir: cfg.RootDir,
		Path:    page,
		Theme:   theme.Resolve(cfg.Theme).Name,
	})
}

func formatList() string {
	formats := exporter.ValidFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
