// Package main provides the techtips server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k0kubun/pp"
	"github.com/spf13/pflag"

	"github.com/euforicio/techtips/internal/buildinfo"
	"github.com/euforicio/techtips/internal/config"
	"github.com/euforicio/techtips/internal/content"
	"github.com/euforicio/techtips/internal/exporter"
	"github.com/euforicio/techtips/internal/renderer"
	d2renderer "github.com/euforicio/techtips/internal/renderer/d2"
	"github.com/euforicio/techtips/internal/search"
	"github.com/euforicio/techtips/internal/server"
	"github.com/euforicio/techtips/internal/theme"
)

func main() {
	cfg := config.Default()
	config.ApplyEnvOverrides(&cfg)

	flags := pflag.NewFlagSet("techtips", pflag.ExitOnError)
	config.RegisterFlags(flags, &cfg)
	versionFlag := flags.Bool("version", false, "Print version information and exit")
	printConfig := flags.Bool("print-config", false, "Print the resolved configuration and site file, then exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		slog.Error("parse flags", slog.Any("err", err))
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

	site, err := config.LoadSite(cfg.SiteFile)
	if err != nil {
		slog.Error("load site file", slog.Any("err", err))
		os.Exit(1)
	}
	// The site file picks the default theme unless the flag or env said otherwise.
	if site.Theme != "" && !flags.Changed("theme") && os.Getenv("TECHTIPS_THEME") == "" {
		cfg.Theme = theme.Resolve(site.Theme).Name
	}

	if *printConfig {
		pp.Println(cfg)
		pp.Println(site)
		os.Exit(0)
	}

	logLevel := slog.LevelWarn
	if cfg.Verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger = logger.With("app", "techtips")
	slog.SetDefault(logger)
	logger.Log(context.Background(), slog.LevelInfo-1, "starting techtips",
		slog.String("version", buildinfo.Summary()),
		slog.String("root", cfg.RootDir),
		slog.String("site", site.Title))

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		rendererOpts []renderer.Option
		exporterOpts []exporter.Option
	)
	if cfg.RenderD2 {
		diagrams := d2renderer.New(logger, &d2renderer.Options{Dark: cfg.Theme == "dark"})
		rendererOpts = append(rendererOpts, renderer.WithD2(diagrams))
		exporterOpts = append(exporterOpts, exporter.WithD2(diagrams))
	}
	rendererSvc := renderer.NewService(logger, rendererOpts...)
	exporterOpts = append(exporterOpts, exporter.WithRenderer(rendererSvc))

	contentSvc, err := content.NewService(ctx, cfg.RootDir, rendererSvc, logger, content.Options{})
	if err != nil {
		cancel()
		logger.Error("content service init failed", slog.Any("err", err))
		//nolint:gocritic // exitAfterDefer: cancel() explicitly called before os.Exit
		os.Exit(1)
	}
	defer func() {
		if err := contentSvc.Close(); err != nil {
			logger.Error("close content service", slog.Any("err", err))
		}
	}()

	searchSvc, err := search.NewService(cfg.RootDir, logger)
	if err != nil {
		cancel()
		logger.Error("search service init failed", slog.Any("err", err))
		os.Exit(1)
	}

	exp, err := exporter.New(logger, exporterOpts...)
	if err != nil {
		cancel()
		logger.Error("exporter init failed", slog.Any("err", err))
		os.Exit(1)
	}

	srv, err := server.New(cfg, site, logger, contentSvc, searchSvc, exp)
	if err != nil {
		cancel()
		logger.Error("server init failed", slog.Any("err", err))
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutdown complete")
			return
		}
		logger.Error("server error", slog.Any("err", err))
		os.Exit(1)
	}
}
