// Package config manages application configuration from environment variables and flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/euforicio/techtips/internal/theme"
)

const envPrefix = "TECHTIPS_"

// DefaultSiteFile is looked up inside the content root when no site file is given.
const DefaultSiteFile = "site.toml"

// Config holds runtime configuration for the wiki server and exporter.
type Config struct {
	RootDir      string
	SiteFile     string
	StaticOutput string
	AssetsDir    string
	Theme        string
	Port         int
	AutoOpen     bool
	RenderD2     bool
	Verbose      bool
}

// Default returns ready-to-use defaults prior to env/flag overrides.
func Default() Config {
	return Config{
		RootDir:      ".",
		Port:         0, // 0 = auto-select random available port
		AutoOpen:     true,
		Theme:        theme.Default,
		RenderD2:     true,
		StaticOutput: "dist",
		AssetsDir:    "static",
	}
}

// RegisterFlags attaches configuration flags to the provided FlagSet.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.RootDir, "root", "r", cfg.RootDir, "root directory containing markdown files")
	fs.StringVar(&cfg.SiteFile, "site", cfg.SiteFile, "site configuration file (default: <root>/site.toml)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to bind the HTTP server (0 = auto-assign, default: auto)")
	fs.BoolVar(&cfg.AutoOpen, "auto-open", cfg.AutoOpen, "open the browser automatically after start")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "default theme for new visitors (dark or light)")
	fs.BoolVar(&cfg.RenderD2, "d2", cfg.RenderD2, "render ```d2 fences to SVG on the server")
	fs.StringVar(&cfg.StaticOutput, "out", cfg.StaticOutput, "default output directory for static export")
	fs.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "directory containing frontend assets")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "enable verbose logging (HTTP requests)")
}

// ApplyEnvOverrides reads supported environment variables and overrides cfg in place.
func ApplyEnvOverrides(cfg *Config) {
	applyStringEnv("ROOT", func(v string) { cfg.RootDir = v })
	applyStringEnv("SITE", func(v string) { cfg.SiteFile = v })
	applyIntEnv("PORT", func(v int) { cfg.Port = v })
	applyBoolEnv("AUTO_OPEN", func(v bool) { cfg.AutoOpen = v })
	applyStringEnv("THEME", func(v string) { cfg.Theme = v })
	applyBoolEnv("D2", func(v bool) { cfg.RenderD2 = v })
	applyStringEnv("OUT", func(v string) { cfg.StaticOutput = v })
	applyStringEnv("ASSETS", func(v string) { cfg.AssetsDir = v })
	applyBoolEnv("VERBOSE", func(v bool) { cfg.Verbose = v })
}

func applyStringEnv(key string, apply func(string)) {
	if raw, ok := lookupNonEmpty(key); ok {
		apply(raw)
	}
}

func applyIntEnv(key string, apply func(int)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			apply(value)
		}
	}
}

func applyBoolEnv(key string, apply func(bool)) {
	if raw, ok := lookupNonEmpty(key); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			apply(value)
		}
	}
}

func lookupNonEmpty(key string) (string, bool) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", false
	}
	return value, true
}

// Finalize validates and normalizes paths.
func Finalize(cfg *Config) error {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return fmt.Errorf("resolve root directory: %w", err)
	}
	cfg.RootDir = root

	// Allow port 0 for dynamic allocation, otherwise validate range
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	if cfg.Theme == "" {
		cfg.Theme = theme.Default
	}
	t, err := theme.Get(cfg.Theme)
	if err != nil {
		return fmt.Errorf("invalid theme: %w", err)
	}
	cfg.Theme = t.Name

	if cfg.SiteFile == "" {
		cfg.SiteFile = filepath.Join(cfg.RootDir, DefaultSiteFile)
	}
	site, err := filepath.Abs(cfg.SiteFile)
	if err != nil {
		return fmt.Errorf("resolve site file: %w", err)
	}
	cfg.SiteFile = site

	if cfg.StaticOutput == "" {
		cfg.StaticOutput = "dist"
	}

	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "static"
	}
	assets, err := filepath.Abs(cfg.AssetsDir)
	if err != nil {
		return fmt.Errorf("resolve assets directory: %w", err)
	}
	cfg.AssetsDir = assets

	return nil
}
