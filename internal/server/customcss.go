package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	customDirName = ".techtips"
	customCSSName = "custom.css"
	maxCSSSize    = 1 << 20
)

// discoverCustomCSS collects override stylesheets from ~/.techtips and
// <root>/.techtips. Later files win in the cascade.
func (s *Server) discoverCustomCSS() {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, customDirName))
	}
	if root := s.content.Root(); root != "" {
		dirs = append(dirs, filepath.Join(root, customDirName))
	}

	var paths []string
	for _, dir := range dirs {
		if valid := s.validateCSSPath(filepath.Join(dir, customCSSName), dir); valid != "" {
			s.logger.Debug("found custom CSS", slog.String("path", valid))
			paths = append(paths, valid)
		}
	}

	s.customCSSPaths = paths
	if len(paths) > 0 {
		s.logger.Info("custom CSS theming enabled", slog.Int("count", len(paths)))
	}
}

// validateCSSPath returns the symlink-resolved path of cssPath when it is a
// regular .css file inside allowedDir, or "" otherwise.
func (s *Server) validateCSSPath(cssPath, allowedDir string) string {
	info, err := os.Stat(cssPath)
	if err != nil || info.IsDir() {
		return ""
	}
	if filepath.Ext(cssPath) != ".css" {
		s.logger.Warn("invalid CSS file extension", slog.String("path", cssPath))
		return ""
	}

	realPath, err := resolveReal(cssPath)
	if err != nil {
		s.logger.Warn("failed to resolve CSS path", slog.String("path", cssPath), slog.Any("err", err))
		return ""
	}
	realDir, err := resolveReal(allowedDir)
	if err != nil {
		s.logger.Warn("failed to resolve allowed directory", slog.String("dir", allowedDir), slog.Any("err", err))
		return ""
	}

	if !strings.HasPrefix(realPath, realDir+string(filepath.Separator)) {
		s.logger.Warn("CSS path outside allowed directory",
			slog.String("path", cssPath),
			slog.String("resolved", realPath),
			slog.String("allowed", realDir))
		return ""
	}
	return realPath
}

func resolveReal(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (s *Server) handleCustomCSS(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "Invalid CSS index", http.StatusBadRequest)
		return
	}
	if index < 0 || index >= len(s.customCSSPaths) {
		http.Error(w, "CSS file not found", http.StatusNotFound)
		return
	}

	cssPath := s.customCSSPaths[index]
	info, err := os.Stat(cssPath)
	if err != nil {
		s.logger.Warn("failed to stat custom CSS", slog.Any("err", err), slog.String("path", cssPath))
		http.Error(w, "CSS file not found", http.StatusNotFound)
		return
	}
	if info.Size() > maxCSSSize {
		s.logger.Warn("CSS file too large", slog.String("path", cssPath), slog.Int64("size", info.Size()))
		http.Error(w, "CSS file too large", http.StatusRequestEntityTooLarge)
		return
	}

	// HTTP dates carry whole seconds.
	modTime := info.ModTime().UTC().Truncate(time.Second)
	if t, err := http.ParseTime(r.Header.Get("If-Modified-Since")); err == nil && !modTime.After(t) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := os.ReadFile(cssPath) // #nosec G304 -- path validated at discovery
	if err != nil {
		s.logger.Warn("failed to read custom CSS", slog.Any("err", err), slog.String("path", cssPath))
		http.Error(w, "Error reading CSS file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Last-Modified", modTime.Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "public, max-age=60, must-revalidate")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to write CSS response", slog.Any("err", err), slog.String("path", cssPath))
	}
}

func (s *Server) customCSSURLs() []string {
	urls := make([]string, len(s.customCSSPaths))
	for i := range s.customCSSPaths {
		urls[i] = fmt.Sprintf("/custom-theme/%d", i)
	}
	return urls
}
