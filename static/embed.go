// Package static embeds the site stylesheet and script shared by the server
// and the static exporter.
package static

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

//go:embed css/*.css js/*.js
var assets embed.FS

// FS exposes the embedded static assets.
func FS() fs.FS {
	return assets
}

// HTTP returns an http.FileSystem backed by the embedded assets.
func HTTP() http.FileSystem {
	return http.FS(assets)
}

// Has reports whether the given relative path exists in the embedded assets.
func Has(name string) bool {
	name = strings.TrimPrefix(name, "/")
	info, err := fs.Stat(assets, name)
	return err == nil && !info.IsDir()
}

// CopyAll writes every embedded asset below dest, keeping the relative layout.
func CopyAll(dest string) error {
	return fs.WalkDir(assets, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec // standard directory permissions
			return err
		}
		return os.WriteFile(target, data, 0o644) //nolint:gosec // standard file permissions
	})
}
