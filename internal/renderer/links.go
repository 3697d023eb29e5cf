package renderer

import (
	"path"
	"strings"
)

// linkResolver rewrites .md links to /page/ routes and image paths to /media/
// routes, relative to the directory of the document being rendered.
type linkResolver struct {
	currentDir string
}

func newLinkResolver(docPath string) linkResolver {
	return linkResolver{currentDir: path.Dir(docPath)}
}

func (r linkResolver) link(dest string) string {
	if dest == "" || isExternalLink(dest) || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/page/") {
		return dest
	}

	target, fragment, _ := strings.Cut(dest, "#")
	if !strings.HasSuffix(target, ".md") {
		return dest
	}

	out := "/page/" + normalizeWikiPath(target, r.currentDir)
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

func (r linkResolver) image(dest string) string {
	if dest == "" || isExternalLink(dest) || strings.HasPrefix(dest, "/media/") || strings.HasPrefix(dest, "/static/") || strings.HasPrefix(dest, "data:") {
		return dest
	}
	return "/media/" + normalizeWikiPath(dest, r.currentDir)
}

func (r linkResolver) images(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = r.image(u)
	}
	return out
}

func isExternalLink(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://") || strings.HasPrefix(dest, "mailto:")
}

func normalizeWikiPath(dest, currentDir string) string {
	if !strings.HasPrefix(dest, "/") {
		if currentDir != "" && currentDir != "." {
			dest = path.Join(currentDir, dest)
		}
		dest = path.Clean(dest)
	}

	return strings.TrimPrefix(dest, "/")
}
