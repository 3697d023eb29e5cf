package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/euforicio/techtips/internal/theme"
)

// Site describes the wiki's branding and the topic cards on the home page.
type Site struct {
	Title   string  `toml:"title" json:"title"`
	Tagline string  `toml:"tagline" json:"tagline"`
	Theme   string  `toml:"theme" json:"theme,omitempty"`
	Topics  []Topic `toml:"topic" json:"topics"`
}

// Topic is one home page card linking to a page under the content root.
type Topic struct {
	Path        string `toml:"path" json:"path"`
	Label       string `toml:"label" json:"label"`
	Description string `toml:"description" json:"description"`
}

// DefaultSite is used when the content root carries no site file.
func DefaultSite() Site {
	return Site{
		Title:   "Saaiq's Tech Tips",
		Tagline: "A curated wiki of streaming, self-hosting, applications & more.",
		Topics: []Topic{
			{Path: "streaming.md", Label: "📺 Streaming", Description: "Setup streaming movies & shows"},
			{Path: "selfhosting.md", Label: "🖥 Self Hosting", Description: "Run your own services"},
			{Path: "applications.md", Label: "🛠 Applications", Description: "All the tips & tools worth installing"},
			{Path: "miscellaneous.md", Label: "🧩 Miscellaneous", Description: "Tips, tricks & one-liners"},
		},
	}
}

// LoadSite reads a TOML site file. A missing file yields DefaultSite. Every
// validation problem is reported in a single multi-error.
func LoadSite(file string) (Site, error) {
	site := DefaultSite()
	site.Topics = nil

	meta, err := toml.DecodeFile(file, &site)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSite(), nil
		}
		return Site{}, fmt.Errorf("decode site file %s: %w", file, err)
	}

	var result *multierror.Error
	for _, key := range meta.Undecoded() {
		result = multierror.Append(result, fmt.Errorf("unknown key %q", key.String()))
	}
	if err := site.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return Site{}, fmt.Errorf("invalid site file %s: %w", file, err)
	}
	return site, nil
}

// Validate checks the title, theme and every topic.
func (s Site) Validate() error {
	var result *multierror.Error
	if strings.TrimSpace(s.Title) == "" {
		result = multierror.Append(result, errors.New("title must not be empty"))
	}
	if s.Theme != "" {
		if _, err := theme.Get(s.Theme); err != nil {
			result = multierror.Append(result, err)
		}
	}

	seen := make(map[string]struct{}, len(s.Topics))
	for i, topic := range s.Topics {
		if err := topic.validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("topic %d: %w", i+1, err))
			continue
		}
		if _, dup := seen[topic.Path]; dup {
			result = multierror.Append(result, fmt.Errorf("topic %d: duplicate path %q", i+1, topic.Path))
		}
		seen[topic.Path] = struct{}{}
	}
	return result.ErrorOrNil()
}

func (t Topic) validate() error {
	switch {
	case strings.TrimSpace(t.Label) == "":
		return errors.New("label must not be empty")
	case t.Path == "":
		return errors.New("path must not be empty")
	case path.IsAbs(t.Path) || strings.HasPrefix(path.Clean(t.Path), ".."):
		return fmt.Errorf("path %q must stay inside the content root", t.Path)
	case !strings.HasSuffix(strings.ToLower(t.Path), ".md"):
		return fmt.Errorf("path %q must name a markdown page", t.Path)
	}
	return nil
}

// Slug returns the page name of the topic without directories or extension.
func (t Topic) Slug() string {
	return strings.TrimSuffix(path.Base(t.Path), path.Ext(t.Path))
}
