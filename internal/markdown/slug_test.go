package markdown_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/euforicio/techtips/internal/markdown"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Getting   Started  ", "getting-started"},
		{"Plex & Jellyfin: a comparison", "plex-jellyfin-a-comparison"},
		{"snake_case stays", "snake_case-stays"},
		{"a - b -- c", "a-b-c"},
		{"--leading and trailing--", "leading-and-trailing"},
		{"Café Setup", "caf-setup"},
		{"v1.2.3 Release", "v123-release"},
		{"📺 Streaming", "streaming"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markdown.Slugify(tt.in), "Slugify(%q)", tt.in)
	}
}

func TestSlugifyDuplicatesCollide(t *testing.T) {
	t.Parallel()
	assert.Equal(t, markdown.Slugify("Setup"), markdown.Slugify("Setup"))
	assert.Equal(t, markdown.Slugify("Setup!"), markdown.Slugify("setup"))
}
