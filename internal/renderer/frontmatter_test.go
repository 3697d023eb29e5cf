package renderer

import "testing"

func TestSplitFrontmatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantFront string
		wantBody  string
	}{
		{"none", "# Title\n", "", "# Title\n"},
		{"closed", "---\ntitle: A\n---\nbody\n", "title: A\n", "body\n"},
		{"crlf", "---\r\ntitle: A\r\n---\r\nbody", "title: A\n", "body"},
		{"closing at eof", "---\ntitle: A\n---", "title: A\n", ""},
		{"unclosed", "---\ntitle: A\nbody", "", "---\ntitle: A\nbody"},
		{"not at start", "\n---\ntitle: A\n---\n", "", "\n---\ntitle: A\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			front, body := splitFrontmatter(tt.content)
			if front != tt.wantFront || body != tt.wantBody {
				t.Fatalf("splitFrontmatter(%q) = (%q, %q), want (%q, %q)", tt.content, front, body, tt.wantFront, tt.wantBody)
			}
		})
	}
}

func TestParseMetadataKeywordsAndSummary(t *testing.T) {
	t.Parallel()

	meta, body, err := ParseMetadata([]byte("---\nsummary: Short\nkeywords: docker\n---\ntext"))
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if meta.Description != "Short" {
		t.Fatalf("expected description from summary, got %q", meta.Description)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "docker" {
		t.Fatalf("expected single tag from scalar keywords, got %#v", meta.Tags)
	}
	if body != "text" {
		t.Fatalf("unexpected body %q", body)
	}
	if meta.IsZero() {
		t.Fatalf("expected metadata to be non-zero")
	}
}
