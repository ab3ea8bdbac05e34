package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithFrontmatter(t *testing.T) {
	p := NewParser()

	html, meta, err := p.ParseWithFrontmatter([]byte("---\ntitle: Judging\n---\n# Criteria\n\nOriginality counts."))
	require.NoError(t, err)
	assert.Equal(t, "Judging", meta["title"])
	assert.Contains(t, string(html), "Originality counts.")
	assert.NotContains(t, string(html), "title:")
}

func TestBody(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"frontmatter", "---\nsubject: \"Hi {{.Name}}\"\n---\nHi {{.Name}},\n\nBye", "Hi {{.Name}},\n\nBye"},
		{"blank lines after frontmatter", "---\nsubject: x\n---\n\n\nHello", "Hello"},
		{"heading first", "---\nsubject: x\n---\n## {{.Code}}\n", "## {{.Code}}\n"},
		{"list first", "---\nsubject: x\n---\n- one\n- two", "- one\n- two"},
		{"no frontmatter", "Plain text", "Plain text"},
		{"empty body", "---\nsubject: x\n---\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(p.Body([]byte(tt.source))))
		})
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Harbour Song", "Harbour Song"},
		{"**bold**", `\*\*bold\*\*`},
		{"[click](http://x)", `\[click\]\(http\://x\)`},
		{"me@example.com", `me\@example\.com`},
		{"<b>hi</b>", `\<b\>hi\</b\>`},
		{"# title\n- item", `\# title \- item`},
		{"Ghazal No. 1", `Ghazal No\. 1`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Escape(tt.in), tt.in)
	}
}

func TestEscapedTextRendersLiterally(t *testing.T) {
	p := NewParser()
	title := "**Loud** [win](http://evil.example) <script>alert(1)</script>"

	html, err := p.Parse([]byte("Your song " + Escape(title) + " is in."))
	require.NoError(t, err)

	out := string(html)
	assert.NotContains(t, out, "<strong>")
	assert.NotContains(t, out, "<a href")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "**Loud**")
	assert.Contains(t, out, "&lt;script&gt;")
}
