package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPageText(t *testing.T) {
	in := "  Heading   line \n12\n\n\n\nBody  text\twith tabs\n- \nlast"
	assert.Equal(t, "Heading line\n\nBody text with tabs\nlast", CleanPageText(in))
}

func TestCleanWebText(t *testing.T) {
	in := "Home | About | Contact\n\n" +
		"Vector databases store embeddings for fast similarity search. Click here for more.\n" +
		"Email us at team@example.com or call 555-123-4567 for a detailed product demo"

	assert.Equal(t,
		"Vector databases store embeddings for fast similarity search.\n"+
			"Email us at or call for a detailed product demo.",
		CleanWebText(in))
}

func TestCleanWebText_KeepsDecimals(t *testing.T) {
	in := "The measured accuracy was 98.6 percent on the held out set."
	assert.Equal(t, in, CleanWebText(in))
}

func TestIsNavigationText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Skip to main content", true},
		{"Next", true},
		{"Main menu", true},
		{"Share this article", true},
		{"12 comments", true},
		{"Error: something broke", true},
		{"The chapter explains retrieval pipelines in depth", false},
		{"A very long sentence that merely mentions a page number somewhere", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNavigationText(tt.in))
		})
	}
}

func TestScrubArtifacts(t *testing.T) {
	assert.Equal(t, "see or wait... then --- go", ScrubArtifacts("see https://x.io/a or wait...... then ------ go"))
	assert.Equal(t, "left right", ScrubArtifacts("left | right"))
	assert.Equal(t, "write to", ScrubArtifacts("write to me@mail.example.org"))
}

func TestReadHTMLMetadata(t *testing.T) {
	page := []byte(`<html><head>
<title>  Vector   Search 101 </title>
<meta name="description" content="An introduction">
<meta property="og:description" content="ignored">
<meta property="og:site_name" content="Example Blog">
<meta name="author" content="Ada">
<meta property="article:published_time" content="2024-05-01">
</head><body><meta name="author" content="Other"><p>text</p></body></html>`)

	meta := ReadHTMLMetadata(page, "https://example.com/a")
	assert.Equal(t, map[string]string{
		"url":         "https://example.com/a",
		"title":       "Vector Search 101",
		"description": "An introduction",
		"sitename":    "Example Blog",
		"author":      "Ada",
		"date":        "2024-05-01",
	}, meta)
}

func TestReadHTMLMetadata_FallsBackToOGTitle(t *testing.T) {
	meta := ReadHTMLMetadata([]byte(`<head><meta property="og:title" content="OG Title"></head>`), "u")
	assert.Equal(t, "OG Title", meta["title"])
	assert.Equal(t, "u", meta["url"])
}
