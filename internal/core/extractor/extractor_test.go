package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/fetcher"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type fakeFetcher struct {
	resp     *fetcher.Response
	err      error
	calls    int
	expected []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, expected ...string) (*fetcher.Response, error) {
	f.calls++
	f.expected = expected
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	resp.URL = rawURL
	return &resp, nil
}

type fakeRenderer struct {
	pages []core.PageText
	err   error
	calls int
}

func (r *fakeRenderer) RenderPages(context.Context, []byte) ([]core.PageText, error) {
	r.calls++
	return r.pages, r.err
}

type fakeRemover struct {
	precision string
	recall    string
	passes    []core.ExtractOptions
}

func (r *fakeRemover) ExtractMain(_ context.Context, _ []byte, opts core.ExtractOptions) (string, error) {
	r.passes = append(r.passes, opts)
	if opts.FavorPrecision {
		return r.precision, nil
	}
	return r.recall, nil
}

const articleText = "Vector databases store embeddings for fast similarity search across large corpora. " +
	"They power retrieval augmented generation systems running in production today."

const articleHTML = `<html><head><title>Vector Search 101</title>
<meta name="author" content="Ada Lovelace"></head>
<body><p>` + articleText + `</p></body></html>`

var pdfBytes = []byte("%PDF-1.4\nfake body")

func TestExtract_TextPassthrough(t *testing.T) {
	e := New(&fakeFetcher{}, &fakeRenderer{}, &fakeRemover{})

	out, err := e.Extract(context.Background(), models.TextSource("  plain text stays exactly as given  "))
	require.NoError(t, err)
	assert.Equal(t, "  plain text stays exactly as given  ", out.Text)
	assert.Equal(t, "text/plain", out.ContentType)
}

func TestExtract_InvalidSource(t *testing.T) {
	e := New(&fakeFetcher{}, &fakeRenderer{}, &fakeRemover{})

	_, err := e.Extract(context.Background(), models.SourceDescriptor{Kind: models.SourceWeb})
	var extErr *core.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.ErrorIs(t, err, core.ErrInvalidSource)
}

func TestExtract_PDFPages(t *testing.T) {
	r := &fakeRenderer{pages: []core.PageText{
		{Number: 1, Text: "Page one text here\nab\n\n\n  More   text"},
		{Number: 2, Err: errors.New("broken content stream")},
		{Number: 3, Text: "   "},
		{Number: 4, Text: "Fourth page"},
	}}
	f := &fakeFetcher{}
	e := New(f, r, &fakeRemover{})

	out, err := e.Extract(context.Background(), models.PDFBytesSource("report.pdf", pdfBytes))
	require.NoError(t, err)

	assert.Equal(t, "<!-- Page 1 -->\nPage one text here\n\nMore text\n\n<!-- Page 4 -->\nFourth page", out.Text)
	assert.Equal(t, "4", out.Metadata["pages"])
	assert.Equal(t, "report.pdf", out.Metadata["file_name"])
	assert.Equal(t, fetcher.MediaPDF, out.ContentType)
	assert.Zero(t, f.calls, "inline bytes must not be fetched")
}

func TestExtract_PDFAllPagesFail(t *testing.T) {
	r := &fakeRenderer{pages: []core.PageText{
		{Number: 1, Err: errors.New("bad")},
		{Number: 2, Text: "x"},
	}}
	e := New(&fakeFetcher{}, r, &fakeRemover{})

	_, err := e.Extract(context.Background(), models.PDFBytesSource("", pdfBytes))
	var extErr *core.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, models.SourcePDF, extErr.Source)
	assert.ErrorIs(t, err, core.ErrNoExtractableContent)
}

func TestExtract_PDFRejectsNonPDFPayload(t *testing.T) {
	r := &fakeRenderer{}
	e := New(&fakeFetcher{}, r, &fakeRemover{})

	_, err := e.Extract(context.Background(), models.PDFBytesSource("", []byte("<html>not a pdf</html>")))
	assert.ErrorIs(t, err, core.ErrUnsupportedContentType)
	assert.Zero(t, r.calls)
}

func TestExtract_RemotePDF(t *testing.T) {
	f := &fakeFetcher{resp: &fetcher.Response{StatusCode: 200, ContentType: "application/octet-stream", Body: pdfBytes}}
	r := &fakeRenderer{pages: []core.PageText{{Number: 1, Text: "Remote page text"}}}
	e := New(f, r, &fakeRemover{})

	out, err := e.Extract(context.Background(), models.PDFURLSource("https://example.com/paper.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls)
	assert.Contains(t, f.expected, fetcher.MediaPDF)
	assert.Equal(t, "https://example.com/paper.pdf", out.Metadata["url"])
	assert.Contains(t, out.Text, "Remote page text")
}

func TestExtract_WebFallsBackToRecall(t *testing.T) {
	f := &fakeFetcher{resp: &fetcher.Response{StatusCode: 200, ContentType: fetcher.MediaHTML, Body: []byte(articleHTML)}}
	rm := &fakeRemover{precision: "  ", recall: articleText}
	e := New(f, &fakeRenderer{}, rm)

	out, err := e.Extract(context.Background(), models.WebSource("https://example.com/article"))
	require.NoError(t, err)

	require.Len(t, rm.passes, 2)
	assert.Equal(t, core.PrecisionOptions(), rm.passes[0])
	assert.Equal(t, core.RecallOptions(), rm.passes[1])

	assert.True(t, strings.HasPrefix(out.Text, "Source: https://example.com/article\n\n"))
	assert.Contains(t, out.Text, "They power retrieval augmented generation systems")
	assert.Equal(t, "Vector Search 101", out.Metadata["title"])
	assert.Equal(t, "Ada Lovelace", out.Metadata["author"])
	assert.Equal(t, "https://example.com/article", out.Metadata["url"])
	assert.Equal(t, fetcher.MediaHTML, out.ContentType)
}

func TestExtract_WebPrecisionPassWins(t *testing.T) {
	f := &fakeFetcher{resp: &fetcher.Response{StatusCode: 200, ContentType: fetcher.MediaHTML, Body: []byte(articleHTML)}}
	rm := &fakeRemover{precision: articleText, recall: "unused"}
	e := New(f, &fakeRenderer{}, rm)

	_, err := e.Extract(context.Background(), models.WebSource("https://example.com/article"))
	require.NoError(t, err)
	assert.Len(t, rm.passes, 1)
}

func TestExtract_WebNoContent(t *testing.T) {
	f := &fakeFetcher{resp: &fetcher.Response{StatusCode: 200, ContentType: fetcher.MediaHTML, Body: []byte("<html></html>")}}
	e := New(f, &fakeRenderer{}, &fakeRemover{})

	_, err := e.Extract(context.Background(), models.WebSource("https://example.com/empty"))
	assert.ErrorIs(t, err, core.ErrNoExtractableContent)
}

func TestExtract_WebTooShort(t *testing.T) {
	f := &fakeFetcher{resp: &fetcher.Response{StatusCode: 200, ContentType: fetcher.MediaHTML, Body: []byte("<p>short</p>")}}
	rm := &fakeRemover{precision: "A single sentence that is fairly short."}
	e := New(f, &fakeRenderer{}, rm)

	_, err := e.Extract(context.Background(), models.WebSource("https://example.com/short"))
	var extErr *core.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.ErrorIs(t, err, core.ErrContentTooShort)
}

func TestExtract_WebServingPDF(t *testing.T) {
	f := &fakeFetcher{resp: &fetcher.Response{StatusCode: 200, ContentType: fetcher.MediaPDF, Body: pdfBytes}}
	r := &fakeRenderer{pages: []core.PageText{{Number: 1, Text: "Served as a pdf"}}}
	rm := &fakeRemover{}
	e := New(f, r, rm)

	out, err := e.Extract(context.Background(), models.WebSource("https://example.com/download"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
	assert.Empty(t, rm.passes)
	assert.Equal(t, "<!-- Page 1 -->\nServed as a pdf", out.Text)
	assert.Equal(t, fetcher.MediaPDF, out.ContentType)
}

func TestExtract_WebFetchFailure(t *testing.T) {
	f := &fakeFetcher{err: &core.FetchError{URL: "https://example.com/missing", Attempts: 1, StatusCode: 404, Err: errors.New("not found")}}
	e := New(f, &fakeRenderer{}, &fakeRemover{})

	_, err := e.Extract(context.Background(), models.WebSource("https://example.com/missing"))
	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 404, fetchErr.StatusCode)
	assert.Equal(t, core.KindExtraction, core.NewIngestionError(core.StageExtracting, err).Kind)
}

func TestValidateWebURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://example.com/article", true},
		{"http://example.com/paper.PDF", true},
		{"https://example.com/archive.zip", false},
		{"https://example.com/photo.JPG", false},
		{"ftp://example.com/file", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateWebURL(tt.url)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrInvalidSource)
			}
		})
	}
}

func TestExtract_WebRejectedExtensionSkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	e := New(f, &fakeRenderer{}, &fakeRemover{})

	_, err := e.Extract(context.Background(), models.WebSource("https://example.com/setup.exe"))
	assert.ErrorIs(t, err, core.ErrInvalidSource)
	assert.Zero(t, f.calls)
}
