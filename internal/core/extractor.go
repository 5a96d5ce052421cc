package core

import (
	"context"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// Extraction is the result of turning a source into normalized text.
type Extraction struct {
	Text        string
	Metadata    map[string]string
	Raw         []byte // source bytes as received, nil for text sources
	ContentType string
}

// ContentExtractor produces plain text for any source kind.
type ContentExtractor interface {
	Extract(ctx context.Context, src models.SourceDescriptor) (*Extraction, error)
}

// PageText is one rendered PDF page. Err is set when the page failed to render.
type PageText struct {
	Number int
	Text   string
	Err    error
}

// PageRenderer renders a PDF into per-page text.
type PageRenderer interface {
	RenderPages(ctx context.Context, data []byte) ([]PageText, error)
}

// ExtractOptions tune main-content extraction.
type ExtractOptions struct {
	FavorPrecision  bool
	IncludeComments bool
	IncludeLinks    bool
	IncludeImages   bool
	IncludeTables   bool
	Deduplicate     bool
}

// PrecisionOptions is the first web pass.
func PrecisionOptions() ExtractOptions {
	return ExtractOptions{FavorPrecision: true, IncludeTables: true, Deduplicate: true}
}

// RecallOptions is the fallback web pass.
func RecallOptions() ExtractOptions {
	return ExtractOptions{IncludeTables: true, Deduplicate: true}
}

// BoilerplateRemover extracts the main text of an HTML page. An empty string
// with a nil error means nothing was found.
type BoilerplateRemover interface {
	ExtractMain(ctx context.Context, html []byte, opts ExtractOptions) (string, error)
}
