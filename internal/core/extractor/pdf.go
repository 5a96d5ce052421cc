package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/fetcher"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var pdfMagic = []byte("%PDF-")

// Remote PDFs are often served as generic binaries; the magic bytes decide.
var pdfMediaTypes = []string{fetcher.MediaPDF, "application/x-pdf", "application/octet-stream", "binary/octet-stream"}

func (e *Extractor) extractPDF(ctx context.Context, src models.SourceDescriptor) (*core.Extraction, error) {
	data := src.Data
	meta := map[string]string{}
	if src.Name != "" {
		meta["file_name"] = src.Name
	}

	if len(data) == 0 {
		resp, err := e.fetcher.Fetch(ctx, src.URL, pdfMediaTypes...)
		if err != nil {
			return nil, err
		}
		data = resp.Body
		meta["url"] = src.URL
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return nil, fmt.Errorf("%w: payload is not a PDF document", core.ErrUnsupportedContentType)
	}

	text, pages, err := e.renderPDF(ctx, data)
	if err != nil {
		return nil, err
	}
	meta["pages"] = strconv.Itoa(pages)

	return &core.Extraction{
		Text:        text,
		Metadata:    meta,
		Raw:         data,
		ContentType: fetcher.MediaPDF,
	}, nil
}

// renderPDF renders every page, prefixes each with a page marker and skips
// pages that fail or come out empty. It fails only when no page has text.
func (e *Extractor) renderPDF(ctx context.Context, data []byte) (string, int, error) {
	pages, err := e.renderer.RenderPages(ctx, data)
	if err != nil {
		return "", 0, fmt.Errorf("render pdf: %w", err)
	}

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Err != nil {
			e.logger.WarnContext(ctx, "skipping pdf page", "page", p.Number, "error", p.Err)
			e.metrics.PageSkipped()
			continue
		}
		cleaned := CleanPageText(p.Text)
		if cleaned == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("<!-- Page %d -->\n%s", p.Number, cleaned))
	}
	if len(parts) == 0 {
		return "", len(pages), fmt.Errorf("%w: no page yielded text", core.ErrNoExtractableContent)
	}
	return strings.Join(parts, "\n\n"), len(pages), nil
}
