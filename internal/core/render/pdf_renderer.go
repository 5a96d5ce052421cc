package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

var ErrEmptyPage = errors.New("page has no content")

var _ core.PageRenderer = (*PDFRenderer)(nil)

// PDFRenderer renders PDF pages to plain text with ledongthuc/pdf.
// A page that fails is reported through PageText.Err, never as a call error.
type PDFRenderer struct {
	logger *slog.Logger
}

func NewPDFRenderer(l *slog.Logger) *PDFRenderer {
	return &PDFRenderer{logger: logger.WithComponent(l, "pdf_renderer")}
}

// RenderPages returns one entry per page, in page order. The error is set
// only when the document itself cannot be opened or ctx ends.
func (r *PDFRenderer) RenderPages(ctx context.Context, data []byte) ([]core.PageText, error) {
	reader, err := openPDF(data)
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages := make([]core.PageText, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		p := renderPage(reader, i)
		if p.Err != nil {
			r.logger.DebugContext(ctx, "page render failed", "page", i, "error", p.Err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func openPDF(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reader, err = nil, fmt.Errorf("open pdf: %v", rec)
		}
	}()
	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return reader, nil
}

func renderPage(reader *pdf.Reader, num int) (pt core.PageText) {
	pt.Number = num
	defer func() {
		if rec := recover(); rec != nil {
			pt.Text, pt.Err = "", fmt.Errorf("page %d: %v", num, rec)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		pt.Err = fmt.Errorf("page %d: %w", num, ErrEmptyPage)
		return pt
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		pt.Err = fmt.Errorf("page %d: %w", num, err)
		return pt
	}
	pt.Text = text
	return pt
}
