package extractor

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/fetcher"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// Extensions that never hold readable page content. PDFs are allowed and
// routed to the PDF strategy by content type.
var unsupportedExtensions = map[string]struct{}{
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".zip": {}, ".rar": {}, ".tar": {}, ".gz": {},
	".mp3": {}, ".mp4": {}, ".avi": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {},
	".exe": {}, ".dmg": {},
}

// ValidateWebURL checks the scheme and host and rejects URLs pointing at
// binary files.
func ValidateWebURL(rawURL string) error {
	if err := fetcher.ValidateURL(rawURL); err != nil {
		return err
	}
	u, _ := url.Parse(strings.TrimSpace(rawURL))
	if _, bad := unsupportedExtensions[strings.ToLower(path.Ext(u.Path))]; bad {
		return fmt.Errorf("%w: unsupported file type %q", core.ErrInvalidSource, path.Ext(u.Path))
	}
	return nil
}

func (e *Extractor) extractWeb(ctx context.Context, src models.SourceDescriptor) (*core.Extraction, error) {
	if err := ValidateWebURL(src.URL); err != nil {
		return nil, err
	}

	resp, err := e.fetcher.Fetch(ctx, src.URL, fetcher.MediaHTML, fetcher.MediaXHTML, fetcher.MediaPDF)
	if err != nil {
		return nil, err
	}

	if resp.ContentType == fetcher.MediaPDF {
		e.logger.InfoContext(ctx, "web source served a pdf", "url", src.URL)
		text, pages, err := e.renderPDF(ctx, resp.Body)
		if err != nil {
			return nil, err
		}
		return &core.Extraction{
			Text:        text,
			Metadata:    map[string]string{"url": src.URL, "pages": strconv.Itoa(pages)},
			Raw:         resp.Body,
			ContentType: fetcher.MediaPDF,
		}, nil
	}

	body, err := e.mainContent(ctx, src.URL, resp.Body)
	if err != nil {
		return nil, err
	}
	body = CleanWebText(body)
	if n := utf8.RuneCountInString(body); n < MinWebContentLength {
		return nil, fmt.Errorf("%w: %d characters of main content, need %d", core.ErrContentTooShort, n, MinWebContentLength)
	}

	return &core.Extraction{
		Text:        "Source: " + src.URL + "\n\n" + body,
		Metadata:    ReadHTMLMetadata(resp.Body, src.URL),
		Raw:         resp.Body,
		ContentType: resp.ContentType,
	}, nil
}

// mainContent runs the precision pass and falls back to the recall pass when
// the first yields nothing.
func (e *Extractor) mainContent(ctx context.Context, pageURL string, html []byte) (string, error) {
	text, err := e.remover.ExtractMain(ctx, html, core.PrecisionOptions())
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	e.logger.InfoContext(ctx, "precision extraction empty, retrying with recall", "url", pageURL, "error", err)

	text, err = e.remover.ExtractMain(ctx, html, core.RecallOptions())
	if err != nil {
		return "", fmt.Errorf("extract main content: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no main content in page", core.ErrNoExtractableContent)
	}
	return text, nil
}
