package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/logger"
	"github.com/markdave123-py/contexta-ingest/internal/metrics"
)

var ErrBodyTooLarge = errors.New("response body exceeds limit")

// Media types accepted by the extractors.
const (
	MediaHTML  = "text/html"
	MediaXHTML = "application/xhtml+xml"
	MediaPDF   = "application/pdf"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; ContextaIngest/1.0; +https://github.com/markdave123-py/contexta-ingest)"

// Options tune the fetcher.
//
// Timeout:       per-attempt deadline covering connect, headers and body.
// MaxRetries:    additional attempts after the first on transient failures.
// BackoffUnit:   delay before retry n is BackoffUnit * 2^n (n starts at 0).
// MaxBodyBytes:  responses larger than this fail without retry.
// RetryStatuses: 4xx codes treated as transient besides 5xx.
type Options struct {
	Timeout       time.Duration
	MaxRetries    int
	BackoffUnit   time.Duration
	MaxBodyBytes  int64
	UserAgent     string
	RetryStatuses []int
}

func DefaultOptions() Options {
	return Options{
		Timeout:       30 * time.Second,
		MaxRetries:    3,
		BackoffUnit:   time.Second,
		MaxBodyBytes:  50 << 20,
		UserAgent:     defaultUserAgent,
		RetryStatuses: []int{http.StatusRequestTimeout, http.StatusTooManyRequests},
	}
}

// Response is a fully read HTTP response body.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string // media type without parameters
	Body        []byte
}

// Fetcher performs GET requests with retry and content-type validation.
// Each call uses its own transport, released when the call returns.
type Fetcher struct {
	opts    Options
	base    *http.Transport
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Fetcher)

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger.WithComponent(l, "fetcher") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// WithTransport sets the transport cloned for every call.
func WithTransport(t *http.Transport) Option {
	return func(f *Fetcher) { f.base = t }
}

func New(opts Options, options ...Option) *Fetcher {
	d := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffUnit < 0 {
		opts.BackoffUnit = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = d.MaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = d.UserAgent
	}
	if opts.RetryStatuses == nil {
		opts.RetryStatuses = d.RetryStatuses
	}

	f := &Fetcher{
		opts:   opts,
		base:   http.DefaultTransport.(*http.Transport),
		sleep:  sleepCtx,
		logger: logger.WithComponent(nil, "fetcher"),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

func (f *Fetcher) Options() Options { return f.opts }

// Fetch downloads rawURL. expected lists acceptable media types; an empty
// list accepts anything. Transient failures (timeouts, connection errors,
// 5xx and RetryStatuses) are retried up to MaxRetries times. Everything else
// fails after one attempt. Failures are always *core.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, expected ...string) (*Response, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, &core.FetchError{URL: rawURL, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &core.FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", core.ErrInvalidSource, err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if len(expected) > 0 {
		req.Header.Set("Accept", strings.Join(expected, ", ")+", */*;q=0.5")
	}

	transport := f.base.Clone()
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: f.opts.Timeout}

	var (
		lastErr    error
		lastStatus int
		retryable  bool
		attempts   int
	)
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		attempts++
		resp, status, err := f.do(client, req.Clone(ctx), expected)
		if err == nil {
			f.metrics.FetchAttempt("ok")
			if attempt > 0 {
				f.logger.InfoContext(ctx, "fetch succeeded after retry", "url", rawURL, "attempt", attempts)
			}
			return resp, nil
		}

		lastErr, lastStatus = err, status
		retryable = f.isRetryable(ctx, err)
		if !retryable || attempt == f.opts.MaxRetries {
			f.metrics.FetchAttempt("fail")
			break
		}
		f.metrics.FetchAttempt("retry")

		delay := f.opts.BackoffUnit * time.Duration(1<<attempt)
		f.logger.WarnContext(ctx, "fetch failed, retrying",
			"url", rawURL, "attempt", attempts, "max_attempts", f.opts.MaxRetries+1,
			"status", status, "error", err, "next_delay", delay)

		if err := f.sleep(ctx, delay); err != nil {
			lastErr, retryable = err, false
			break
		}
	}

	return nil, &core.FetchError{
		URL:        rawURL,
		Attempts:   attempts,
		StatusCode: lastStatus,
		Retryable:  retryable,
		Err:        lastErr,
	}
}

// do performs one attempt. status is 0 when no response arrived.
func (f *Fetcher) do(client *http.Client, req *http.Request, expected []string) (*Response, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, resp.StatusCode, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, resp.StatusCode, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.opts.MaxBodyBytes)
	}

	mediaType := MediaType(resp.Header.Get("Content-Type"))
	if mediaType == "" {
		mediaType = MediaType(http.DetectContentType(body))
	}
	if len(expected) > 0 && !Accepts(expected, mediaType) {
		return nil, resp.StatusCode, fmt.Errorf("%w: got %q, want one of %v", core.ErrUnsupportedContentType, mediaType, expected)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: mediaType,
		Body:        body,
	}, resp.StatusCode, nil
}

func (f *Fetcher) isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || slices.Contains(f.opts.RetryStatuses, se.code)
	}
	if errors.Is(err, core.ErrUnsupportedContentType) || errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	// Timeouts, refused or reset connections, DNS failures and body read
	// errors after a 2xx.
	return true
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.code, http.StatusText(e.code))
}

// ValidateURL requires an absolute http(s) URL with a host.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: malformed url: %v", core.ErrInvalidSource, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported url scheme %q", core.ErrInvalidSource, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", core.ErrInvalidSource)
	}
	return nil
}

// MediaType strips parameters from a Content-Type value and lowercases it.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// Accepts reports whether mediaType matches one of expected. Entries may
// use a "type/*" wildcard.
func Accepts(expected []string, mediaType string) bool {
	for _, e := range expected {
		e = strings.ToLower(e)
		if e == mediaType || e == "*/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(e, "/*"); ok && strings.HasPrefix(mediaType, prefix+"/") {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
