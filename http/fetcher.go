// Package http provides the HTTP fetcher, sitemap discovery and the HTTP
// API server of simpledocs.
package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/fwojciec/simpledocs"
	"golang.org/x/net/html/charset"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 30 * time.Second

// DefaultUserAgent identifies the crawler to documentation sites.
const DefaultUserAgent = "Mozilla/5.0 (compatible; Documentation Crawler; +http://localhost)"

// maxBodySize caps the HTML read from a single page.
const maxBodySize = 10 << 20

var _ simpledocs.Fetcher = (*Fetcher)(nil)

// Fetcher is the static renderer: a plain GET without JavaScript.
// Redirects are followed.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (30s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch retrieves url and returns its body decoded to UTF-8.
// Network failures, non-2xx statuses and non-HTML content types
// return EFETCH. Cancellation returns the context error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", simpledocs.Errorf(simpledocs.EFETCH, "invalid request for %s: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", simpledocs.Errorf(simpledocs.EFETCH, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", simpledocs.Errorf(simpledocs.EFETCH, "HTTP %d for %s", resp.StatusCode, url)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return "", simpledocs.Errorf(simpledocs.EFETCH, "%s is %s, not HTML", url, contentType)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), contentType)
	if errors.Is(err, io.EOF) {
		// An empty body is an empty page, not a failed fetch.
		return "", nil
	} else if err != nil {
		return "", simpledocs.Errorf(simpledocs.EFETCH, "decode %s: %v", url, err)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", simpledocs.Errorf(simpledocs.EFETCH, "read %s: %v", url, err)
	}
	return string(b), nil
}

// isHTML accepts a missing Content-Type since many static hosts omit it.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Close is a no-op.
func (f *Fetcher) Close() error {
	return nil
}
