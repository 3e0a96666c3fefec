package mock

import (
	"context"

	"github.com/fwojciec/simpledocs"
)

var (
	_ simpledocs.Fetcher        = (*Fetcher)(nil)
	_ simpledocs.Extractor      = (*Extractor)(nil)
	_ simpledocs.Converter      = (*Converter)(nil)
	_ simpledocs.PageExtractor  = (*PageExtractor)(nil)
	_ simpledocs.HTMLParser     = (*HTMLParser)(nil)
	_ simpledocs.SitemapService = (*SitemapService)(nil)
)

// Fetcher is a mock implementation of simpledocs.Fetcher.
// A nil CloseFn makes Close a no-op.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	if f.CloseFn == nil {
		return nil
	}
	return f.CloseFn()
}

// Extractor is a mock implementation of simpledocs.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*simpledocs.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*simpledocs.ExtractResult, error) {
	return e.ExtractFn(html)
}

// Converter is a mock implementation of simpledocs.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}

// PageExtractor is a mock implementation of simpledocs.PageExtractor.
type PageExtractor struct {
	ExtractPageFn func(html string) (*simpledocs.ExtractedPage, error)
}

func (e *PageExtractor) ExtractPage(html string) (*simpledocs.ExtractedPage, error) {
	return e.ExtractPageFn(html)
}

// HTMLParser is a mock implementation of simpledocs.HTMLParser.
type HTMLParser struct {
	TitleFn         func(html string) (string, error)
	ContainerTextFn func(html string) (string, error)
	LinksFn         func(html, baseURL string) ([]string, error)
}

func (p *HTMLParser) Title(html string) (string, error) {
	return p.TitleFn(html)
}

func (p *HTMLParser) ContainerText(html string) (string, error) {
	return p.ContainerTextFn(html)
}

func (p *HTMLParser) Links(html, baseURL string) ([]string, error) {
	return p.LinksFn(html, baseURL)
}

// SitemapService is a mock implementation of simpledocs.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string, matcher simpledocs.URLMatcher) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, matcher simpledocs.URLMatcher) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL, matcher)
}
