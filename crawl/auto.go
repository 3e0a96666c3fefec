package crawl

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/fwojciec/simpledocs"
)

var _ simpledocs.CrawlService = (*AutoRenderer)(nil)

// AutoRenderer runs every crawl with the fetcher ChooseFetcher picks for
// the request's seed URL. Static sites are crawled over plain HTTP and
// JavaScript-rendered ones through the browser.
type AutoRenderer struct {
	// Crawler is the template for each run. Its Fetcher is replaced.
	Crawler *Crawler

	Static    simpledocs.Fetcher
	Browser   simpledocs.Fetcher
	Extractor simpledocs.Extractor
	Logger    *slog.Logger
}

// Crawl probes the seed URL, then crawls with the chosen fetcher.
func (a *AutoRenderer) Crawl(ctx context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
	if err := req.Validate(); err != nil {
		return simpledocs.ProgressSnapshot{}, err
	}

	static := &limitedFetcher{Fetcher: a.Static, c: a.Crawler}
	browser := &limitedFetcher{Fetcher: a.Browser, c: a.Crawler}
	chosen, err := ChooseFetcher(ctx, req.URL, static, browser, a.Extractor, a.Logger)
	if err != nil {
		return simpledocs.ProgressSnapshot{}, err
	}

	c := *a.Crawler
	c.Fetcher = a.Static
	if chosen == simpledocs.Fetcher(browser) {
		c.Fetcher = a.Browser
	}
	return c.Crawl(ctx, req)
}

// limitedFetcher holds the renderer check fetches to the limits of the
// crawl they precede.
type limitedFetcher struct {
	simpledocs.Fetcher
	c *Crawler
}

func (f *limitedFetcher) Fetch(ctx context.Context, u string) (string, error) {
	var host string
	if p, err := url.Parse(u); err == nil {
		host = p.Hostname()
	}
	if err := f.c.wait(ctx, host); err != nil {
		return "", err
	}
	return f.Fetcher.Fetch(ctx, u)
}
