package crawl_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
	"github.com/fwojciec/simpledocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoRenderer_Crawl(t *testing.T) {
	t.Parallel()

	lengthExtractor := &mock.Extractor{
		ExtractFn: func(html string) (*simpledocs.ExtractResult, error) {
			if html == "rendered" {
				return &simpledocs.ExtractResult{ContentHTML: "a much longer body rendered by javascript"}, nil
			}
			return &simpledocs.ExtractResult{ContentHTML: "short"}, nil
		},
	}

	t.Run("crawls with the browser when rendering adds content", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		probe := &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) { return "static", nil },
			CloseFn: func() error { return nil },
		}
		browser := s.fetcher()
		browserProbed := false
		auto := &crawl.AutoRenderer{
			Crawler: newCrawler(&site{}),
			Static:  probe,
			Browser: &mock.Fetcher{
				FetchFn: func(ctx context.Context, url string) (string, error) {
					if !browserProbed {
						browserProbed = true
						return "rendered", nil
					}
					return browser.Fetch(ctx, url)
				},
				CloseFn: func() error { return nil },
			},
			Extractor: lengthExtractor,
		}
		auto.Crawler.Parser = &mock.HTMLParser{
			LinksFn: func(html, _ string) ([]string, error) { return s.links[html], nil },
		}

		snap, err := auto.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusComplete, snap.Status)
		assert.Equal(t, 3, snap.URLsCrawled)
		assert.Len(t, s.fetchOrder(), 3)
	})

	t.Run("keeps the template crawler untouched", func(t *testing.T) {
		t.Parallel()

		s := flatSite(0)
		template := newCrawler(s)
		original := template.Fetcher
		auto := &crawl.AutoRenderer{
			Crawler: template,
			Static:  s.fetcher(),
			Browser: &mock.Fetcher{
				FetchFn: func(context.Context, string) (string, error) {
					return "", simpledocs.Errorf(simpledocs.EFETCH, "no browser")
				},
				CloseFn: func() error { return nil },
			},
			Extractor: lengthExtractor,
		}

		snap, err := auto.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL})

		require.NoError(t, err)
		assert.Equal(t, 1, snap.URLsCrawled)
		assert.Same(t, original, template.Fetcher)
	})

	t.Run("waits on the crawl limits before choosing a renderer", func(t *testing.T) {
		t.Parallel()

		s := flatSite(0)
		template := newCrawler(s)
		var (
			runWaits atomic.Int32
			hosts    []string
			mu       sync.Mutex
		)
		template.Limiter = &mock.RequestLimiter{
			WaitFn: func(context.Context) error {
				runWaits.Add(1)
				return nil
			},
		}
		template.HostLimiter = &mock.DomainLimiter{
			WaitFn: func(_ context.Context, host string) error {
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
				return nil
			},
		}
		auto := &crawl.AutoRenderer{
			Crawler: template,
			Static:  s.fetcher(),
			Browser: &mock.Fetcher{
				FetchFn: func(context.Context, string) (string, error) { return "rendered", nil },
				CloseFn: func() error { return nil },
			},
			Extractor: lengthExtractor,
		}

		_, err := auto.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL})

		require.NoError(t, err)
		// Both renderer checks plus the one page the crawl fetches.
		assert.Equal(t, int32(3), runWaits.Load())
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"example.com", "example.com", "example.com"}, hosts)
	})

	t.Run("skips the renderer check once the limiter refuses", func(t *testing.T) {
		t.Parallel()

		template := newCrawler(&site{})
		template.Limiter = &mock.RequestLimiter{
			WaitFn: func(context.Context) error { return context.Canceled },
		}
		browserFetched := false
		auto := &crawl.AutoRenderer{
			Crawler: template,
			Static:  template.Fetcher,
			Browser: &mock.Fetcher{
				FetchFn: func(context.Context, string) (string, error) {
					browserFetched = true
					return "rendered", nil
				},
				CloseFn: func() error { return nil },
			},
			Extractor: lengthExtractor,
		}

		_, _ = auto.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL})

		assert.False(t, browserFetched)
	})

	t.Run("rejects an invalid request before probing", func(t *testing.T) {
		t.Parallel()

		auto := &crawl.AutoRenderer{Crawler: crawl.NewCrawler()}

		_, err := auto.Crawl(context.Background(), simpledocs.CrawlRequest{URL: "mailto:someone"})

		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
	})
}
