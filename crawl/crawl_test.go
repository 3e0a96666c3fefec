package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
	"github.com/fwojciec/simpledocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedURL = "https://example.com/docs/"

// site is a fake documentation site. The HTML of every page is its URL,
// so the parser and extractor mocks can look pages up by content.
type site struct {
	links map[string][]string

	mu      sync.Mutex
	fetched []string
}

func (s *site) fetcher() *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (string, error) {
			s.mu.Lock()
			s.fetched = append(s.fetched, url)
			s.mu.Unlock()
			if _, ok := s.links[url]; !ok {
				return "", simpledocs.Errorf(simpledocs.EFETCH, "HTTP 404 for %s", url)
			}
			return url, nil
		},
		CloseFn: func() error { return nil },
	}
}

func (s *site) fetchOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fetched)
}

// progressRecorder collects every update sent to the progress service.
type progressRecorder struct {
	mu      sync.Mutex
	updates []simpledocs.ProgressUpdate
}

func (r *progressRecorder) service() *mock.ProgressService {
	return &mock.ProgressService{
		UpdateFn: func(_ context.Context, upd simpledocs.ProgressUpdate) simpledocs.ProgressSnapshot {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.updates = append(r.updates, upd)
			return simpledocs.ProgressSnapshot{}
		},
	}
}

func (r *progressRecorder) all() []simpledocs.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.updates)
}

func runeTokenizer() *mock.Tokenizer {
	return &mock.Tokenizer{
		EncodeFn: func(text string) []int {
			runes := []rune(text)
			tokens := make([]int, len(runes))
			for i, r := range runes {
				tokens[i] = int(r)
			}
			return tokens
		},
		DecodeFn: func(tokens []int) string {
			runes := make([]rune, len(tokens))
			for i, t := range tokens {
				runes[i] = rune(t)
			}
			return string(runes)
		},
	}
}

func vectors(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out
}

// newCrawler returns a crawler over s whose embedder returns unit vectors
// and whose store reports every write as new.
func newCrawler(s *site) *crawl.Crawler {
	c := crawl.NewCrawler()
	c.Fetcher = s.fetcher()
	c.Parser = &mock.HTMLParser{
		LinksFn: func(html, _ string) ([]string, error) {
			return s.links[html], nil
		},
	}
	c.Extractor = &mock.PageExtractor{
		ExtractPageFn: func(html string) (*simpledocs.ExtractedPage, error) {
			return &simpledocs.ExtractedPage{Title: "Page " + html, Content: "Content of " + html}, nil
		},
	}
	c.Chunker = simpledocs.NewChunker(runeTokenizer())
	c.Embedder = &mock.Embedder{
		EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
			return vectors(len(texts)), nil
		},
	}
	c.Store = &mock.DocumentStore{
		UpsertFn: func(_ context.Context, _ *simpledocs.DocumentUnit, _ []float32) (simpledocs.UpsertResult, error) {
			return simpledocs.UpsertResult{Success: true, IsNew: true}, nil
		},
	}
	c.MaxConcurrentScrapes = 4
	c.Dimension = 3
	c.EmbedBackoff = crawl.NoDelayBackoff(2)
	c.StoreBackoff = crawl.NoDelayBackoff(2)
	return c
}

// flatSite returns a seed page linking to n documentation pages.
func flatSite(n int) *site {
	links := map[string][]string{seedURL: nil}
	for i := range n {
		u := fmt.Sprintf("%spage-%d", seedURL, i)
		links[seedURL] = append(links[seedURL], u)
		links[u] = nil
	}
	return &site{links: links}
}

func TestCrawler_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("fetches only the seed when not recursive", func(t *testing.T) {
		t.Parallel()

		s := flatSite(3)
		c := newCrawler(s)

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, MaxDepth: 2})

		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusComplete, snap.Status)
		assert.Equal(t, 1, snap.URLsDiscovered)
		assert.Equal(t, 1, snap.URLsCrawled)
		assert.Equal(t, 1, snap.URLsFullyProcessed)
		assert.Equal(t, 1, snap.URLsNew)
		assert.Equal(t, []string{seedURL}, snap.URLsList)
		assert.Equal(t, []string{seedURL}, s.fetchOrder())
	})

	t.Run("fetches every URL of a depth before the next depth", func(t *testing.T) {
		t.Parallel()

		a, b, deep := seedURL+"a", seedURL+"b", seedURL+"a/deep"
		s := &site{links: map[string][]string{
			seedURL: {a, b},
			a:       {deep},
			b:       nil,
			deep:    {seedURL + "a/deep/deeper"},
		}}
		c := newCrawler(s)

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 2})

		require.NoError(t, err)
		order := s.fetchOrder()
		require.Len(t, order, 4)
		assert.Equal(t, seedURL, order[0])
		assert.ElementsMatch(t, []string{a, b}, order[1:3])
		assert.Equal(t, deep, order[3])
		// Links of the deepest pages are not followed.
		assert.Equal(t, 4, snap.URLsDiscovered)
		assert.Equal(t, 4, snap.URLsCrawled)
	})

	t.Run("fetches each URL once regardless of fragments", func(t *testing.T) {
		t.Parallel()

		a, b, shared := seedURL+"a", seedURL+"b", seedURL+"shared"
		s := &site{links: map[string][]string{
			seedURL: {a, b, a + "#intro"},
			a:       {shared, seedURL},
			b:       {shared + "#part-2"},
			shared:  nil,
		}}
		c := newCrawler(s)

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 3})

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{seedURL, a, b, shared}, s.fetchOrder())
		assert.Equal(t, 4, snap.URLsCrawled)
		assert.Equal(t, 4, snap.URLsDiscovered)
		assert.Len(t, snap.URLsList, 4)
	})

	t.Run("ignores links outside the documentation scope", func(t *testing.T) {
		t.Parallel()

		s := &site{links: map[string][]string{
			seedURL: {
				"https://example.com/blog/post",
				"https://other.com/docs/intro",
				"mailto:docs@example.com",
				"https://api.example.com/docs/v1",
			},
			"https://api.example.com/docs/v1": nil,
		}}
		c := newCrawler(s)

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 2})

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{seedURL, "https://api.example.com/docs/v1"}, s.fetchOrder())
		assert.Equal(t, 2, snap.URLsDiscovered)
	})

	t.Run("drops pages that fail to fetch", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		s.links[seedURL] = append(s.links[seedURL], seedURL+"missing")
		c := newCrawler(s)

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusComplete, snap.Status)
		assert.Equal(t, 4, snap.URLsDiscovered)
		assert.Equal(t, 3, snap.URLsCrawled)
		assert.Equal(t, 3, snap.URLsFullyProcessed)
		assert.NotContains(t, snap.URLsList, seedURL+"missing")
	})

	t.Run("excludes units without an embedding", func(t *testing.T) {
		t.Parallel()

		s := flatSite(49)
		c := newCrawler(s)
		var stored atomic.Int32
		c.Embedder = &mock.Embedder{
			EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
				out := vectors(len(texts))
				out[12] = nil
				return out, nil
			},
		}
		c.Store = &mock.DocumentStore{
			UpsertFn: func(_ context.Context, _ *simpledocs.DocumentUnit, _ []float32) (simpledocs.UpsertResult, error) {
				stored.Add(1)
				return simpledocs.UpsertResult{Success: true, IsNew: true}, nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, 50, snap.ChunksTotal)
		assert.Equal(t, 49, snap.ChunksProcessed)
		assert.Equal(t, 49, snap.URLsFullyProcessed)
		assert.Equal(t, int32(49), stored.Load())
	})

	t.Run("excludes units with the wrong dimension", func(t *testing.T) {
		t.Parallel()

		s := flatSite(1)
		c := newCrawler(s)
		c.Embedder = &mock.Embedder{
			EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
				out := vectors(len(texts))
				out[0] = []float32{1, 0}
				return out, nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, 1, snap.ChunksProcessed)
		assert.Equal(t, 1, snap.URLsFullyProcessed)
	})

	t.Run("classifies pages by store outcome on re-crawl", func(t *testing.T) {
		t.Parallel()

		s := flatSite(9)
		c := newCrawler(s)
		changed := seedURL + "page-4"
		c.Store = &mock.DocumentStore{
			UpsertFn: func(_ context.Context, unit *simpledocs.DocumentUnit, _ []float32) (simpledocs.UpsertResult, error) {
				if unit.OriginalURL == changed {
					return simpledocs.UpsertResult{Success: true, IsUpdated: true}, nil
				}
				return simpledocs.UpsertResult{Success: true}, nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, 10, snap.URLsFullyProcessed)
		assert.Equal(t, 0, snap.URLsNew)
		assert.Equal(t, 1, snap.URLsUpdated)
		assert.Equal(t, 9, snap.URLsUnchanged)
	})

	t.Run("counts a page whose stale units were pruned as updated", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		c := newCrawler(s)
		regrouped := seedURL + "page-1"
		var (
			mu   sync.Mutex
			kept = map[string][]string{}
		)
		c.Store = &mock.PruningDocumentStore{
			DocumentStore: mock.DocumentStore{
				UpsertFn: func(_ context.Context, _ *simpledocs.DocumentUnit, _ []float32) (simpledocs.UpsertResult, error) {
					return simpledocs.UpsertResult{Success: true, IsNew: true}, nil
				},
			},
			PruneUnitsFn: func(_ context.Context, page string, keep []string) (int, error) {
				mu.Lock()
				kept[page] = keep
				mu.Unlock()
				if page == regrouped {
					return 3, nil
				}
				return 0, nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, 3, snap.URLsFullyProcessed)
		assert.Equal(t, 2, snap.URLsNew)
		assert.Equal(t, 1, snap.URLsUpdated)
		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, kept, 3)
		assert.Equal(t, []string{regrouped}, kept[regrouped])
	})

	t.Run("excludes a batch whose embedding retries are exhausted", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		c := newCrawler(s)
		var calls atomic.Int32
		c.Embedder = &mock.Embedder{
			EmbedBatchFn: func(_ context.Context, _ []string) ([][]float32, error) {
				calls.Add(1)
				return nil, simpledocs.Errorf(simpledocs.EUNAVAILABLE, "rate limited")
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusComplete, snap.Status)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, 3, snap.ChunksTotal)
		assert.Equal(t, 0, snap.ChunksProcessed)
		assert.Equal(t, 0, snap.URLsFullyProcessed)
	})

	t.Run("fails a batch without retry when vector count mismatches", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		c := newCrawler(s)
		var calls atomic.Int32
		c.Embedder = &mock.Embedder{
			EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
				calls.Add(1)
				return vectors(len(texts) - 1), nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 0, snap.ChunksProcessed)
	})

	t.Run("embeds in batches of the configured size", func(t *testing.T) {
		t.Parallel()

		s := flatSite(6)
		c := newCrawler(s)
		c.EmbedBatchSize = 3
		c.ScrapeBatchSize = 2
		var mu sync.Mutex
		var sizes []int
		c.Embedder = &mock.Embedder{
			EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
				mu.Lock()
				sizes = append(sizes, len(texts))
				mu.Unlock()
				return vectors(len(texts)), nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, []int{3, 3, 1}, sizes)
		assert.Equal(t, 7, snap.ChunksProcessed)
		assert.Equal(t, 2, snap.ScrapeBatchSize)
		assert.Equal(t, 3, snap.EmbedBatchSize)
	})

	t.Run("counts a page with a failed chunk as not fully processed", func(t *testing.T) {
		t.Parallel()

		s := &site{links: map[string][]string{seedURL: nil}}
		c := newCrawler(s)
		c.Chunker.MaxTokens = 40
		c.Extractor = &mock.PageExtractor{
			ExtractPageFn: func(string) (*simpledocs.ExtractedPage, error) {
				return &simpledocs.ExtractedPage{Title: "T", Content: strings.Repeat("x", 60)}, nil
			},
		}
		var mu sync.Mutex
		var urls []string
		c.Store = &mock.DocumentStore{
			UpsertFn: func(_ context.Context, unit *simpledocs.DocumentUnit, _ []float32) (simpledocs.UpsertResult, error) {
				mu.Lock()
				urls = append(urls, unit.URL)
				mu.Unlock()
				if unit.ChunkIndex == 1 {
					return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.EINVALID, "bad row")
				}
				return simpledocs.UpsertResult{Success: true, IsNew: true}, nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL})

		require.NoError(t, err)
		assert.Contains(t, urls, seedURL+"#chunk-0")
		assert.Equal(t, snap.ChunksTotal-1, snap.ChunksProcessed)
		assert.Equal(t, 0, snap.URLsFullyProcessed)
		assert.Equal(t, 0, snap.URLsNew)
	})

	t.Run("sets the parent group on stored units", func(t *testing.T) {
		t.Parallel()

		s := &site{links: map[string][]string{"https://example.com/docs/guide/intro": nil}}
		c := newCrawler(s)
		var parent string
		c.Store = &mock.DocumentStore{
			UpsertFn: func(_ context.Context, unit *simpledocs.DocumentUnit, _ []float32) (simpledocs.UpsertResult, error) {
				parent = unit.ParentURL
				return simpledocs.UpsertResult{Success: true, IsNew: true}, nil
			},
		}

		_, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: "https://example.com/docs/guide/intro"})

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/docs/", parent)
	})

	t.Run("skips pages that fail extraction", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		c := newCrawler(s)
		c.Extractor = &mock.PageExtractor{
			ExtractPageFn: func(html string) (*simpledocs.ExtractedPage, error) {
				if html == seedURL {
					return nil, simpledocs.Errorf(simpledocs.EEXTRACT, "no content")
				}
				return &simpledocs.ExtractedPage{Title: "T", Content: html}, nil
			},
		}

		snap, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, 3, snap.URLsCrawled)
		assert.Equal(t, 2, snap.ChunksTotal)
		assert.Equal(t, 2, snap.URLsFullyProcessed)
	})

	t.Run("waits on the request limiter before every fetch", func(t *testing.T) {
		t.Parallel()

		s := flatSite(4)
		c := newCrawler(s)
		var waits atomic.Int32
		c.Limiter = &mock.RequestLimiter{
			WaitFn: func(context.Context) error {
				waits.Add(1)
				return nil
			},
		}

		_, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		assert.Equal(t, int32(5), waits.Load())
	})

	t.Run("publishes a run start and a terminal snapshot", func(t *testing.T) {
		t.Parallel()

		s := flatSite(2)
		c := newCrawler(s)
		rec := &progressRecorder{}
		c.Progress = rec.service()

		_, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.NoError(t, err)
		updates := rec.all()
		require.NotEmpty(t, updates)
		assert.True(t, updates[0].StartsRun())
		for _, upd := range updates[1:] {
			assert.False(t, upd.StartsRun())
		}

		last := simpledocs.NewProgressSnapshot()
		for _, upd := range updates {
			upd.ApplyTo(&last)
		}
		assert.Equal(t, simpledocs.StatusComplete, last.Status)
		assert.Equal(t, 3, last.URLsCrawled)
		assert.Equal(t, 3, last.ChunksProcessed)

		var statuses []simpledocs.Status
		for _, upd := range updates {
			if upd.Status != nil && (len(statuses) == 0 || statuses[len(statuses)-1] != *upd.Status) {
				statuses = append(statuses, *upd.Status)
			}
		}
		assert.Equal(t, []simpledocs.Status{
			simpledocs.StatusCrawling,
			simpledocs.StatusScraping,
			simpledocs.StatusEmbedding,
			simpledocs.StatusComplete,
		}, statuses)
	})

	t.Run("ends as cancelled when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := flatSite(2)
		c := newCrawler(s)
		c.Fetcher = &mock.Fetcher{
			FetchFn: func(_ context.Context, url string) (string, error) {
				cancel()
				return url, nil
			},
		}
		var embedded atomic.Bool
		c.Embedder = &mock.Embedder{
			EmbedBatchFn: func(_ context.Context, texts []string) ([][]float32, error) {
				embedded.Store(true)
				return vectors(len(texts)), nil
			},
		}
		rec := &progressRecorder{}
		c.Progress = rec.service()

		snap, err := c.Crawl(ctx, simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, simpledocs.StatusCancelled, snap.Status)
		assert.False(t, embedded.Load())

		updates := rec.all()
		require.NotEmpty(t, updates)
		require.NotNil(t, updates[len(updates)-1].Status)
		assert.Equal(t, simpledocs.StatusCancelled, *updates[len(updates)-1].Status)
	})

	t.Run("rejects an invalid request", func(t *testing.T) {
		t.Parallel()

		c := newCrawler(flatSite(0))

		_, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: "not a url"})

		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
	})

	t.Run("requires every collaborator", func(t *testing.T) {
		t.Parallel()

		c := newCrawler(flatSite(0))
		c.Embedder = nil

		_, err := c.Crawl(context.Background(), simpledocs.CrawlRequest{URL: seedURL})

		require.Error(t, err)
		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
		assert.False(t, errors.Is(err, context.Canceled))
	})
}

func TestCrawler_Crawl_Observer(t *testing.T) {
	t.Parallel()

	s := flatSite(2)
	c := newCrawler(s)

	var (
		mu    sync.Mutex
		snaps []simpledocs.ProgressSnapshot
	)
	ctx := crawl.WithObserver(context.Background(), func(snap simpledocs.ProgressSnapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	final, err := c.Crawl(ctx, simpledocs.CrawlRequest{URL: seedURL, Recursive: true, MaxDepth: 1})

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	assert.Equal(t, simpledocs.StatusCrawling, snaps[0].Status)
	assert.Equal(t, seedURL, snaps[0].CurrentURL)
	last := snaps[len(snaps)-1]
	assert.Equal(t, simpledocs.StatusComplete, last.Status)
	assert.Equal(t, final.URLsCrawled, last.URLsCrawled)
	assert.Equal(t, final.ChunksProcessed, last.ChunksProcessed)
}
