// Package crawl provides documentation crawling orchestration.
// It coordinates depth-wave discovery, extraction, chunking, embedding and
// storage of documentation pages, and reports progress as it goes.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/simpledocs"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrentScrapes bounds simultaneous fetches and extractions.
const DefaultMaxConcurrentScrapes = 30

var _ simpledocs.CrawlService = (*Crawler)(nil)

// Crawler orchestrates the crawling of documentation sites.
// A Crawler holds no per-run state and may run several crawls at once.
type Crawler struct {
	Fetcher   simpledocs.Fetcher
	Extractor simpledocs.PageExtractor
	Parser    simpledocs.HTMLParser
	Chunker   *simpledocs.Chunker
	Embedder  simpledocs.Embedder
	Store     simpledocs.DocumentStore

	// Progress, if set, receives an update at every checkpoint.
	Progress simpledocs.ProgressService

	// Limiter caps fetches for the whole run. HostLimiter, if set, adds
	// per-host politeness on top.
	Limiter     simpledocs.RequestLimiter
	HostLimiter simpledocs.DomainLimiter

	// DocPatterns apply to requests that carry none of their own. When
	// both are empty the default documentation patterns are used.
	DocPatterns []string

	MaxConcurrentScrapes int
	ScrapeBatchSize      int
	EmbedBatchSize       int
	Dimension            int

	// EmbedBackoff and StoreBackoff retry failed embedding and storage
	// calls. The zero value does not retry.
	EmbedBackoff Backoff
	StoreBackoff Backoff

	Logger *slog.Logger
}

// NewCrawler returns a Crawler with default sizes and retry policies.
func NewCrawler() *Crawler {
	return &Crawler{
		MaxConcurrentScrapes: DefaultMaxConcurrentScrapes,
		ScrapeBatchSize:      simpledocs.DefaultScrapeBatchSize,
		EmbedBatchSize:       simpledocs.DefaultEmbedBatchSize,
		Dimension:            simpledocs.EmbeddingDimension,
		EmbedBackoff:         DefaultBackoff(),
		StoreBackoff:         DefaultBackoff(),
	}
}

// Crawl runs one crawl to completion and returns its final snapshot.
//
// URLs are fetched in depth waves: every URL of depth d is fetched and its
// links merged before any URL of depth d+1 starts. Links are followed only
// when req.Recursive is set and the page depth is below req.MaxDepth. The
// cached HTML of every crawled page is then extracted and chunked in
// batches, the chunks are embedded in batches and each embedded chunk is
// upserted into the store.
//
// Page, batch and document failures are logged and reflected in the
// counters. Cancelling ctx stops the run with StatusCancelled and returns
// the context error alongside the snapshot.
func (c *Crawler) Crawl(ctx context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
	if err := req.Validate(); err != nil {
		return simpledocs.ProgressSnapshot{}, err
	}
	if err := c.validate(); err != nil {
		return simpledocs.ProgressSnapshot{}, err
	}

	r, err := c.newRun(req)
	if err != nil {
		return simpledocs.ProgressSnapshot{}, err
	}
	r.logger.Info("crawl started", "url", req.URL, "recursive", req.Recursive, "max_depth", req.MaxDepth)

	r.start(ctx)
	r.crawl(ctx)
	if ctx.Err() == nil {
		r.scrape(ctx)
	}
	if ctx.Err() == nil {
		r.embed(ctx)
	}

	status := simpledocs.StatusComplete
	if ctx.Err() != nil {
		status = simpledocs.StatusCancelled
	}
	final := r.finish(ctx, status)
	r.logger.Info("crawl finished",
		"url", req.URL,
		"status", final.Status,
		"discovered", final.URLsDiscovered,
		"crawled", final.URLsCrawled,
		"fully_processed", final.URLsFullyProcessed,
		"chunks", final.ChunksProcessed,
		"new", final.URLsNew,
		"updated", final.URLsUpdated,
		"unchanged", final.URLsUnchanged,
	)
	return final, ctx.Err()
}

// validate reports a missing collaborator as a fatal initialization error.
func (c *Crawler) validate() error {
	switch {
	case c.Fetcher == nil:
		return simpledocs.Errorf(simpledocs.EINVALID, "crawler requires a fetcher")
	case c.Extractor == nil:
		return simpledocs.Errorf(simpledocs.EINVALID, "crawler requires an extractor")
	case c.Parser == nil:
		return simpledocs.Errorf(simpledocs.EINVALID, "crawler requires an HTML parser")
	case c.Chunker == nil:
		return simpledocs.Errorf(simpledocs.EINVALID, "crawler requires a chunker")
	case c.Embedder == nil:
		return simpledocs.Errorf(simpledocs.EINVALID, "crawler requires an embedder")
	case c.Store == nil:
		return simpledocs.Errorf(simpledocs.EINVALID, "crawler requires a document store")
	}
	return nil
}

// run is the state of a single crawl. Nothing in it is shared between runs.
type run struct {
	c       *Crawler
	req     simpledocs.CrawlRequest
	matcher *simpledocs.PatternMatcher
	scope   *Scope
	state   *CrawlState
	logger  *slog.Logger

	concurrency int
	scrapeBatch int
	embedBatch  int
	dimension   int

	// units accumulates the chunks of every extracted page.
	units []*simpledocs.DocumentUnit

	// mu guards snap and pages.
	mu    sync.Mutex
	snap  simpledocs.ProgressSnapshot
	pages map[string]*pageTally
}

// pageTally tracks the outcome of every unit of one page.
type pageTally struct {
	total     int
	failed    int
	isNew     int
	updated   int
	unchanged int
}

func (p *pageTally) resolved() int {
	return p.failed + p.isNew + p.updated + p.unchanged
}

func (c *Crawler) newRun(req simpledocs.CrawlRequest) (*run, error) {
	patterns := req.DocPatterns
	if len(patterns) == 0 {
		patterns = c.DocPatterns
	}
	matcher := simpledocs.NewPatternMatcher(patterns...)
	scope, err := NewScope(req.URL, matcher)
	if err != nil {
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &run{
		c:           c,
		req:         req,
		matcher:     matcher,
		scope:       scope,
		state:       NewCrawlState(),
		logger:      logger,
		concurrency: positive(c.MaxConcurrentScrapes, DefaultMaxConcurrentScrapes),
		scrapeBatch: positive(c.ScrapeBatchSize, simpledocs.DefaultScrapeBatchSize),
		embedBatch:  positive(c.EmbedBatchSize, simpledocs.DefaultEmbedBatchSize),
		dimension:   positive(c.Dimension, simpledocs.EmbeddingDimension),
		snap:        simpledocs.NewProgressSnapshot(),
		pages:       make(map[string]*pageTally),
	}
	r.snap.ScrapeBatchSize = r.scrapeBatch
	r.snap.EmbedBatchSize = r.embedBatch
	return r, nil
}

// crawl fetches the seed and, when recursive, follows links wave by wave.
func (r *run) crawl(ctx context.Context) {
	seed, err := NormalizeURL(r.req.URL)
	if err != nil {
		return
	}
	r.state.Discover(seed)

	wave := []string{seed}
	for depth := 0; len(wave) > 0; depth++ {
		follow := r.req.Recursive && depth < r.req.MaxDepth
		r.logger.Info("crawl wave", "depth", depth, "urls", len(wave), "follow_links", follow)

		wave = r.fetchWave(ctx, wave, follow)
		if ctx.Err() != nil {
			return
		}

		discovered, _ := r.state.Counts()
		r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
			s.URLsDiscovered = discovered
			return simpledocs.ProgressUpdate{URLsDiscovered: ptr(discovered)}
		})
	}
}

// fetchWave fetches every URL of one depth concurrently and returns the
// newly discovered links. It returns only after all fetches resolved.
func (r *run) fetchWave(ctx context.Context, urls []string, follow bool) []string {
	var (
		mu   sync.Mutex
		next []string
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, u := range urls {
		g.Go(func() error {
			html, ok := r.fetch(ctx, u)
			if !ok || !follow {
				return nil
			}
			links := r.links(html, u)
			mu.Lock()
			next = append(next, links...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return next
}

// fetch retrieves one page under the rate limits and records it as crawled.
func (r *run) fetch(ctx context.Context, u string) (string, bool) {
	if r.state.IsCrawled(u) {
		return "", false
	}
	if err := r.c.wait(ctx, r.scope.hostOf(u)); err != nil {
		return "", false
	}

	html, err := r.c.Fetcher.Fetch(ctx, u)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("fetch failed", "url", u, "phase", "crawling", "code", simpledocs.ErrorCode(err), "err", err)
		}
		return "", false
	}
	if !r.state.MarkCrawled(u, html) {
		return "", false
	}

	discovered, crawled := r.state.Counts()
	r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
		s.URLsCrawled = crawled
		s.URLsDiscovered = discovered
		s.CurrentURL = u
		s.URLsList = append(s.URLsList, u)
		list := append([]string{}, s.URLsList...)
		return simpledocs.ProgressUpdate{
			URLsCrawled:    ptr(crawled),
			URLsDiscovered: ptr(discovered),
			CurrentURL:     ptr(u),
			URLsList:       &list,
		}
	})
	return html, true
}

// links returns the in-scope links of a page that were not discovered yet,
// marking them discovered.
func (r *run) links(html, pageURL string) []string {
	all, err := r.c.Parser.Links(html, pageURL)
	if err != nil {
		r.logger.Warn("link extraction failed", "url", pageURL, "err", err)
		return nil
	}
	var found []string
	for _, link := range all {
		if !r.scope.Allows(link) {
			continue
		}
		if r.state.Discover(link) {
			n, _ := NormalizeURL(link)
			found = append(found, n)
		}
	}
	return found
}

// scrape extracts and chunks the cached HTML of every discovered URL.
func (r *run) scrape(ctx context.Context) {
	r.setStatus(ctx, simpledocs.StatusScraping)

	urls := r.state.Discovered()
	for start := 0; start < len(urls); start += r.scrapeBatch {
		if ctx.Err() != nil {
			return
		}
		batch := urls[start:min(start+r.scrapeBatch, len(urls))]
		results := make([][]*simpledocs.DocumentUnit, len(batch))

		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, u := range batch {
			g.Go(func() error {
				results[i] = r.extract(u)
				return nil
			})
		}
		_ = g.Wait()

		added := 0
		r.mu.Lock()
		for i, units := range results {
			if len(units) == 0 {
				continue
			}
			r.pages[batch[i]] = &pageTally{total: len(units)}
			r.units = append(r.units, units...)
			added += len(units)
		}
		r.mu.Unlock()

		last := batch[len(batch)-1]
		r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
			s.ChunksTotal += added
			s.CurrentURL = last
			return simpledocs.ProgressUpdate{ChunksTotal: ptr(s.ChunksTotal), CurrentURL: ptr(last)}
		})
	}
}

// extract turns the cached HTML of one page into document units.
func (r *run) extract(u string) []*simpledocs.DocumentUnit {
	html, ok := r.state.HTML(u)
	if !ok {
		return nil
	}
	page, err := r.c.Extractor.ExtractPage(html)
	if err != nil {
		r.logger.Warn("extraction failed", "url", u, "phase", "scraping", "code", simpledocs.ErrorCode(err), "err", err)
		return nil
	}

	units := r.c.Chunker.Chunk(u, page)
	parent, _ := r.matcher.ParentGroup(u)
	for _, unit := range units {
		unit.ParentURL = parent
	}
	return units
}

// embed embeds the accumulated units batch by batch and stores the results.
// Batches run in order; the writes of one batch run concurrently.
func (r *run) embed(ctx context.Context) {
	r.setStatus(ctx, simpledocs.StatusEmbedding)

	for start := 0; start < len(r.units); start += r.embedBatch {
		if ctx.Err() != nil {
			return
		}
		batch := r.units[start:min(start+r.embedBatch, len(r.units))]

		vectors, err := r.embedUnits(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("embedding batch failed",
				"phase", "embedding",
				"batch_start", start,
				"batch_size", len(batch),
				"code", simpledocs.ErrorCode(err),
				"err", err,
			)
			for _, unit := range batch {
				r.resolve(ctx, unit, simpledocs.UpsertResult{}, false)
			}
			continue
		}

		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, unit := range batch {
			vec := vectors[i]
			if vec == nil {
				r.logger.Warn("no embedding for unit", "url", unit.URL, "phase", "embedding")
				r.resolve(ctx, unit, simpledocs.UpsertResult{}, false)
				continue
			}
			if len(vec) != r.dimension {
				r.logger.Warn("embedding dimension mismatch", "url", unit.URL, "phase", "embedding", "got", len(vec), "want", r.dimension)
				r.resolve(ctx, unit, simpledocs.UpsertResult{}, false)
				continue
			}
			g.Go(func() error {
				res, err := r.store(ctx, unit, vec)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Error("storage write failed", "url", unit.URL, "phase", "embedding", "code", simpledocs.ErrorCode(err), "err", err)
					}
					r.resolve(ctx, unit, simpledocs.UpsertResult{}, false)
					return nil
				}
				r.resolve(ctx, unit, res, true)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// embedUnits calls the embedder with retries. A response whose length
// differs from the request fails the whole batch without retrying.
func (r *run) embedUnits(ctx context.Context, batch []*simpledocs.DocumentUnit) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, unit := range batch {
		texts[i] = unit.PreparedText
	}

	var vectors [][]float32
	err := r.c.EmbedBackoff.Do(ctx, "embed", func(ctx context.Context) error {
		var err error
		vectors, err = r.c.Embedder.EmbedBatch(ctx, texts)
		return err
	}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, simpledocs.Errorf(simpledocs.EEMBED, "embedding service returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// store upserts one unit with retries.
func (r *run) store(ctx context.Context, unit *simpledocs.DocumentUnit, vec []float32) (simpledocs.UpsertResult, error) {
	var res simpledocs.UpsertResult
	err := r.c.StoreBackoff.Do(ctx, "store", func(ctx context.Context) error {
		var err error
		res, err = r.c.Store.Upsert(ctx, unit, vec)
		return err
	}, r.logger)
	return res, err
}

// resolve records the outcome of one unit. When the last unit of a page
// resolves, the page is classified as new, updated or unchanged; a page
// with any failed unit is not fully processed. A complete page whose stored
// units no longer match its chunk layout has the stale ones pruned and
// counts as updated.
func (r *run) resolve(ctx context.Context, unit *simpledocs.DocumentUnit, res simpledocs.UpsertResult, ok bool) {
	r.mu.Lock()
	tally := r.pages[unit.OriginalURL]
	switch {
	case !ok:
		tally.failed++
	case res.IsNew:
		tally.isNew++
	case res.IsUpdated:
		tally.updated++
	default:
		tally.unchanged++
	}
	complete := tally.resolved() == tally.total && tally.failed == 0
	r.mu.Unlock()

	pruned := 0
	if complete {
		pruned = r.prune(ctx, unit.OriginalURL, tally.total)
	}

	r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
		upd := simpledocs.ProgressUpdate{CurrentURL: ptr(unit.OriginalURL)}
		s.CurrentURL = unit.OriginalURL
		if ok {
			s.ChunksProcessed++
			upd.ChunksProcessed = ptr(s.ChunksProcessed)
		}
		if !complete {
			return upd
		}

		s.URLsFullyProcessed++
		upd.URLsFullyProcessed = ptr(s.URLsFullyProcessed)
		switch {
		case pruned == 0 && tally.unchanged == tally.total:
			s.URLsUnchanged++
			upd.URLsUnchanged = ptr(s.URLsUnchanged)
		case pruned == 0 && tally.isNew == tally.total:
			s.URLsNew++
			upd.URLsNew = ptr(s.URLsNew)
		default:
			s.URLsUpdated++
			upd.URLsUpdated = ptr(s.URLsUpdated)
		}
		return upd
	})
}

// prune removes stored units of page outside its current chunk layout.
// Stores that cannot prune, and prune failures, leave the records alone.
func (r *run) prune(ctx context.Context, page string, total int) int {
	p, ok := r.c.Store.(simpledocs.UnitPruner)
	if !ok || ctx.Err() != nil {
		return 0
	}
	n, err := p.PruneUnits(ctx, page, simpledocs.UnitURLs(page, total))
	if err != nil {
		r.logger.Warn("prune stale units failed", "url", page, "phase", "embedding", "code", simpledocs.ErrorCode(err), "err", err)
		return 0
	}
	if n > 0 {
		r.logger.Info("pruned stale units", "url", page, "count", n)
	}
	return n
}

// start publishes the beginning of the run. The zero crawl counters mark
// it as a new run for the progress service.
func (r *run) start(ctx context.Context) {
	r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
		s.Status = simpledocs.StatusCrawling
		s.CurrentURL = r.req.URL
		return simpledocs.ProgressUpdate{
			Status:             ptr(simpledocs.StatusCrawling),
			CurrentURL:         ptr(r.req.URL),
			URLsCrawled:        ptr(0),
			URLsFullyProcessed: ptr(0),
			ScrapeBatchSize:    ptr(r.scrapeBatch),
			EmbedBatchSize:     ptr(r.embedBatch),
		}
	})
}

func (r *run) setStatus(ctx context.Context, status simpledocs.Status) {
	r.logger.Info("crawl phase", "url", r.req.URL, "status", status)
	r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
		s.Status = status
		s.CurrentURL = ""
		return simpledocs.ProgressUpdate{Status: ptr(status), CurrentURL: ptr("")}
	})
}

// finish publishes the complete terminal snapshot.
func (r *run) finish(ctx context.Context, status simpledocs.Status) simpledocs.ProgressSnapshot {
	var final simpledocs.ProgressSnapshot
	r.update(ctx, func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate {
		s.Status = status
		s.CurrentURL = ""
		final = s.Clone()
		return simpledocs.SnapshotUpdate(final)
	})
	final.LastUpdated = r.snapshot().LastUpdated
	return final
}

// update applies fn to the run snapshot and forwards the resulting partial
// update to the progress service and the observer of ctx, if any. Updates
// are published in the order the snapshot changed. Publishing ignores
// cancellation so the terminal snapshot is always persisted.
func (r *run) update(ctx context.Context, fn func(s *simpledocs.ProgressSnapshot) simpledocs.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	upd := fn(&r.snap)
	r.snap.LastUpdated = time.Now().UTC()
	if r.c.Progress != nil {
		r.c.Progress.Update(context.WithoutCancel(ctx), upd)
	}
	Observe(ctx, r.snap.Clone())
}

func (r *run) snapshot() simpledocs.ProgressSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

// hostOf returns the host of u for per-host limiting.
// wait blocks until the run limiter and the limiter of host admit a fetch.
func (c *Crawler) wait(ctx context.Context, host string) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.HostLimiter != nil {
		if err := c.HostLimiter.Wait(ctx, host); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scope) hostOf(u string) string {
	p, err := url.Parse(u)
	if err != nil || p.Hostname() == "" {
		return s.host
	}
	return strings.ToLower(p.Hostname())
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func ptr[T any](v T) *T {
	return &v
}
