package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
	"github.com/fwojciec/simpledocs/fs"
	"github.com/fwojciec/simpledocs/gemini"
	"github.com/fwojciec/simpledocs/goquery"
	"github.com/fwojciec/simpledocs/htmltomarkdown"
	sdhttp "github.com/fwojciec/simpledocs/http"
	"github.com/fwojciec/simpledocs/openai"
	"github.com/fwojciec/simpledocs/postgres"
	"github.com/fwojciec/simpledocs/progress"
	"github.com/fwojciec/simpledocs/readability"
	"github.com/fwojciec/simpledocs/rod"
	sdslog "github.com/fwojciec/simpledocs/slog"
	"github.com/fwojciec/simpledocs/sqlite"
	"github.com/fwojciec/simpledocs/tiktoken"
	"github.com/fwojciec/simpledocs/trafilatura"
	"google.golang.org/genai"
)

// openStore returns the configured document store, wrapped with logging.
func (m *Main) openStore(ctx context.Context, cfg Config) (simpledocs.DocumentStore, error) {
	if m.Store != nil {
		return m.Store, nil
	}

	var store simpledocs.DocumentStore
	switch cfg.Store.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{DSN: cfg.Store.DSN})
		if err != nil {
			return nil, err
		}
		m.onClose(func() error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool, cfg.Embedding.Dimension); err != nil {
			return nil, err
		}
		store = postgres.NewDocumentStore(pool)
	default:
		if cfg.Store.DSN != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Store.DSN), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		db := sqlite.NewDB(cfg.Store.DSN)
		if err := db.Open(); err != nil {
			return nil, fmt.Errorf("failed to open database at %q: %w", cfg.Store.DSN, err)
		}
		m.onClose(db.Close)
		store = sqlite.NewDocumentStore(db)
	}
	return sdslog.NewLoggingDocumentStore(store, m.Logger), nil
}

// openEmbedder returns the configured embedding provider, wrapped with
// logging. A missing API key is a fatal initialization error.
func (m *Main) openEmbedder(ctx context.Context, cfg Config) (simpledocs.Embedder, error) {
	if m.Embedder != nil {
		return m.Embedder, nil
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	var embedder simpledocs.Embedder
	switch cfg.Embedding.Provider {
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Embedding.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
		}
		embedder = gemini.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension)
	default:
		e := openai.NewEmbedder(cfg.Embedding.APIKey, cfg.Embedding.Model)
		if cfg.Embedding.Endpoint != "" {
			e.Endpoint = cfg.Embedding.Endpoint
		}
		embedder = e
	}
	return sdslog.NewLoggingEmbedder(embedder, m.Logger), nil
}

// openProgress returns the process-wide broadcaster seeded with the last
// persisted snapshot.
func (m *Main) openProgress(ctx context.Context, cfg Config) (*progress.Broadcaster, simpledocs.ProgressStore) {
	store := m.ProgressStore
	if store == nil {
		store = fs.NewProgressStore(cfg.Progress.File)
	}
	b := progress.NewBroadcaster(
		progress.WithStore(store),
		progress.WithLogger(m.Logger),
	)
	if err := b.Load(ctx); err != nil {
		m.Logger.Warn("progress load failed", "err", err)
	}
	return b, store
}

// openFetchers returns the static fetcher and, for the browser and auto
// renderers, a headless browser fetcher. In auto mode a browser that fails
// to launch leaves only the static fetcher.
func (m *Main) openFetchers(cfg Config, stderr io.Writer) (static, browser simpledocs.Fetcher, err error) {
	if m.Fetcher != nil {
		return m.Fetcher, nil, nil
	}

	static = sdslog.NewLoggingFetcher(sdhttp.NewFetcher(
		sdhttp.WithTimeout(cfg.Crawler.Timeout),
		sdhttp.WithUserAgent(cfg.Crawler.UserAgent),
	), m.Logger)
	if cfg.Crawler.Renderer == RendererHTTP {
		return static, nil, nil
	}

	f, err := rod.NewFetcher(
		rod.WithFetchTimeout(cfg.Crawler.Timeout),
		rod.WithUserAgent(cfg.Crawler.UserAgent),
		rod.WithStealth(cfg.Crawler.Stealth),
		rod.WithManagerOptions(rod.WithLogger(m.Logger)),
	)
	if err != nil {
		if cfg.Crawler.Renderer == RendererAuto {
			m.Logger.Warn("browser unavailable, crawling over plain HTTP", "err", err)
			return static, nil, nil
		}
		fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed for crawler.renderer=browser")
		return nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}
	m.onClose(f.Close)
	return static, sdslog.NewLoggingFetcher(f, m.Logger), nil
}

// primaryExtractor returns the configured readability-style extractor.
func primaryExtractor(cfg Config) simpledocs.Extractor {
	if cfg.Crawler.Extractor == ExtractorReadability {
		return readability.NewExtractor()
	}
	return trafilatura.NewExtractor()
}

// openCrawler assembles the crawl pipeline.
func (m *Main) openCrawler(cfg Config, store simpledocs.DocumentStore, embedder simpledocs.Embedder, prog simpledocs.ProgressService, stderr io.Writer) (simpledocs.CrawlService, error) {
	static, browser, err := m.openFetchers(cfg, stderr)
	if err != nil {
		return nil, err
	}

	tok, err := tiktoken.NewTokenizer("")
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	chunker := simpledocs.NewChunker(tok)
	chunker.MaxTokens = cfg.Crawler.MaxTokens

	parser := goquery.NewParser()
	primary := primaryExtractor(cfg)

	c := crawl.NewCrawler()
	c.Fetcher = static
	c.Extractor = &crawl.ContentExtractor{
		Primary:   primary,
		Converter: htmltomarkdown.NewConverter(),
		Parser:    parser,
	}
	c.Parser = parser
	c.Chunker = chunker
	c.Embedder = embedder
	c.Store = store
	c.Progress = prog
	c.Limiter = crawl.NewPerMinuteLimiter(cfg.Crawler.RateLimit)
	if cfg.Crawler.PerHostRPS > 0 {
		c.HostLimiter = crawl.NewDomainLimiter(cfg.Crawler.PerHostRPS)
	}
	c.DocPatterns = cfg.Crawler.DocPatterns
	c.MaxConcurrentScrapes = cfg.Crawler.MaxConcurrentScrapes
	c.ScrapeBatchSize = cfg.Crawler.ScrapeBatchSize
	c.EmbedBatchSize = cfg.Crawler.EmbedBatchSize
	c.Dimension = cfg.Embedding.Dimension
	c.Logger = m.Logger

	switch {
	case browser == nil:
		return c, nil
	case cfg.Crawler.Renderer == RendererBrowser:
		c.Fetcher = browser
		return c, nil
	default:
		return &crawl.AutoRenderer{
			Crawler:   c,
			Static:    static,
			Browser:   browser,
			Extractor: primary,
			Logger:    m.Logger,
		}, nil
	}
}
