package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
	sdhttp "github.com/fwojciec/simpledocs/http"
	"github.com/spf13/viper"
)

// Renderer, extractor, provider and driver names accepted in Config.
const (
	RendererHTTP    = "http"
	RendererBrowser = "browser"
	RendererAuto    = "auto"

	ExtractorTrafilatura = "trafilatura"
	ExtractorReadability = "readability"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting of the binary.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Store     StoreConfig     `mapstructure:"store"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig controls fetching, extraction and batching.
type CrawlerConfig struct {
	RateLimit            int           `mapstructure:"rate_limit"`
	MaxConcurrentScrapes int           `mapstructure:"max_concurrent_scrapes"`
	ScrapeBatchSize      int           `mapstructure:"scrape_batch_size"`
	EmbedBatchSize       int           `mapstructure:"embed_batch_size"`
	MaxTokens            int           `mapstructure:"max_tokens"`
	PerHostRPS           float64       `mapstructure:"per_host_rps"`
	Timeout              time.Duration `mapstructure:"timeout"`
	UserAgent            string        `mapstructure:"user_agent"`
	Renderer             string        `mapstructure:"renderer"`
	Extractor            string        `mapstructure:"extractor"`
	DocPatterns          []string      `mapstructure:"doc_patterns"`
	Stealth              bool          `mapstructure:"stealth"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	Endpoint  string `mapstructure:"endpoint"`
	APIKey    string `mapstructure:"api_key"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ProgressConfig locates the persisted progress snapshot.
type ProgressConfig struct {
	File string `mapstructure:"file"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles the zap development console encoder.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// LoadConfig builds a Config from defaults, an optional YAML file and the
// environment. Keys map to SIMPLEDOCS_ variables with dots replaced by
// underscores, e.g. SIMPLEDOCS_STORE_DSN. CRAWLER_RATE_LIMIT,
// OPENAI_API_KEY and GEMINI_API_KEY are honored as well.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIMPLEDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	resolveAPIKey(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.rate_limit", crawl.DefaultRequestsPerMinute)
	v.SetDefault("crawler.max_concurrent_scrapes", crawl.DefaultMaxConcurrentScrapes)
	v.SetDefault("crawler.scrape_batch_size", simpledocs.DefaultScrapeBatchSize)
	v.SetDefault("crawler.embed_batch_size", simpledocs.DefaultEmbedBatchSize)
	v.SetDefault("crawler.max_tokens", simpledocs.DefaultMaxTokens)
	v.SetDefault("crawler.per_host_rps", 0.0)
	v.SetDefault("crawler.timeout", sdhttp.DefaultFetchTimeout)
	v.SetDefault("crawler.user_agent", sdhttp.DefaultUserAgent)
	v.SetDefault("crawler.stealth", false)
	v.SetDefault("crawler.renderer", RendererHTTP)
	v.SetDefault("crawler.extractor", ExtractorTrafilatura)
	v.SetDefault("crawler.doc_patterns", []string{})
	v.SetDefault("embedding.provider", ProviderOpenAI)
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimension", simpledocs.EmbeddingDimension)
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dsn", defaultDBPath())
	v.SetDefault("progress.file", defaultProgressPath())
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("logging.development", false)
}

// bindLegacyEnv binds the unprefixed variable names used by earlier
// deployments. Prefixed variables take precedence.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"crawler.rate_limit": {"SIMPLEDOCS_CRAWLER_RATE_LIMIT", "CRAWLER_RATE_LIMIT"},
		"embedding.api_key":  {"SIMPLEDOCS_EMBEDDING_API_KEY"},
		"openai_api_key":     {"OPENAI_API_KEY"},
		"gemini_api_key":     {"GEMINI_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// resolveAPIKey falls back to the provider's own key variable when no
// embedding.api_key is configured.
func resolveAPIKey(v *viper.Viper) {
	if v.GetString("embedding.api_key") != "" {
		return
	}
	switch v.GetString("embedding.provider") {
	case ProviderGemini:
		v.Set("embedding.api_key", v.GetString("gemini_api_key"))
	default:
		v.Set("embedding.api_key", v.GetString("openai_api_key"))
	}
}

// Validate enforces positive sizes and known component names.
func (c Config) Validate() error {
	switch {
	case c.Crawler.RateLimit <= 0:
		return fmt.Errorf("crawler.rate_limit must be > 0")
	case c.Crawler.MaxConcurrentScrapes <= 0:
		return fmt.Errorf("crawler.max_concurrent_scrapes must be > 0")
	case c.Crawler.ScrapeBatchSize <= 0:
		return fmt.Errorf("crawler.scrape_batch_size must be > 0")
	case c.Crawler.EmbedBatchSize <= 0:
		return fmt.Errorf("crawler.embed_batch_size must be > 0")
	case c.Crawler.MaxTokens <= 0:
		return fmt.Errorf("crawler.max_tokens must be > 0")
	case c.Crawler.PerHostRPS < 0:
		return fmt.Errorf("crawler.per_host_rps must be >= 0")
	case c.Crawler.Timeout <= 0:
		return fmt.Errorf("crawler.timeout must be > 0")
	case c.Embedding.Dimension <= 0:
		return fmt.Errorf("embedding.dimension must be > 0")
	}

	if !oneOf(c.Crawler.Renderer, RendererHTTP, RendererBrowser, RendererAuto) {
		return fmt.Errorf("crawler.renderer must be one of http, browser, auto; got %q", c.Crawler.Renderer)
	}
	if !oneOf(c.Crawler.Extractor, ExtractorTrafilatura, ExtractorReadability) {
		return fmt.Errorf("crawler.extractor must be trafilatura or readability; got %q", c.Crawler.Extractor)
	}
	if !oneOf(c.Embedding.Provider, ProviderOpenAI, ProviderGemini) {
		return fmt.Errorf("embedding.provider must be openai or gemini; got %q", c.Embedding.Provider)
	}
	if !oneOf(c.Store.Driver, DriverSQLite, DriverPostgres) {
		return fmt.Errorf("store.driver must be sqlite or postgres; got %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	return nil
}

// RequireCredentials reports a missing embedding API key. Commands that
// embed text call it before doing any work.
func (c Config) RequireCredentials() error {
	if c.Embedding.APIKey != "" {
		return nil
	}
	env := "OPENAI_API_KEY"
	if c.Embedding.Provider == ProviderGemini {
		env = "GEMINI_API_KEY"
	}
	return simpledocs.Errorf(simpledocs.EINVALID, "%s not set; embedding provider %q requires an API key", env, c.Embedding.Provider)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".simpledocs")
}

func defaultDBPath() string {
	return filepath.Join(dataDir(), "simpledocs.db")
}

func defaultProgressPath() string {
	return filepath.Join(dataDir(), "progress.json")
}
