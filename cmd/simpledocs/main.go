package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
	sdhttp "github.com/fwojciec/simpledocs/http"
	sdmcp "github.com/fwojciec/simpledocs/mcp"
	sdprom "github.com/fwojciec/simpledocs/prometheus"
	"github.com/fwojciec/simpledocs/search"
	sdslog "github.com/fwojciec/simpledocs/slog"
	"github.com/fwojciec/simpledocs/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	_ = m.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Config, if set, is used instead of loading one from --config and
	// the environment.
	Config *Config

	// Logger, if set, replaces the zap-backed logger.
	Logger *slog.Logger

	// Services for end-to-end testing. Nil fields are built from Config.
	Store         simpledocs.DocumentStore
	Embedder      simpledocs.Embedder
	Fetcher       simpledocs.Fetcher
	Sitemaps      simpledocs.SitemapService
	ProgressStore simpledocs.ProgressStore

	closers []func() error
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases everything opened by Run, newest first.
func (m *Main) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

func (m *Main) onClose(fn func() error) {
	m.closers = append(m.closers, fn)
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("simpledocs"),
		kong.Description("Crawl, index and search documentation sites."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'simpledocs --help' to see available commands")
	}

	switch args[0] {
	case "help", "--help", "-h":
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := m.loadConfig(cli.Config)
	if err != nil {
		fmt.Fprintln(stderr, "Hint: check the --config file and SIMPLEDOCS_* environment variables")
		return err
	}
	deps.Config = cfg

	if m.Logger == nil {
		logger, sync, err := newLogger(cfg.Logging.Development)
		if err != nil {
			return err
		}
		m.Logger = logger
		m.onClose(func() error { sync(); return nil })
	}
	deps.Logger = m.Logger

	cmd := strings.Fields(kongCtx.Command())[0]
	if err := m.wire(ctx, cmd, cli, deps); err != nil {
		if simpledocs.ErrorCode(err) == simpledocs.EINVALID {
			fmt.Fprintf(stderr, "error: %s\n", simpledocs.ErrorMessage(err))
		}
		return err
	}

	return kongCtx.Run(deps)
}

func (m *Main) loadConfig(path string) (Config, error) {
	if m.Config != nil {
		return *m.Config, m.Config.Validate()
	}
	return LoadConfig(path)
}

// wire fills deps with the services the selected command uses.
func (m *Main) wire(ctx context.Context, cmd string, cli *CLI, deps *Dependencies) error {
	cfg := deps.Config

	switch cmd {
	case "preview":
		deps.Sitemaps = m.Sitemaps
		if deps.Sitemaps == nil {
			deps.Sitemaps = sdslog.NewLoggingSitemapService(sdhttp.NewSitemapService(nil), m.Logger)
		}
		return nil

	case "progress":
		_, deps.ProgressStore = m.openProgress(ctx, cfg)
		return nil

	case "sources":
		store, err := m.openStore(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Search = search.NewService(nil, store)
		return nil
	}

	// The remaining commands embed text.
	embedder, err := m.openEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := m.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	searcher := search.NewService(embedder, store)
	deps.Search = searcher

	if cmd == "search" {
		return nil
	}

	broadcaster, progressStore := m.openProgress(ctx, cfg)
	deps.Progress = broadcaster
	deps.ProgressStore = progressStore

	crawler, err := m.openCrawler(cfg, store, embedder, broadcaster, deps.Stderr)
	if err != nil {
		return err
	}
	deps.Crawler = crawler

	switch cmd {
	case "serve":
		addr := cfg.Server.Addr
		if cli.Serve.Addr != "" {
			addr = cli.Serve.Addr
		}
		deps.Serve = m.serveFunc(addr, deps)
	case "mcp":
		deps.MCP = sdmcp.NewServer(crawler, searcher, version, m.Logger).Run
	}
	return nil
}

// serveFunc returns a function that runs the HTTP API until ctx is done.
func (m *Main) serveFunc(addr string, deps *Dependencies) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		reg := prometheus.NewRegistry()
		metrics, err := sdprom.NewMetrics(reg)
		if err != nil {
			return err
		}
		unsubscribe := deps.Progress.Subscribe(metrics.Observe)
		defer unsubscribe()
		metrics.Observe(deps.Progress.Snapshot())

		jobs := crawl.NewJobs(deps.Crawler, m.Logger)
		defer jobs.Close()

		ws := websocket.NewHandler(deps.Progress, m.Logger)
		defer ws.Close()

		s := sdhttp.NewServer(m.Logger)
		s.Addr = addr
		s.JobService = jobs
		s.SearchService = deps.Search
		s.ProgressService = deps.Progress
		s.ProgressStore = deps.ProgressStore
		s.ProgressHandler = ws
		s.MetricsHandler = sdprom.Handler(reg)

		if err := s.Open(); err != nil {
			return err
		}
		fmt.Fprintf(deps.Stderr, "Listening on %s\n", s.URL())

		<-ctx.Done()
		m.Logger.Info("shutting down")
		return s.Close()
	}
}
