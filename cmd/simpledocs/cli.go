package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/simpledocs"
)

// Dependencies holds all services and configuration for command execution.
// Main fills in only what the selected command needs.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Config Config
	Logger *slog.Logger

	Crawler       simpledocs.CrawlService
	Progress      simpledocs.ProgressService
	ProgressStore simpledocs.ProgressStore
	Search        simpledocs.SearchService
	Sitemaps      simpledocs.SitemapService

	// Serve and MCP block until ctx is done or the client disconnects.
	Serve func(ctx context.Context) error
	MCP   func(ctx context.Context) error
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config string `short:"c" type:"path" help:"Path to a YAML config file"`

	Crawl    CrawlCmd    `cmd:"" help:"Crawl and index documentation from a URL"`
	Search   SearchCmd   `cmd:"" help:"Search indexed documentation"`
	Sources  SourcesCmd  `cmd:"" help:"List indexed documentation sources"`
	Progress ProgressCmd `cmd:"" help:"Show the last persisted crawl progress"`
	Preview  PreviewCmd  `cmd:"" help:"List documentation URLs from a site's sitemap"`
	Serve    ServeCmd    `cmd:"" help:"Run the HTTP API with progress websocket and metrics"`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Run the MCP server on stdin/stdout"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL       string   `arg:"" help:"Documentation URL"`
	Recursive bool     `short:"r" help:"Follow documentation links"`
	MaxDepth  int      `short:"d" default:"2" help:"Maximum link depth"`
	Patterns  []string `short:"p" name:"pattern" help:"Documentation URL pattern (repeatable)"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query    string  `arg:"" help:"Natural language query"`
	Domain   string  `help:"Only search this source domain"`
	Limit    int     `short:"n" default:"5" help:"Maximum number of results (1-20)"`
	MinScore float64 `default:"0.5" help:"Minimum similarity score (0-1)"`
}

// SourcesCmd is the "sources" subcommand.
type SourcesCmd struct{}

// ProgressCmd is the "progress" subcommand.
type ProgressCmd struct{}

// PreviewCmd is the "preview" subcommand.
type PreviewCmd struct {
	URL      string   `arg:"" help:"Documentation site URL"`
	Patterns []string `short:"p" name:"pattern" help:"Documentation URL pattern (repeatable)"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr string `help:"Listen address; overrides server.addr"`
}

// MCPCmd is the "mcp" subcommand.
type MCPCmd struct{}
