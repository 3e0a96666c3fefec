// Package mcp exposes crawling and search as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fwojciec/simpledocs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "simpledocs"

// Server registers the simpledocs tools on an MCP server.
type Server struct {
	crawler simpledocs.CrawlService
	search  simpledocs.SearchService
	logger  *slog.Logger
	server  *mcp.Server
}

// NewServer returns a server exposing fetch_documentation,
// search_documentation and list_sources.
func NewServer(crawler simpledocs.CrawlService, search simpledocs.SearchService, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		crawler: crawler,
		search:  search,
		logger:  logger,
		server:  mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
	}
	s.registerFetchTool()
	s.registerSearchTool()
	s.registerSourcesTool()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve serves MCP over the given transport.
func (s *Server) Serve(ctx context.Context, t mcp.Transport) error {
	return s.server.Run(ctx, t)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// addTool registers a handler whose errors are reported to the client as
// tool errors rather than protocol errors.
func (s *Server) addTool(tool *mcp.Tool, h func(ctx context.Context, args json.RawMessage) (string, error)) {
	s.server.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := h(ctx, req.Params.Arguments)
		if err != nil {
			s.logger.Warn("tool failed", "tool", tool.Name, "err", err)
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("%s: %s", tool.Name, simpledocs.ErrorMessage(err)))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	})
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return simpledocs.Errorf(simpledocs.EINVALID, "invalid arguments: %v", err)
	}
	return nil
}

type fetchArgs struct {
	URL       string `json:"url"`
	Recursive *bool  `json:"recursive"`
	MaxDepth  *int   `json:"max_depth"`
}

func (s *Server) registerFetchTool() {
	tool := &mcp.Tool{
		Name:        "fetch_documentation",
		Description: "Fetch and index documentation from a URL.",
		InputSchema: inputSchema(map[string]any{
			"url":       map[string]any{"type": "string", "description": "Documentation URL to crawl"},
			"recursive": map[string]any{"type": "boolean", "description": "Follow documentation links", "default": true},
			"max_depth": map[string]any{"type": "integer", "description": "Maximum link depth", "default": simpledocs.DefaultMaxDepth},
		}, []string{"url"}),
	}

	s.addTool(tool, func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args fetchArgs
		if err := decodeArgs(raw, &args); err != nil {
			return "", err
		}
		req := simpledocs.CrawlRequest{
			URL:       strings.TrimSpace(args.URL),
			Recursive: true,
			MaxDepth:  simpledocs.DefaultMaxDepth,
		}
		if args.Recursive != nil {
			req.Recursive = *args.Recursive
		}
		if args.MaxDepth != nil {
			req.MaxDepth = *args.MaxDepth
		}
		if err := req.Validate(); err != nil {
			return "", err
		}

		snap, err := s.crawler.Crawl(ctx, req)
		if err != nil {
			return "", err
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal progress: %w", err)
		}
		return string(data), nil
	})
}

type searchArgs struct {
	Query    string   `json:"query"`
	Limit    *int     `json:"limit"`
	MinScore *float64 `json:"min_score"`
}

func (s *Server) registerSearchTool() {
	tool := &mcp.Tool{
		Name:        "search_documentation",
		Description: "Search through indexed documentation.",
		InputSchema: inputSchema(map[string]any{
			"query":     map[string]any{"type": "string", "description": "Natural language query"},
			"limit":     map[string]any{"type": "integer", "description": "Maximum number of results", "default": simpledocs.DefaultSearchLimit},
			"min_score": map[string]any{"type": "number", "description": "Minimum similarity score", "default": simpledocs.DefaultMinScore},
		}, []string{"query"}),
	}

	s.addTool(tool, func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args searchArgs
		if err := decodeArgs(raw, &args); err != nil {
			return "", err
		}
		opts := simpledocs.SearchOptions{
			Limit:    simpledocs.DefaultSearchLimit,
			MinScore: simpledocs.DefaultMinScore,
		}
		if args.Limit != nil {
			opts.Limit = *args.Limit
		}
		if args.MinScore != nil {
			opts.MinScore = *args.MinScore
		}

		results, err := s.search.Search(ctx, args.Query, opts)
		if err != nil {
			return "", err
		}
		return FormatResults(results), nil
	})
}

// FormatResults renders search results as a numbered plain-text list.
func FormatResults(results []*simpledocs.SearchResult) string {
	if len(results) == 0 {
		return "No matching documentation found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results:\n\n", len(results))
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. [Score: %.2f]\n%s\nSource: %s\n", i+1, r.Score, r.Document.Content, r.Document.URL)
	}
	return b.String()
}

type sourcesResponse struct {
	Sources      []*simpledocs.SourceStats `json:"sources"`
	TotalSources int                       `json:"total_sources"`
}

func (s *Server) registerSourcesTool() {
	tool := &mcp.Tool{
		Name:        "list_sources",
		Description: "List all documentation sources that have been indexed.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	s.addTool(tool, func(ctx context.Context, _ json.RawMessage) (string, error) {
		stats, err := s.search.Sources(ctx)
		if err != nil {
			return "", err
		}
		if stats == nil {
			stats = []*simpledocs.SourceStats{}
		}
		data, err := json.MarshalIndent(sourcesResponse{Sources: stats, TotalSources: len(stats)}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal sources: %w", err)
		}
		return string(data), nil
	})
}
