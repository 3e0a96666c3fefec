package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server timeouts.
const (
	DefaultRequestTimeout = 60 * time.Second
	ShutdownTimeout       = 5 * time.Second
)

// Server serves the simpledocs HTTP API.
//
// Service fields are read on every request, so they may be assigned after
// NewServer returns but must not change once the server is open.
type Server struct {
	ln     net.Listener
	server *http.Server
	router chi.Router
	logger *slog.Logger

	// Addr is the listen address used by Open.
	Addr string

	JobService      simpledocs.JobService
	SearchService   simpledocs.SearchService
	ProgressService simpledocs.ProgressService

	// ProgressStore, when set, backs GET /api/v1/progress with the last
	// persisted snapshot.
	ProgressStore simpledocs.ProgressStore

	// ProgressHandler serves the push transport at /ws.
	ProgressHandler http.Handler

	// MetricsHandler serves /metrics.
	MetricsHandler http.Handler
}

// NewServer returns a server with routes and middleware installed.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:       []string{middleware.RequestIDHeader},
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleProgressSocket)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultRequestTimeout))

		r.Get("/health", s.handleHealth)
		r.Get("/progress", s.handleProgress)

		r.Post("/crawl", s.handleCrawlStart)
		r.Get("/crawl/{id}", s.handleCrawlStatus)
		r.Delete("/crawl/{id}", s.handleCrawlCancel)

		r.Get("/search", s.handleSearch)
		r.Get("/search/stats", s.handleSearchStats)
	})

	s.router = r
	return s
}

// Handler returns the root handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Open starts listening on Addr and serves in the background.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr, err)
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()
	s.logger.Info("http server listening", "addr", s.ln.Addr().String())
	return nil
}

// URL returns the base URL of an open server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Documentation Crawler API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleProgressSocket(w http.ResponseWriter, r *http.Request) {
	if s.ProgressHandler == nil {
		s.Error(w, r, simpledocs.Errorf(simpledocs.ENOTFOUND, "progress transport not enabled"))
		return
	}
	s.ProgressHandler.ServeHTTP(w, r)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.MetricsHandler == nil {
		s.Error(w, r, simpledocs.Errorf(simpledocs.ENOTFOUND, "metrics not enabled"))
		return
	}
	s.MetricsHandler.ServeHTTP(w, r)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.ProgressStore != nil {
		snap, err := s.ProgressStore.Load(r.Context())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, snap)
			return
		case simpledocs.ErrorCode(err) != simpledocs.ENOTFOUND:
			s.Error(w, r, err)
			return
		}
	}
	if s.ProgressService != nil {
		writeJSON(w, http.StatusOK, s.ProgressService.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, simpledocs.NewProgressSnapshot())
}

// crawlRequest is the POST /api/v1/crawl body. Absent fields take defaults.
type crawlRequest struct {
	URL         string   `json:"url"`
	Recursive   *bool    `json:"recursive"`
	MaxDepth    *int     `json:"max_depth"`
	DocPatterns []string `json:"doc_patterns"`
}

func (s *Server) handleCrawlStart(w http.ResponseWriter, r *http.Request) {
	var body crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.Error(w, r, simpledocs.Errorf(simpledocs.EINVALID, "invalid JSON body"))
		return
	}
	req := simpledocs.CrawlRequest{
		URL:         strings.TrimSpace(body.URL),
		MaxDepth:    simpledocs.DefaultMaxDepth,
		DocPatterns: body.DocPatterns,
	}
	if body.Recursive != nil {
		req.Recursive = *body.Recursive
	}
	if body.MaxDepth != nil {
		req.MaxDepth = *body.MaxDepth
	}

	job, err := s.JobService.StartJob(r.Context(), req)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/crawl/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.JobService.FindJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCrawlCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.JobService.CancelJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchResult struct {
	Content      string  `json:"content"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	SourceDomain string  `json:"source_domain"`
	DocType      string  `json:"doc_type"`
	DocSection   string  `json:"doc_section"`
}

type searchResponse struct {
	Results      []searchResult `json:"results"`
	Total        int            `json:"total"`
	Query        string         `json:"query"`
	SourceDomain string         `json:"source_domain,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := parseSearchOptions(q)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	query := q.Get("query")

	results, err := s.SearchService.Search(r.Context(), query, opts)
	if err != nil {
		s.Error(w, r, err)
		return
	}

	resp := searchResponse{
		Results:      make([]searchResult, 0, len(results)),
		Query:        query,
		SourceDomain: opts.Domain,
	}
	for _, res := range results {
		d := res.Document
		resp.Results = append(resp.Results, searchResult{
			Content:      d.Content,
			URL:          d.URL,
			Title:        d.Title,
			Score:        res.Score,
			SourceDomain: d.Metadata.Domain,
			DocType:      d.Metadata.DocType,
			DocSection:   d.Metadata.DocSection,
		})
	}
	resp.Total = len(resp.Results)
	writeJSON(w, http.StatusOK, resp)
}

// parseSearchOptions reads limit (1..20) and min_score (0..1) from the query
// string. Out-of-range values are rejected rather than clamped.
func parseSearchOptions(q map[string][]string) (simpledocs.SearchOptions, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	opts := simpledocs.SearchOptions{
		Domain:   get("source_domain"),
		Limit:    simpledocs.DefaultSearchLimit,
		MinScore: simpledocs.DefaultMinScore,
	}
	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > simpledocs.MaxSearchLimit {
			return opts, simpledocs.Errorf(simpledocs.EINVALID, "limit must be an integer between 1 and %d", simpledocs.MaxSearchLimit)
		}
		opts.Limit = n
	}
	if v := get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return opts, simpledocs.Errorf(simpledocs.EINVALID, "min_score must be a number between 0 and 1")
		}
		opts.MinScore = f
	}
	return opts, nil
}

type sourceStats struct {
	SourceDomain string    `json:"source_domain"`
	Count        int       `json:"count"`
	DocTypes     []string  `json:"doc_types"`
	LastUpdated  time.Time `json:"last_updated"`
}

type statsResponse struct {
	Sources      []sourceStats `json:"sources"`
	TotalSources int           `json:"total_sources"`
}

func (s *Server) handleSearchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.SearchService.Sources(r.Context())
	if err != nil {
		s.Error(w, r, err)
		return
	}
	resp := statsResponse{Sources: make([]sourceStats, 0, len(stats))}
	for _, st := range stats {
		docTypes := st.DocTypes
		if docTypes == nil {
			docTypes = []string{}
		}
		resp.Sources = append(resp.Sources, sourceStats{
			SourceDomain: st.Domain,
			Count:        st.Count,
			DocTypes:     docTypes,
			LastUpdated:  st.LastUpdated,
		})
	}
	resp.TotalSources = len(resp.Sources)
	writeJSON(w, http.StatusOK, resp)
}

// Error writes err as a JSON error response. Internal errors are logged and
// their message is hidden from the client.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := simpledocs.ErrorCode(err), simpledocs.ErrorMessage(err)
	status := ErrorStatusCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

var codes = map[string]int{
	simpledocs.EINVALID:     http.StatusBadRequest,
	simpledocs.ENOTFOUND:    http.StatusNotFound,
	simpledocs.EUNAVAILABLE: http.StatusServiceUnavailable,
	simpledocs.EFETCH:       http.StatusBadGateway,
	simpledocs.EEMBED:       http.StatusBadGateway,
	simpledocs.EEXTRACT:     http.StatusUnprocessableEntity,
	simpledocs.ESTORAGE:     http.StatusInternalServerError,
	simpledocs.EINTERNAL:    http.StatusInternalServerError,
}

// ErrorStatusCode returns the HTTP status for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// echoRequestID returns the request ID assigned by middleware.RequestID so
// clients can quote it in bug reports.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
