package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/simpledocs"
)

// Ensure LoggingDocumentStore implements simpledocs.DocumentStore.
var (
	_ simpledocs.DocumentStore = (*LoggingDocumentStore)(nil)
	_ simpledocs.UnitPruner    = (*LoggingDocumentStore)(nil)
)

// LoggingDocumentStore wraps a DocumentStore with logging. Upserts and
// lookups log at debug level; searches and stats at info.
type LoggingDocumentStore struct {
	next   simpledocs.DocumentStore
	logger *slog.Logger
}

// NewLoggingDocumentStore creates a new LoggingDocumentStore.
func NewLoggingDocumentStore(next simpledocs.DocumentStore, logger *slog.Logger) *LoggingDocumentStore {
	return &LoggingDocumentStore{next: next, logger: logger}
}

// Upsert delegates to the wrapped store and logs the outcome.
func (s *LoggingDocumentStore) Upsert(ctx context.Context, unit *simpledocs.DocumentUnit, embedding []float32) (res simpledocs.UpsertResult, err error) {
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "upsert document",
			"url", unit.URL,
			"new", res.IsNew,
			"updated", res.IsUpdated,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Upsert(ctx, unit, embedding)
}

// PruneUnits delegates to the wrapped store when it can prune and logs
// the deleted count. Otherwise nothing is deleted.
func (s *LoggingDocumentStore) PruneUnits(ctx context.Context, page string, keep []string) (n int, err error) {
	p, ok := s.next.(simpledocs.UnitPruner)
	if !ok {
		return 0, nil
	}
	defer func(begin time.Time) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "prune units",
			"url", page,
			"keep", len(keep),
			"deleted", n,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return p.PruneUnits(ctx, page, keep)
}

// FindDocumentByURL delegates to the wrapped store.
func (s *LoggingDocumentStore) FindDocumentByURL(ctx context.Context, url string) (doc *simpledocs.StoredDocument, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("find document",
			"url", url,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindDocumentByURL(ctx, url)
}

// SimilaritySearch delegates to the wrapped store and logs the result count.
func (s *LoggingDocumentStore) SimilaritySearch(ctx context.Context, embedding []float32, opts simpledocs.SearchOptions) (results []*simpledocs.SearchResult, err error) {
	defer func(begin time.Time) {
		s.logger.Info("similarity search",
			"domain", opts.Domain,
			"limit", opts.Limit,
			"min_score", opts.MinScore,
			"count", len(results),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SimilaritySearch(ctx, embedding, opts)
}

// Stats delegates to the wrapped store.
func (s *LoggingDocumentStore) Stats(ctx context.Context) (stats []*simpledocs.SourceStats, err error) {
	defer func(begin time.Time) {
		s.logger.Info("source stats",
			"sources", len(stats),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Stats(ctx)
}
