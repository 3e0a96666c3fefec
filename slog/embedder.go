package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/simpledocs"
)

// Ensure LoggingEmbedder implements simpledocs.Embedder.
var _ simpledocs.Embedder = (*LoggingEmbedder)(nil)

// LoggingEmbedder wraps an Embedder with logging.
type LoggingEmbedder struct {
	next   simpledocs.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next simpledocs.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// EmbedBatch delegates to the wrapped embedder and logs the batch size, the
// number of rejected inputs and the duration.
func (e *LoggingEmbedder) EmbedBatch(ctx context.Context, texts []string) (vecs [][]float32, err error) {
	defer func(begin time.Time) {
		rejected := 0
		for _, v := range vecs {
			if v == nil {
				rejected++
			}
		}
		e.logger.Info("embed batch",
			"inputs", len(texts),
			"rejected", rejected,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.EmbedBatch(ctx, texts)
}
