// Package slog provides log/slog decorators for the simpledocs services.
// Each decorator logs one line per call with its duration and error.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/simpledocs"
)

var _ simpledocs.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService logs each sitemap discovery. Discovery only feeds
// the preview command; an empty result is logged at warn level since it
// usually means the site has no sitemap or the patterns match nothing.
type LoggingSitemapService struct {
	next   simpledocs.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next simpledocs.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped service.
func (s *LoggingSitemapService) DiscoverURLs(ctx context.Context, baseURL string, matcher simpledocs.URLMatcher) (urls []string, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		if err != nil || len(urls) == 0 {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "sitemap discovery",
			"base_url", baseURL,
			"filtered", matcher != nil,
			"count", len(urls),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL, matcher)
}
