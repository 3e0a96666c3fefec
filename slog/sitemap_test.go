package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/mock"
	sdslog "github.com/fwojciec/simpledocs/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingSitemapService_DiscoverURLs(t *testing.T) {
	t.Parallel()

	t.Run("logs discovery with count and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, _ string, _ simpledocs.URLMatcher) ([]string, error) {
				return []string{"https://example.com/a", "https://example.com/b"}, nil
			},
		}

		svc := sdslog.NewLoggingSitemapService(inner, logger)
		urls, err := svc.DiscoverURLs(context.Background(), "https://example.com", nil)

		require.NoError(t, err)
		assert.Len(t, urls, 2)
		output := buf.String()
		assert.Contains(t, output, "sitemap discovery")
		assert.Contains(t, output, "level=INFO")
		assert.Contains(t, output, "base_url=https://example.com")
		assert.Contains(t, output, "filtered=false")
		assert.Contains(t, output, "count=2")
		assert.Contains(t, output, "duration=")
	})

	t.Run("logs error on failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, _ string, _ simpledocs.URLMatcher) ([]string, error) {
				return nil, errors.New("connection failed")
			},
		}

		svc := sdslog.NewLoggingSitemapService(inner, logger)
		_, err := svc.DiscoverURLs(context.Background(), "https://example.com", nil)

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "sitemap discovery")
		assert.Contains(t, output, "level=WARN")
		assert.Contains(t, output, "err=\"connection failed\"")
	})

	t.Run("warns when the sitemap yields nothing", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		inner := &mock.SitemapService{
			DiscoverURLsFn: func(context.Context, string, simpledocs.URLMatcher) ([]string, error) {
				return nil, nil
			},
		}
		matcher := simpledocs.NewPatternMatcher("/docs/")

		svc := sdslog.NewLoggingSitemapService(inner, logger)
		urls, err := svc.DiscoverURLs(context.Background(), "https://example.com", matcher)

		require.NoError(t, err)
		assert.Empty(t, urls)
		output := buf.String()
		assert.Contains(t, output, "level=WARN")
		assert.Contains(t, output, "filtered=true")
		assert.Contains(t, output, "count=0")
	})
}
