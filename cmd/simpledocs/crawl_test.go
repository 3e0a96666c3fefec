package main_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fwojciec/simpledocs"
	main "github.com/fwojciec/simpledocs/cmd/simpledocs"
	"github.com/fwojciec/simpledocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints each distinct progress line and the final summary", func(t *testing.T) {
		t.Parallel()

		var listener simpledocs.ProgressFunc
		unsubscribed := false
		progress := &mock.ProgressService{
			SubscribeFn: func(fn simpledocs.ProgressFunc) func() {
				listener = fn
				return func() { unsubscribed = true }
			},
		}

		var got simpledocs.CrawlRequest
		crawler := &mock.CrawlService{
			CrawlFn: func(_ context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				got = req
				crawling := simpledocs.NewProgressSnapshot()
				crawling.Status = simpledocs.StatusCrawling
				crawling.URLsDiscovered = 1
				crawling.CurrentURL = req.URL
				listener(crawling)
				listener(crawling)

				final := simpledocs.NewProgressSnapshot()
				final.Status = simpledocs.StatusComplete
				final.URLsCrawled = 1
				final.URLsFullyProcessed = 1
				final.ChunksProcessed = 2
				final.URLsNew = 1
				listener(final)
				return final, nil
			},
		}

		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:      context.Background(),
			Stdout:   stdout,
			Stderr:   stderr,
			Crawler:  crawler,
			Progress: progress,
		}
		cmd := &main.CrawlCmd{URL: "https://example.com/docs", Recursive: true, MaxDepth: 3, Patterns: []string{"/docs/"}}

		err := cmd.Run(deps)

		require.NoError(t, err)
		assert.Equal(t, simpledocs.CrawlRequest{URL: "https://example.com/docs", Recursive: true, MaxDepth: 3, DocPatterns: []string{"/docs/"}}, got)
		assert.Equal(t, 1, strings.Count(stderr.String(), "crawling"))
		assert.Contains(t, stdout.String(), "complete  1/1 pages processed  2 chunks  (1 new, 0 updated, 0 unchanged)")
		assert.True(t, unsubscribed)
	})

	t.Run("rejects an invalid URL without crawling", func(t *testing.T) {
		t.Parallel()

		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  &bytes.Buffer{},
			Stderr:  stderr,
			Crawler: &mock.CrawlService{},
		}

		err := (&main.CrawlCmd{URL: "ftp://example.com", MaxDepth: 2}).Run(deps)

		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
		assert.Contains(t, stderr.String(), "error:")
	})

	t.Run("reports a cancelled run", func(t *testing.T) {
		t.Parallel()

		crawler := &mock.CrawlService{
			CrawlFn: func(context.Context, simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				snap := simpledocs.NewProgressSnapshot()
				snap.Status = simpledocs.StatusCancelled
				return snap, context.Canceled
			},
		}
		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:     context.Background(),
			Stdout:  stdout,
			Stderr:  &bytes.Buffer{},
			Crawler: crawler,
		}

		err := (&main.CrawlCmd{URL: "https://example.com/docs", MaxDepth: 2}).Run(deps)

		assert.True(t, errors.Is(err, context.Canceled))
		assert.Contains(t, stdout.String(), "cancelled")
	})
}

func TestProgressCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints the persisted snapshot", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: &bytes.Buffer{},
			ProgressStore: &mock.ProgressStore{
				LoadFn: func(context.Context) (*simpledocs.ProgressSnapshot, error) {
					snap := simpledocs.NewProgressSnapshot()
					snap.Status = simpledocs.StatusEmbedding
					snap.ChunksTotal = 12
					return &snap, nil
				},
			},
		}

		err := (&main.ProgressCmd{}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), `"status": "embedding"`)
		assert.Contains(t, stdout.String(), `"chunks_total": 12`)
	})

	t.Run("prints an idle snapshot before the first crawl", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: &bytes.Buffer{},
			ProgressStore: &mock.ProgressStore{
				LoadFn: func(context.Context) (*simpledocs.ProgressSnapshot, error) {
					return nil, simpledocs.Errorf(simpledocs.ENOTFOUND, "no progress")
				},
			},
		}

		err := (&main.ProgressCmd{}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), `"status": "idle"`)
	})
}

func TestSearchCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("rejects a limit above the maximum", func(t *testing.T) {
		t.Parallel()

		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: &bytes.Buffer{},
			Stderr: &bytes.Buffer{},
			Search: &mock.SearchService{},
		}

		err := (&main.SearchCmd{Query: "install", Limit: 21, MinScore: 0.5}).Run(deps)

		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
	})

	t.Run("says so when nothing matches", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: &bytes.Buffer{},
			Search: &mock.SearchService{
				SearchFn: func(context.Context, string, simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error) {
					return []*simpledocs.SearchResult{}, nil
				},
			},
		}

		err := (&main.SearchCmd{Query: "install", Limit: 5, MinScore: 0.5}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, "No matching documentation found.\n", stdout.String())
	})
}
