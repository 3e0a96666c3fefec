package crawl_test

import (
	"context"
	"sync"
	"testing"

	"github.com/fwojciec/simpledocs"
	"github.com/fwojciec/simpledocs/crawl"
	"github.com/fwojciec/simpledocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobs(t *testing.T) {
	t.Parallel()

	t.Run("records the final snapshot of a finished job", func(t *testing.T) {
		t.Parallel()

		jobs := crawl.NewJobs(&mock.CrawlService{
			CrawlFn: func(_ context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				snap := simpledocs.NewProgressSnapshot()
				snap.Status = simpledocs.StatusComplete
				snap.URLsCrawled = 3
				return snap, nil
			},
		}, nil)

		job, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://example.com/docs"})
		require.NoError(t, err)
		require.NotEmpty(t, job.ID)

		jobs.Wait()

		found, err := jobs.FindJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusComplete, found.Progress.Status)
		assert.Equal(t, 3, found.Progress.URLsCrawled)
		assert.NotNil(t, found.FinishedAt)
		assert.Empty(t, found.Error)
	})

	t.Run("rejects an invalid request", func(t *testing.T) {
		t.Parallel()

		jobs := crawl.NewJobs(&mock.CrawlService{}, nil)

		_, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "ftp://example.com"})

		assert.Equal(t, simpledocs.EINVALID, simpledocs.ErrorCode(err))
	})

	t.Run("returns not found for an unknown job", func(t *testing.T) {
		t.Parallel()

		jobs := crawl.NewJobs(&mock.CrawlService{}, nil)

		_, err := jobs.FindJob(context.Background(), "missing")
		assert.Equal(t, simpledocs.ENOTFOUND, simpledocs.ErrorCode(err))
		assert.Equal(t, `job "missing" not found`, simpledocs.ErrorMessage(err))

		err = jobs.CancelJob(context.Background(), "missing")
		assert.Equal(t, simpledocs.ENOTFOUND, simpledocs.ErrorCode(err))
	})

	t.Run("cancels a running job", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		jobs := crawl.NewJobs(&mock.CrawlService{
			CrawlFn: func(ctx context.Context, _ simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				close(started)
				<-ctx.Done()
				snap := simpledocs.NewProgressSnapshot()
				snap.Status = simpledocs.StatusCancelled
				return snap, ctx.Err()
			},
		}, nil)

		job, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://example.com"})
		require.NoError(t, err)
		<-started

		require.NoError(t, jobs.CancelJob(context.Background(), job.ID))
		jobs.Wait()

		found, err := jobs.FindJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusCancelled, found.Progress.Status)
		assert.Equal(t, "Crawl cancelled.", found.Error)
	})

	t.Run("reads live progress while running", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		started := make(chan struct{})
		jobs := crawl.NewJobs(&mock.CrawlService{
			CrawlFn: func(ctx context.Context, _ simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				crawl.Observe(ctx, simpledocs.ProgressSnapshot{Status: simpledocs.StatusEmbedding, ChunksProcessed: 7})
				close(started)
				<-release
				return simpledocs.ProgressSnapshot{Status: simpledocs.StatusComplete}, nil
			},
		}, nil)

		job, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://example.com"})
		require.NoError(t, err)
		<-started

		found, err := jobs.FindJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusEmbedding, found.Progress.Status)
		assert.Equal(t, 7, found.Progress.ChunksProcessed)

		close(release)
		jobs.Wait()
	})

	t.Run("keeps the progress of concurrent jobs apart", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		var ready sync.WaitGroup
		ready.Add(2)
		jobs := crawl.NewJobs(&mock.CrawlService{
			CrawlFn: func(ctx context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				snap := simpledocs.NewProgressSnapshot()
				snap.Status = simpledocs.StatusCrawling
				snap.CurrentURL = req.URL
				crawl.Observe(ctx, snap)
				ready.Done()
				<-release
				snap.Status = simpledocs.StatusComplete
				return snap, nil
			},
		}, nil)

		a, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://a.example.com/docs/"})
		require.NoError(t, err)
		b, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://b.example.com/docs/"})
		require.NoError(t, err)
		ready.Wait()

		foundA, err := jobs.FindJob(context.Background(), a.ID)
		require.NoError(t, err)
		foundB, err := jobs.FindJob(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://a.example.com/docs/", foundA.Progress.CurrentURL)
		assert.Equal(t, "https://b.example.com/docs/", foundB.Progress.CurrentURL)

		close(release)
		jobs.Wait()
	})

	t.Run("marks a crawl that fails before its first snapshot as an error", func(t *testing.T) {
		t.Parallel()

		jobs := crawl.NewJobs(&mock.CrawlService{
			CrawlFn: func(_ context.Context, _ simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				return simpledocs.ProgressSnapshot{}, simpledocs.Errorf(simpledocs.EINVALID, "fetcher required")
			},
		}, nil)

		job, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://example.com"})
		require.NoError(t, err)
		jobs.Wait()

		found, err := jobs.FindJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, simpledocs.StatusError, found.Progress.Status)
		assert.True(t, found.Progress.Status.Terminal())
		assert.Equal(t, "fetcher required", found.Error)
		assert.NotNil(t, found.FinishedAt)
	})

	t.Run("returns the starting record while the crawl finishes concurrently", func(t *testing.T) {
		t.Parallel()

		jobs := crawl.NewJobs(&mock.CrawlService{
			CrawlFn: func(_ context.Context, _ simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
				snap := simpledocs.NewProgressSnapshot()
				snap.Status = simpledocs.StatusComplete
				return snap, nil
			},
		}, nil)

		for range 20 {
			job, err := jobs.StartJob(context.Background(), simpledocs.CrawlRequest{URL: "https://example.com/docs/"})
			require.NoError(t, err)
			assert.Equal(t, simpledocs.StatusCrawling, job.Progress.Status)
			assert.Nil(t, job.FinishedAt)
		}
		jobs.Wait()
	})
}
