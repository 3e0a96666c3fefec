package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/google/uuid"
)

var _ simpledocs.JobService = (*Jobs)(nil)

type observerKey struct{}

// WithObserver returns a context under which a crawl reports its run
// snapshot to fn after every checkpoint. Unlike a ProgressService, the
// observer only sees the run started with this context.
func WithObserver(ctx context.Context, fn simpledocs.ProgressFunc) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

// Observe passes s to the observer of ctx, if any.
func Observe(ctx context.Context, s simpledocs.ProgressSnapshot) {
	if fn, ok := ctx.Value(observerKey{}).(simpledocs.ProgressFunc); ok && fn != nil {
		fn(s)
	}
}

// Jobs runs crawls in the background and keeps a record of each run.
type Jobs struct {
	crawler simpledocs.CrawlService
	logger  *slog.Logger

	mu   sync.Mutex
	jobs map[string]*jobEntry
	wg   sync.WaitGroup
}

// jobEntry is guarded by Jobs.mu.
type jobEntry struct {
	job    simpledocs.Job
	cancel context.CancelFunc
	done   bool
}

// NewJobs returns a job registry running crawls with crawler.
func NewJobs(crawler simpledocs.CrawlService, logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Jobs{
		crawler: crawler,
		logger:  logger,
		jobs:    make(map[string]*jobEntry),
	}
}

// StartJob validates the request and starts the crawl in the background.
// The crawl is detached from ctx; use CancelJob or Close to stop it.
func (j *Jobs) StartJob(ctx context.Context, req simpledocs.CrawlRequest) (*simpledocs.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &jobEntry{
		job: simpledocs.Job{
			ID:        uuid.NewString(),
			Request:   req,
			Progress:  simpledocs.NewProgressSnapshot(),
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}
	e.job.Progress.Status = simpledocs.StatusCrawling
	e.job.Progress.CurrentURL = req.URL
	job := e.job
	job.Progress = job.Progress.Clone()

	j.mu.Lock()
	j.jobs[e.job.ID] = e
	j.mu.Unlock()

	j.wg.Add(1)
	go j.run(WithObserver(runCtx, func(s simpledocs.ProgressSnapshot) {
		j.observe(e, s)
	}), e, req)

	j.logger.Info("job started", "id", job.ID, "url", req.URL)
	return &job, nil
}

func (j *Jobs) observe(e *jobEntry, s simpledocs.ProgressSnapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !e.done {
		e.job.Progress = s.Clone()
	}
}

func (j *Jobs) run(ctx context.Context, e *jobEntry, req simpledocs.CrawlRequest) {
	defer j.wg.Done()
	defer e.cancel()

	snap, err := j.crawler.Crawl(ctx, req)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	e.done = true
	e.job.FinishedAt = &now
	if snap.Status != "" {
		e.job.Progress = snap.Clone()
	}
	if err == nil {
		j.logger.Info("job finished", "id", e.job.ID, "status", snap.Status)
		return
	}

	e.job.Error = simpledocs.ErrorMessage(err)
	switch {
	case ctx.Err() != nil:
		e.job.Error = "Crawl cancelled."
		e.job.Progress.Status = simpledocs.StatusCancelled
	case snap.Status == "":
		e.job.Progress.Status = simpledocs.StatusError
		e.job.Progress.CurrentURL = ""
	}
	j.logger.Warn("job failed", "id", e.job.ID, "status", e.job.Progress.Status, "err", err)
}

// FindJob returns the job with its latest progress.
func (j *Jobs) FindJob(_ context.Context, id string) (*simpledocs.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.jobs[id]
	if !ok {
		return nil, simpledocs.Errorf(simpledocs.ENOTFOUND, "job %q not found", id)
	}
	job := e.job
	job.Progress = job.Progress.Clone()
	return &job, nil
}

// CancelJob cancels a running job. Cancelling a finished job is a no-op.
func (j *Jobs) CancelJob(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.jobs[id]
	if !ok {
		return simpledocs.Errorf(simpledocs.ENOTFOUND, "job %q not found", id)
	}
	if !e.done {
		j.logger.Info("job cancelled", "id", id)
		e.cancel()
	}
	return nil
}

// Wait blocks until every started job has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

// Close cancels all running jobs and waits for them to finish.
func (j *Jobs) Close() error {
	j.mu.Lock()
	for _, e := range j.jobs {
		e.cancel()
	}
	j.mu.Unlock()
	j.wg.Wait()
	return nil
}
