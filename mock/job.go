package mock

import (
	"context"

	"github.com/fwojciec/simpledocs"
)

var (
	_ simpledocs.CrawlService = (*CrawlService)(nil)
	_ simpledocs.JobService   = (*JobService)(nil)
)

// CrawlService is a mock implementation of simpledocs.CrawlService.
type CrawlService struct {
	CrawlFn func(ctx context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error)
}

func (s *CrawlService) Crawl(ctx context.Context, req simpledocs.CrawlRequest) (simpledocs.ProgressSnapshot, error) {
	return s.CrawlFn(ctx, req)
}

// JobService is a mock implementation of simpledocs.JobService.
type JobService struct {
	StartJobFn  func(ctx context.Context, req simpledocs.CrawlRequest) (*simpledocs.Job, error)
	FindJobFn   func(ctx context.Context, id string) (*simpledocs.Job, error)
	CancelJobFn func(ctx context.Context, id string) error
}

func (s *JobService) StartJob(ctx context.Context, req simpledocs.CrawlRequest) (*simpledocs.Job, error) {
	return s.StartJobFn(ctx, req)
}

func (s *JobService) FindJob(ctx context.Context, id string) (*simpledocs.Job, error) {
	return s.FindJobFn(ctx, id)
}

func (s *JobService) CancelJob(ctx context.Context, id string) error {
	return s.CancelJobFn(ctx, id)
}
