package simpledocs

import (
	"context"
	"net/url"
	"time"
)

// DefaultMaxDepth is the link-following depth used when none is given.
const DefaultMaxDepth = 2

// CrawlRequest describes one crawl run.
type CrawlRequest struct {
	URL         string   `json:"url"`
	Recursive   bool     `json:"recursive"`
	MaxDepth    int      `json:"max_depth"`
	DocPatterns []string `json:"doc_patterns,omitempty"`
}

// Validate returns an error if the request contains invalid fields.
func (r *CrawlRequest) Validate() error {
	if r.URL == "" {
		return Errorf(EINVALID, "crawl URL required")
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Errorf(EINVALID, "invalid crawl URL %q", r.URL)
	}
	if r.MaxDepth < 0 {
		return Errorf(EINVALID, "max depth must not be negative")
	}
	return nil
}

// CrawlService runs a crawl to completion.
type CrawlService interface {
	// Crawl discovers, extracts, embeds and stores the documentation
	// reachable from the request URL and returns the final snapshot.
	// Page, batch and document failures are contained; the snapshot is
	// always terminal. Cancelling ctx ends the run as StatusCancelled.
	Crawl(ctx context.Context, req CrawlRequest) (ProgressSnapshot, error)
}

// Job is a crawl run started in the background.
type Job struct {
	ID         string           `json:"id"`
	Request    CrawlRequest     `json:"request"`
	Progress   ProgressSnapshot `json:"progress"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// JobService tracks background crawl runs.
type JobService interface {
	// StartJob validates the request and starts the crawl in the background.
	StartJob(ctx context.Context, req CrawlRequest) (*Job, error)

	// FindJob returns the job with its latest progress.
	// Returns ENOTFOUND if the job does not exist.
	FindJob(ctx context.Context, id string) (*Job, error)

	// CancelJob cancels a running job.
	// Returns ENOTFOUND if the job does not exist.
	CancelJob(ctx context.Context, id string) error
}
