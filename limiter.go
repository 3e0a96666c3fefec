package simpledocs

import "context"

// RequestLimiter caps the rate of outgoing fetches for a whole crawl run.
type RequestLimiter interface {
	// Wait blocks until another request may start.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context) error
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
