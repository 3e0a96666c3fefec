package crawl

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/simpledocs"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is the global fetch budget of a crawl run.
const DefaultRequestsPerMinute = 100

var _ simpledocs.RequestLimiter = (*RequestLimiter)(nil)

// RequestLimiter caps fetches at max per window across all callers.
// Tokens are spaced window/max apart with a burst of one, so any
// half-open interval of length window admits at most max requests.
type RequestLimiter struct {
	limiter *rate.Limiter
}

// NewRequestLimiter creates a limiter allowing max requests per window.
// A max of zero or less disables limiting.
func NewRequestLimiter(max int, window time.Duration) *RequestLimiter {
	if max <= 0 || window <= 0 {
		return &RequestLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RequestLimiter{limiter: rate.NewLimiter(rate.Every(window/time.Duration(max)), 1)}
}

// NewPerMinuteLimiter creates a limiter allowing max requests per minute.
func NewPerMinuteLimiter(max int) *RequestLimiter {
	return NewRequestLimiter(max, time.Minute)
}

// Wait blocks until another request may start.
func (l *RequestLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

var _ simpledocs.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces requests to each host independently. Hosts are
// compared case-insensitively and without a "www." prefix, so
// www.example.com and example.com share one budget.
type DomainLimiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	every rate.Limit
}

// NewDomainLimiter creates a limiter allowing rps requests per second per
// host. A non-positive rps disables limiting.
func NewDomainLimiter(rps float64) *DomainLimiter {
	every := rate.Inf
	if rps > 0 {
		every = rate.Limit(rps)
	}
	return &DomainLimiter{hosts: make(map[string]*rate.Limiter), every: every}
}

// Wait blocks until domain may receive another request or ctx is done.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	if d.every == rate.Inf {
		return ctx.Err()
	}
	key := strings.TrimPrefix(strings.ToLower(domain), "www.")

	d.mu.Lock()
	l, ok := d.hosts[key]
	if !ok {
		l = rate.NewLimiter(d.every, 1)
		d.hosts[key] = l
	}
	d.mu.Unlock()

	return l.Wait(ctx)
}
