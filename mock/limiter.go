package mock

import (
	"context"

	"github.com/fwojciec/simpledocs"
)

var (
	_ simpledocs.RequestLimiter = (*RequestLimiter)(nil)
	_ simpledocs.DomainLimiter  = (*DomainLimiter)(nil)
)

// RequestLimiter is a mock implementation of simpledocs.RequestLimiter.
type RequestLimiter struct {
	WaitFn func(ctx context.Context) error
}

func (l *RequestLimiter) Wait(ctx context.Context) error {
	return l.WaitFn(ctx)
}

// DomainLimiter is a mock implementation of simpledocs.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
