// Package ratelimit throttles outgoing exchange requests. Binance enforces a
// raw request budget and a separate, tighter order placement budget, so the
// limiter keeps one token bucket for each.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces the general request budget and, when configured, the
// order placement budget.
type Limiter struct {
	requests *rate.Limiter
	orders   *rate.Limiter

	waited atomic.Int64
	denied atomic.Int64
}

// New creates a Limiter allowing the given number of requests per period.
// ordersPerPeriod adds the order bucket; pass zero to throttle orders with
// the general bucket only.
func New(requestsPerPeriod int, period time.Duration, ordersPerPeriod int) *Limiter {
	l := &Limiter{
		requests: newBucket(requestsPerPeriod, period),
	}
	if ordersPerPeriod > 0 {
		l.orders = newBucket(ordersPerPeriod, period)
	}
	return l
}

func newBucket(n int, period time.Duration) *rate.Limiter {
	rps := float64(n) / period.Seconds()
	return rate.NewLimiter(rate.Limit(rps), n)
}

// Wait blocks until the request budget allows n weight units or the context
// is cancelled.
func (l *Limiter) Wait(ctx context.Context, weight int) error {
	if weight < 1 {
		weight = 1
	}
	if err := l.requests.WaitN(ctx, weight); err != nil {
		l.denied.Add(1)
		return err
	}
	l.waited.Add(1)
	return nil
}

// WaitOrder blocks until both the order budget and the request budget allow
// the call, or the context is cancelled.
func (l *Limiter) WaitOrder(ctx context.Context, weight int) error {
	if l.orders != nil {
		if err := l.orders.Wait(ctx); err != nil {
			l.denied.Add(1)
			return err
		}
	}
	return l.Wait(ctx, weight)
}

// Allow reports whether a single request would be admitted right now without
// consuming budget beyond one token.
func (l *Limiter) Allow() bool {
	return l.requests.Allow()
}

// SetLimit replaces the request budget.
func (l *Limiter) SetLimit(requestsPerPeriod int, period time.Duration) {
	rps := float64(requestsPerPeriod) / period.Seconds()
	l.requests.SetLimit(rate.Limit(rps))
	l.requests.SetBurst(requestsPerPeriod)
}

// Stats returns the number of admitted and denied waits since creation.
func (l *Limiter) Stats() (admitted, denied int64) {
	return l.waited.Load(), l.denied.Load()
}
