package ratelimit

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter is a named token bucket bounding calls per second to one upstream
// class. Separate instances exist per upstream (catalog API, embedding API)
// so that slow embedding calls cannot starve catalog fetches.
type Limiter struct {
	name string
	lim  *rate.Limiter
}

func New(name string, rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		name: name,
		lim:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Acquire blocks until a permit is available or the context is cancelled.
// The only possible error is the context's.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.lim.Wait(ctx); err != nil {
		zap.S().Named("ratelimit").Debugf("%s: acquire aborted: %v", l.name, err)
		return err
	}
	return nil
}

func (l *Limiter) Name() string {
	return l.name
}
