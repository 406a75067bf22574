package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces query starts at least delay apart, plus up to jitter extra.
// A zero delay and jitter disables it.
type pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
	calls   int
}

func newPacer(delay, jitter time.Duration) *pacer {
	p := &pacer{jitter: jitter}
	if delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return p
}

// Wait blocks until the next query may start. The first call never waits.
func (p *pacer) Wait(ctx context.Context) error {
	first := p.calls == 0
	p.calls++

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if first || p.jitter <= 0 {
		return ctx.Err()
	}

	extra := rand.N(p.jitter)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(extra):
		return nil
	}
}
