package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy describes how rate-limited extraction calls are retried. It is
// supplied explicitly at the call site so the backoff schedule is visible
// where the call happens.
type RetryPolicy struct {
	// MaxAttempts caps total attempts for rate-limited calls. Default: 5.
	MaxAttempts int

	// BaseDelay is the first backoff delay. Default: 2s.
	BaseDelay time.Duration

	// Multiplier grows the delay each attempt. Default: 2.
	Multiplier float64

	// Jitter is the fraction of random spread applied to each delay, in
	// [0,1]. Zero means the default of 0.2; negative disables jitter.
	Jitter float64
}

func (p *RetryPolicy) defaults() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	if p.Jitter == 0 {
		p.Jitter = 0.2
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = 0
	}
}

// Backoff returns the delay before the given retry attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p.defaults()
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Jitter > 0 {
		spread := p.Jitter * (rand.Float64()*2 - 1)
		d *= 1 + spread
	}
	return time.Duration(d)
}

// Run calls the adapter under the policy. Rate-limited calls are retried with
// exponential backoff up to MaxAttempts; a malformed response earns exactly
// one retry with the strict schema hint; every other failure is terminal.
func Run(ctx context.Context, a Adapter, policy RetryPolicy, text string) (*ContractRecord, error) {
	policy.defaults()

	strict := false
	retriedMalformed := false
	attempt := 1

	for {
		rec, err := a.Extract(ctx, text, strict)
		if err == nil {
			return rec, nil
		}

		switch {
		case errors.Is(err, ErrRateLimited):
			if attempt >= policy.MaxAttempts {
				return nil, fmt.Errorf("extract: gave up after %d attempts: %w", attempt, err)
			}
			if err := sleepCtx(ctx, policy.Backoff(attempt)); err != nil {
				return nil, err
			}
			attempt++
		case errors.Is(err, ErrMalformedResponse) && !retriedMalformed:
			retriedMalformed = true
			strict = true
		default:
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
