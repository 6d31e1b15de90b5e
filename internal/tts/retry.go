package tts

import (
	"context"
	"errors"
	"time"

	"github.com/kolstudio/dibur/internal/reliability"
)

// DefaultMaxAttempts is the total attempt budget per synthesis request.
const DefaultMaxAttempts = 3

// DefaultBackoff sits just past the provider's observed quota reset window.
const DefaultBackoff = 47 * time.Second

// SleepFunc waits for d or until the context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryConfig bounds the retry behaviour of a Retrying synthesizer.
type RetryConfig struct {
	// MaxAttempts is the total attempt count, first try included.
	MaxAttempts int
	// Backoff is the fixed delay between rate-limited attempts.
	Backoff time.Duration
	// OnRetry, when set, observes each backoff wait (for metrics).
	OnRetry func(attempt int)
	// Sleep substitutes the wait implementation; tests inject a counter.
	Sleep SleepFunc
}

// Retrying wraps a Synthesizer with a bounded retry budget for rate-limit
// responses. Any other error fails immediately.
type Retrying struct {
	inner       Synthesizer
	maxAttempts int
	backoff     time.Duration
	onRetry     func(attempt int)
	sleep       SleepFunc
}

// NewRetrying builds the retry wrapper, filling in defaults for unset fields.
func NewRetrying(inner Synthesizer, cfg RetryConfig) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Retrying{
		inner:       inner,
		maxAttempts: cfg.MaxAttempts,
		backoff:     reliability.FixedBackoff(cfg.Backoff, DefaultBackoff),
		onRetry:     cfg.OnRetry,
		sleep:       cfg.Sleep,
	}
}

// Synthesize runs ATTEMPT → (rate-limited → WAIT → ATTEMPT)* until success,
// a non-rate-limit failure, or the attempt budget runs out.
func (r *Retrying) Synthesize(ctx context.Context, req Request) (Audio, error) {
	for attempt := 1; ; attempt++ {
		audio, err := r.inner.Synthesize(ctx, req)
		if err == nil {
			return audio, nil
		}

		var rateLimited *RateLimitError
		if !errors.As(err, &rateLimited) {
			return Audio{}, err
		}
		if attempt >= r.maxAttempts {
			rateLimited.Attempts = attempt
			return Audio{}, rateLimited
		}

		if r.onRetry != nil {
			r.onRetry(attempt)
		}
		if err := r.sleep(ctx, r.backoff); err != nil {
			return Audio{}, err
		}
	}
}
