package middleware

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/parley-ai/parley/core/client"
	"github.com/parley-ai/parley/providers/ai"
)

// RetryConfig tunes the retry middleware. Zero-valued fields take the
// documented defaults when the middleware is built.
type RetryConfig struct {
	// MaxRetries bounds the attempts after the first failure, so a value of
	// 3 means at most 4 provider calls. Default: 3.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Default: 1s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed backoff. Default: 30s.
	MaxBackoff time.Duration

	// BackoffFactor is the exponential growth multiplier:
	// backoff = min(InitialBackoff * BackoffFactor^attempt, MaxBackoff).
	// Default: 2.0.
	BackoffFactor float64

	// JitterFraction adds random noise in [0, JitterFraction*backoff] so
	// concurrent clients do not retry in lockstep. Default: 0.1.
	JitterFraction float64

	// RetryableFunc decides whether an error is worth retrying. The default
	// matches transient HTTP status codes (429, 500, 502, 503, 529) in the
	// error text.
	RetryableFunc func(error) bool
}

// withDefaults returns a copy of c with zero-valued fields filled in.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 2.0
	}
	if c.JitterFraction == 0 {
		c.JitterFraction = 0.1
	}
	if c.RetryableFunc == nil {
		c.RetryableFunc = defaultRetryable
	}
	return c
}

// backoff computes the wait before retry number attempt (0-indexed), capping
// the exponential base at MaxBackoff before jitter is added.
func (c RetryConfig) backoff(attempt int) time.Duration {
	base := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt))
	base = math.Min(base, float64(c.MaxBackoff))

	jitter := base * c.JitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter
	return time.Duration(base + jitter)
}

// defaultRetryable matches transient HTTP status codes in the error text.
// Provider errors carry their status as text, so a substring check is the
// common denominator across adapters.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, code := range []string{"429", "500", "502", "503", "529"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// NewRetryMiddleware returns a MiddlewareConfig that retries failed send
// calls per config, sleeping an exponentially growing, jittered backoff
// between attempts. Context cancellation is honored during the sleep.
//
// Stream is left nil: a stream that fails partway through has already
// yielded events, so it cannot be transparently replayed.
//
// When the budget runs out the returned error wraps both [ErrRetryExhausted]
// and the last provider error, so either can be unwrapped.
func NewRetryMiddleware(config RetryConfig) client.MiddlewareConfig {
	cfg := config.withDefaults()

	retry := func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			var lastErr error

			for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
				if attempt > 0 {
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(cfg.backoff(attempt - 1)):
					}
				}

				response, err := next(ctx, request)
				if err == nil {
					return response, nil
				}
				if !cfg.RetryableFunc(err) {
					return nil, err
				}
				lastErr = err
			}

			return nil, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, cfg.MaxRetries, lastErr)
		}
	}

	return client.MiddlewareConfig{Send: retry}
}
