package middleware

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/parley-ai/parley/providers/ai"
)

// failTimes builds a send function that fails its first n calls with err and
// succeeds afterwards, counting every call through calls.
func failTimes(n int, err error, calls *int) func(context.Context, ai.ChatRequest) (*ai.ChatResponse, error) {
	return func(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
		*calls++
		if *calls <= n {
			return nil, err
		}
		return &ai.ChatResponse{Content: "ok", FinishReason: "stop"}, nil
	}
}

// fastRetry keeps test backoffs in the low milliseconds.
func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}
}

func TestRetryMiddleware(t *testing.T) {
	transientErr := fmt.Errorf("status 429: rate limited")

	t.Run("first try success skips the retry machinery", func(t *testing.T) {
		calls := 0
		chain := NewRetryMiddleware(fastRetry(3)).Send(failTimes(0, nil, &calls))

		resp, err := chain(context.Background(), ai.ChatRequest{})
		if err != nil {
			t.Fatalf("chain: %v", err)
		}
		if resp.Content != "ok" {
			t.Errorf("expected 'ok', got %q", resp.Content)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("transient error is retried until success", func(t *testing.T) {
		calls := 0
		chain := NewRetryMiddleware(fastRetry(3)).Send(failTimes(1, transientErr, &calls))

		resp, err := chain(context.Background(), ai.ChatRequest{})
		if err != nil {
			t.Fatalf("chain: %v", err)
		}
		if resp.Content != "ok" {
			t.Errorf("expected 'ok', got %q", resp.Content)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("exhaustion wraps both the sentinel and the cause", func(t *testing.T) {
		calls := 0
		chain := NewRetryMiddleware(fastRetry(3)).Send(failTimes(100, transientErr, &calls))

		_, err := chain(context.Background(), ai.ChatRequest{})
		if !errors.Is(err, ErrRetryExhausted) {
			t.Errorf("expected ErrRetryExhausted, got %v", err)
		}
		if !errors.Is(err, transientErr) {
			t.Errorf("expected the provider error wrapped, got %v", err)
		}
		if calls != 4 {
			t.Errorf("expected 1 original + 3 retries = 4 calls, got %d", calls)
		}
	})

	t.Run("non-retryable error propagates immediately", func(t *testing.T) {
		permanentErr := errors.New("permanent failure")
		calls := 0
		chain := NewRetryMiddleware(fastRetry(3)).Send(failTimes(100, permanentErr, &calls))

		_, err := chain(context.Background(), ai.ChatRequest{})
		if !errors.Is(err, permanentErr) {
			t.Fatalf("expected the permanent error back, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected exactly 1 call, got %d", calls)
		}
	})

	t.Run("cancellation during backoff stops retrying", func(t *testing.T) {
		calls := 0
		chain := NewRetryMiddleware(RetryConfig{
			MaxRetries:     10,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
		}).Send(failTimes(100, transientErr, &calls))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := chain(ctx, ai.ChatRequest{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
		if calls < 1 {
			t.Errorf("expected at least the initial attempt, got %d calls", calls)
		}
	})

	t.Run("custom RetryableFunc decides what retries", func(t *testing.T) {
		recoverable := errors.New("custom-retryable")
		terminal := errors.New("not retryable")

		calls := 0
		flaky := func(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
			calls++
			if calls == 1 {
				return nil, recoverable
			}
			return nil, terminal
		}

		config := fastRetry(3)
		config.RetryableFunc = func(err error) bool { return errors.Is(err, recoverable) }
		chain := NewRetryMiddleware(config).Send(flaky)

		_, err := chain(context.Background(), ai.ChatRequest{})
		if !errors.Is(err, terminal) {
			t.Errorf("expected the terminal error to propagate, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected retry once then stop, got %d calls", calls)
		}
	})

	t.Run("zero config gets the default retry budget", func(t *testing.T) {
		calls := 0
		// Only the backoffs are set, so the test does not sleep for seconds.
		chain := NewRetryMiddleware(RetryConfig{
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		}).Send(failTimes(100, transientErr, &calls))

		_, err := chain(context.Background(), ai.ChatRequest{})
		if !errors.Is(err, ErrRetryExhausted) {
			t.Fatalf("expected ErrRetryExhausted, got %v", err)
		}
		if calls != 4 {
			t.Errorf("expected default MaxRetries=3 to give 4 calls, got %d", calls)
		}
	})

	t.Run("backoff grows between attempts", func(t *testing.T) {
		var timestamps []time.Time
		record := func(_ context.Context, _ ai.ChatRequest) (*ai.ChatResponse, error) {
			timestamps = append(timestamps, time.Now())
			return nil, transientErr
		}

		chain := NewRetryMiddleware(RetryConfig{
			MaxRetries:     2,
			InitialBackoff: 20 * time.Millisecond,
			MaxBackoff:     200 * time.Millisecond,
			BackoffFactor:  2.0,
			JitterFraction: 0, // deterministic gaps
		}).Send(record)

		_, _ = chain(context.Background(), ai.ChatRequest{})

		if len(timestamps) != 3 {
			t.Fatalf("expected 3 attempts, got %d", len(timestamps))
		}

		gap01 := timestamps[1].Sub(timestamps[0])
		gap12 := timestamps[2].Sub(timestamps[1])
		if gap12 <= gap01 {
			t.Errorf("expected the second gap (%v) to exceed the first (%v)", gap12, gap01)
		}
	})

	t.Run("streams are not retried", func(t *testing.T) {
		if mw := NewRetryMiddleware(RetryConfig{}); mw.Stream != nil {
			t.Error("expected a nil Stream half")
		}
	})
}

func TestRetryBackoffCap(t *testing.T) {
	maxBackoff := 100 * time.Millisecond
	config := RetryConfig{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     maxBackoff,
		BackoffFactor:  2.0,
		JitterFraction: 0.1,
	}

	// At attempt 100 the raw exponential dwarfs MaxBackoff, so the base must
	// be capped before jitter. Result range: [MaxBackoff, MaxBackoff*1.1].
	upperBound := maxBackoff + time.Duration(float64(maxBackoff)*config.JitterFraction)

	for i := 0; i < 200; i++ {
		got := config.backoff(100)
		if got < maxBackoff || got > upperBound {
			t.Fatalf("iteration %d: backoff %v outside [%v, %v]", i, got, maxBackoff, upperBound)
		}
	}
}

func TestDefaultRetryable(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantRetry bool
	}{
		{"nil error", nil, false},
		{"429 rate limit", fmt.Errorf("HTTP status 429: rate limited"), true},
		{"500 internal error", fmt.Errorf("HTTP status 500: internal server error"), true},
		{"502 bad gateway", fmt.Errorf("upstream returned 502 bad gateway"), true},
		{"503 unavailable", fmt.Errorf("service 503 unavailable"), true},
		{"529 overloaded", fmt.Errorf("code 529: overloaded"), true},
		{"400 bad request", fmt.Errorf("HTTP status 400: bad request"), false},
		{"no status code", errors.New("permanent failure"), false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := defaultRetryable(testCase.err); got != testCase.wantRetry {
				t.Errorf("defaultRetryable(%v) = %v, want %v", testCase.err, got, testCase.wantRetry)
			}
		})
	}
}
