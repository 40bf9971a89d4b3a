// Package middleware ships the built-in middleware for the parley client.
// Each constructor returns a [client.MiddlewareConfig] to pass to
// [client.WithMiddleware]:
//
//   - [NewRetryMiddleware] retries transient provider failures (HTTP 429 and
//     5xx by default) with jittered exponential backoff.
//   - [NewTimeoutMiddleware] puts a deadline on each call, covering streams
//     from first byte to last event.
//   - [NewLoggingMiddleware] writes slog entries around every call at one of
//     three verbosity levels.
//
// A typical stack:
//
//	c, err := client.New(provider,
//	    client.WithMiddleware(
//	        middleware.NewTimeoutMiddleware(30*time.Second),
//	        middleware.NewRetryMiddleware(middleware.RetryConfig{MaxRetries: 3}),
//	        middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard),
//	    ),
//	)
//
// Registration order is wrapping order: the first entry is outermost, so
// here a request passes timeout, then retry, then logging, then the
// provider, and the response unwinds back through the same layers. Putting
// timeout outside retry means the deadline bounds all attempts together;
// swap them to give each attempt its own deadline.
package middleware
