package middleware

import "errors"

// ErrRetryExhausted marks a send call that failed on every retry attempt.
// The retry middleware wraps it together with the last provider error, so
// both errors.Is(err, ErrRetryExhausted) and unwrapping the root cause work.
var ErrRetryExhausted = errors.New("parley: all retry attempts exhausted")
