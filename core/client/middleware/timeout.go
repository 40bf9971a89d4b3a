package middleware

import (
	"context"
	"time"

	"github.com/parley-ai/parley/core/client"
	"github.com/parley-ai/parley/providers/ai"
)

// NewTimeoutMiddleware returns a MiddlewareConfig that puts a deadline on
// both synchronous and streaming provider calls.
//
// Send calls get a plain context.WithTimeout with a deferred cancel.
//
// Stream calls need more care: cancelling when the StreamFunc returns would
// kill the transport while the consumer is still reading. The deadline is
// applied before calling next, and the cancel runs once the stream ends, so
// the timeout spans the whole life of the stream rather than just the time
// to first byte.
//
// A caller context with a shorter deadline wins, per normal context rules.
func NewTimeoutMiddleware(timeout time.Duration) client.MiddlewareConfig {
	return client.MiddlewareConfig{
		Send:   deadlineSend(timeout),
		Stream: deadlineStream(timeout),
	}
}

func deadlineSend(timeout time.Duration) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}

func deadlineStream(timeout time.Duration) client.StreamMiddleware {
	return func(next client.StreamFunc) client.StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			stream, err := next(ctx, request)
			if err != nil {
				cancel()
				return nil, err
			}

			return cancelOnEnd(stream, cancel), nil
		}
	}
}

// cancelOnEnd rewraps the stream so cancel fires when iteration stops for
// any reason: done event, error, or the consumer breaking out early.
func cancelOnEnd(stream *ai.ChatStream, cancel context.CancelFunc) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		defer cancel()

		for event, err := range stream.Iter() {
			if !yield(event, err) {
				return
			}
			if err != nil || event.Type == ai.StreamEventDone {
				return
			}
		}
	})
}
