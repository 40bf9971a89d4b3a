package client

import (
	"context"

	"github.com/parley-ai/parley/providers/ai"
)

// SendFunc sends one chat request and returns the completed response. The
// send middleware chain is built out of these.
type SendFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)

// StreamFunc sends one chat request and returns a ChatStream delivering the
// response incrementally. The stream middleware chain is built out of these.
type StreamFunc func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)

// Middleware wraps a SendFunc with the next stage of the chain. The first
// middleware in the configured slice ends up outermost, so it sees the
// request first and the response last.
type Middleware func(next SendFunc) SendFunc

// StreamMiddleware is the streaming counterpart of Middleware. Besides the
// request it may wrap the returned ChatStream to watch or rewrite the event
// sequence.
type StreamMiddleware func(next StreamFunc) StreamFunc

// MiddlewareConfig pairs a send middleware with its streaming counterpart.
type MiddlewareConfig struct {
	// Send applies to SendMessage and ContinueConversation. It is required;
	// a nil Send makes [New] fail.
	Send Middleware

	// Stream applies to StreamMessage and StreamContinueConversation. It may
	// be nil, in which case streaming calls skip this entry and fall through
	// to the next one.
	Stream StreamMiddleware
}

// newSendPipeline folds the configured middlewares over a direct provider
// call. Wrapping runs back to front so that entry 0 executes first on the
// way in.
func newSendPipeline(provider ai.Provider, middlewares []MiddlewareConfig) SendFunc {
	send := func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		return provider.SendMessage(ctx, request)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		send = middlewares[i].Send(send)
	}

	return send
}

// newStreamPipeline is the streaming analogue of newSendPipeline. Providers
// without native streaming are bridged through a synchronous call replayed
// as a single-shot stream. Entries with a nil Stream are skipped.
func newStreamPipeline(provider ai.Provider, middlewares []MiddlewareConfig) StreamFunc {
	stream := func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		if streamProvider, ok := provider.(ai.StreamProvider); ok {
			return streamProvider.StreamMessage(ctx, request)
		}

		response, err := provider.SendMessage(ctx, request)
		if err != nil {
			return nil, err
		}
		return ai.NewSingleEventStream(response), nil
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i].Stream != nil {
			stream = middlewares[i].Stream(stream)
		}
	}

	return stream
}
