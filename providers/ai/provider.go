package ai

import (
	"context"
	"net/http"
)

// Provider is the contract every LLM backend satisfies: one synchronous
// request/response exchange plus the fluent configuration used to set it up.
// Implementations translate between their wire format and the normalized
// ChatRequest/ChatResponse types; callers never see provider-specific shapes.
type Provider interface {
	// SendMessage performs one chat exchange and returns the completed
	// response. Transport failures, non-2xx statuses, cancellation, and
	// undecodable bodies all surface as the error.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// IsStopMessage reports whether the response is terminal for its
	// conversation: the model produced a final answer and requests no tool
	// calls. Each provider maps its own finish-reason vocabulary.
	IsStopMessage(message *ChatResponse) bool

	// WithAPIKey returns the provider authenticating with apiKey.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL returns the provider targeting baseURL instead of the
	// backend's public endpoint. Used for proxies and compatible gateways.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient returns the provider sending requests through
	// httpClient, for callers that need custom timeouts or transports.
	WithHttpClient(httpClient *http.Client) Provider
}

// StreamProvider marks a Provider that can also stream. Support is detected
// with a type assertion, provider.(StreamProvider); absent it, callers fall
// back to SendMessage.
type StreamProvider interface {
	Provider

	// StreamMessage opens a streaming exchange and returns a ChatStream of
	// incremental deltas. Errors before the stream is established (auth, bad
	// request, network) come back as the error; errors after that are yielded
	// through the stream's iterator.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}
