package client

import (
	"context"
	"fmt"

	"github.com/parley-ai/parley/providers/ai"
)

// StreamMessage sends a user message and delivers the model's response as a
// stream of events instead of a completed ChatResponse.
//
// Memory behaves as in SendMessage: stored history is prepended and the user
// message is persisted before streaming starts. Unlike SendMessage, no tool
// execution happens: tool calls arrive as stream events and are the caller's
// to run (or collect the stream and hand the calls back through memory).
//
// Providers without native streaming are transparently downgraded to a
// synchronous call delivered as a single burst of events.
func (c *Client) StreamMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.ChatStream, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty, use ContinueConversation() to run the model over the existing history")
	}

	messages, err := c.startConversation(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return c.stream(ctx, c.buildRequest(c.toolCatalog, messages, applySendOptions(opts)))
}

// StreamContinueConversation streams the model's next turn over the history
// stored in memory, without adding a new user message. Requires a memory
// provider.
func (c *Client) StreamContinueConversation(ctx context.Context, opts ...SendMessageOption) (*ai.ChatStream, error) {
	if c.memoryProvider == nil {
		return nil, fmt.Errorf("StreamContinueConversation requires a memory provider, configure one with WithMemory()")
	}

	messages, err := c.memoryProvider.AllMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages from memory: %w", err)
	}

	return c.stream(ctx, c.buildRequest(c.toolCatalog, messages, applySendOptions(opts)))
}

// stream routes a request through the stream middleware chain when one is
// configured. Without a chain it prefers the provider's native streaming and
// falls back to a synchronous call wrapped in a single-event stream.
func (c *Client) stream(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	if c.streamChain != nil {
		return c.streamChain(ctx, request)
	}

	if streamProvider, ok := c.llmProvider.(ai.StreamProvider); ok {
		return streamProvider.StreamMessage(ctx, request)
	}

	response, err := c.llmProvider.SendMessage(ctx, request)
	if err != nil {
		return nil, err
	}

	return ai.NewSingleEventStream(response), nil
}
