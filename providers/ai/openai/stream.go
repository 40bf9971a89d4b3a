package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parley-ai/parley/internal/sse"
	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/observability"
)

// doneSentinel is the payload OpenAI sends as the final SSE event to signal
// that the stream is complete. It is not JSON and never reaches the chunk parser.
const doneSentinel = "[DONE]"

// StreamMessage implements [ai.StreamProvider] against the chat completions
// endpoint. The request goes out with stream=true and include_usage so the
// final chunk reports token totals; the returned [ai.ChatStream] yields
// events as SSE payloads arrive from the API.
func (provider *OpenAIProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	traceRequestStart(ctx, provider, request, true)

	if provider.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	useLegacyFunctions := provider.capabilities.ToolCallMode == ToolCallModeFunctions
	chatRequest := requestToChatCompletion(request, useLegacyFunctions)
	chatRequest.Stream = utils.Ptr(true)
	chatRequest.StreamOptions = &streamOptions{IncludeUsage: true}

	streamURL := provider.baseURL + chatCompletionsEndpoint
	httpResponse, err := utils.DoPostStream(ctx, provider.client, streamURL, provider.apiKey, chatRequest)
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "Streaming HTTP request failed", observability.Error(err))
		}
		return nil, err
	}

	// The SSE stream owns the response body from here: it closes it on
	// exhaustion, error, consumer abandonment, and cancellation alike.
	sseStream := sse.NewStream(httpResponse.Body)
	stop := context.AfterFunc(ctx, sseStream.Cancel)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer stop()

		for event, sseErr := range sseStream.Events() {
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			if payload, ok := event.Data.(string); ok && payload == doneSentinel {
				return
			}

			chunk, parseErr := chunkFromEventData(event.Data)
			if parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse streaming chunk: %w", parseErr))
				return
			}

			for _, streamEvent := range openaiChunkToStreamEvents(chunk) {
				if !yield(streamEvent, nil) {
					return
				}
			}
		}

		// The parser ends the iteration silently on cancellation; surface the
		// context error so callers can tell a cancel from a clean finish.
		if ctx.Err() != nil {
			yield(ai.StreamEvent{}, ctx.Err())
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}

// chunkFromEventData converts a reconciled SSE payload into a typed streaming
// chunk. The SSE parser decodes JSON-looking payloads into generic values, so
// a payload that arrives here as a string either never looked like JSON or
// failed to decode; both go through the typed unmarshal so the caller gets a
// precise parse error.
func chunkFromEventData(data any) (*chatCompletionStreamChunk, error) {
	if payload, ok := data.(string); ok {
		return decodeStreamChunk(payload)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return decodeStreamChunk(string(raw))
}

// openaiChunkToStreamEvents translates one wire chunk into zero or more
// provider-agnostic events. A chunk can carry several kinds of payload at
// once; usage totals come first, then the per-choice deltas in order.
func openaiChunkToStreamEvents(chunk *chatCompletionStreamChunk) []ai.StreamEvent {
	var events []ai.StreamEvent

	// A stream requested with include_usage ends with a chunk that has an
	// empty choice list and only the token totals.
	if chunk.Usage != nil {
		events = append(events, ai.StreamEvent{
			Type:  ai.StreamEventUsage,
			Usage: usageToGeneric(chunk.Usage),
		})
	}

	for _, choice := range chunk.Choices {
		events = append(events, deltaToStreamEvents(choice)...)
	}

	return events
}

// deltaToStreamEvents expands a single choice delta. Text and reasoning
// fragments become their own events, every tool-call part becomes one event,
// and a finish reason closes the sequence.
func deltaToStreamEvents(choice streamChoice) []ai.StreamEvent {
	var events []ai.StreamEvent

	if content := choice.Delta.Content; content != nil && *content != "" {
		events = append(events, ai.StreamEvent{
			Type:    ai.StreamEventContent,
			Content: *content,
		})
	}

	if reasoning := choice.Delta.Reasoning; reasoning != nil && *reasoning != "" {
		events = append(events, ai.StreamEvent{
			Type:      ai.StreamEventReasoning,
			Reasoning: *reasoning,
		})
	}

	for _, part := range choice.Delta.ToolCalls {
		events = append(events, ai.StreamEvent{
			Type: ai.StreamEventToolCall,
			ToolCall: &ai.ToolCallDelta{
				Index:     part.Index,
				ID:        part.ID,
				Name:      part.Function.Name,
				Arguments: part.Function.Arguments,
			},
		})
	}

	if reason := choice.FinishReason; reason != nil && *reason != "" {
		events = append(events, ai.StreamEvent{
			Type:         ai.StreamEventDone,
			FinishReason: *reason,
		})
	}

	return events
}
