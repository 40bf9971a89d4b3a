package anthropic

import (
	"context"
	"fmt"

	"github.com/parley-ai/parley/internal/sse"
	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/observability"
)

// StreamMessage implements [ai.StreamProvider] for the Messages API. The
// request goes out with stream=true and the returned [ai.ChatStream] yields
// events as the SSE session unfolds.
//
// Errors before the stream opens (missing key, failed request, non-2xx
// status) return immediately; errors after it opens (a server "error" event,
// an unparseable payload) surface through the iterator so partial output is
// not lost.
func (provider *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	traceRequestStart(ctx, provider, request, true)

	if provider.apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	anthropicReq, err := requestToAnthropic(request, provider.capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to build Anthropic request: %w", err)
	}
	anthropicReq.Stream = true

	// The empty apiKey argument keeps DoPostStream from injecting a Bearer
	// token; authentication rides in the x-api-key header instead.
	streamURL := provider.baseURL + messagesEndpoint
	httpResponse, err := utils.DoPostStream(ctx, provider.client, streamURL, "", anthropicReq, provider.requestHeaders()...)
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

		var state streamState

		for sseEvent, sseErr := range sseStream.Events() {
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			event, parseErr := streamEventFromData(sseEvent.Data)
			if parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse stream event: %w", parseErr))
				return
			}

			events, done, eventErr := state.apply(eventTypeOf(sseEvent.Event, event), event)
			if eventErr != nil {
				yield(ai.StreamEvent{}, eventErr)
				return
			}

			for _, streamEvent := range events {
				if !yield(streamEvent, nil) {
					return
				}
			}

			if done {
				return
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

// streamState accumulates what one SSE session spreads across events: the
// index handed out to tool call fragments, token counters split between
// message_start and message_delta, and the stop reason reported ahead of the
// terminal event.
type streamState struct {
	toolIndex     int
	inputTokens   int
	outputTokens  int
	cacheCreation int
	cacheRead     int
	stopReason    string
}

// apply folds one parsed event into the state and returns the stream events
// to surface. done marks the terminal message_stop; err carries a mid-stream
// server failure. content_block_stop, ping, and unknown event kinds fall
// through untouched so future additions cannot break the session.
func (s *streamState) apply(name string, event *anthropicStreamEvent) (events []ai.StreamEvent, done bool, err error) {
	switch name {
	case "message_start":
		// Initial usage snapshot: the input and cache counters arrive here,
		// output is always zero. Nothing surfaces until message_delta has the
		// other half.
		if event.Message != nil {
			s.inputTokens = event.Message.Usage.InputTokens
			s.cacheCreation = event.Message.Usage.CacheCreationInputTokens
			s.cacheRead = event.Message.Usage.CacheReadInputTokens
		}

	case "content_block_start":
		// Only a tool_use opening produces an event: the call ID and name
		// appear here and never on the argument fragments that follow.
		if block := event.ContentBlock; block != nil && block.Type == "tool_use" {
			events = append(events, ai.StreamEvent{
				Type: ai.StreamEventToolCall,
				ToolCall: &ai.ToolCallDelta{
					Index: s.toolIndex,
					ID:    block.ID,
					Name:  block.Name,
				},
			})
			s.toolIndex++
		}

	case "content_block_delta":
		events = s.deltaEvents(event.Delta)

	case "message_delta":
		// The output token count and stop reason arrive here. Emit the
		// consolidated usage immediately so consumers always see usage
		// before the done event.
		if event.Usage != nil {
			s.outputTokens = event.Usage.OutputTokens
		}
		if event.Delta != nil && event.Delta.StopReason != "" {
			s.stopReason = event.Delta.StopReason
		}
		events = append(events, ai.StreamEvent{
			Type:  ai.StreamEventUsage,
			Usage: s.usageTotals(),
		})

	case "message_stop":
		events = append(events, ai.StreamEvent{
			Type:         ai.StreamEventDone,
			FinishReason: finishReasonFrom(s.stopReason),
		})
		done = true

	case "error":
		message := "unknown stream error"
		if event.Error != nil {
			message = event.Error.Message
		}
		err = fmt.Errorf("anthropic stream error: %s", message)
	}

	return events, done, err
}

// deltaEvents maps one content_block_delta onto a stream event. Empty
// fragments produce nothing.
func (s *streamState) deltaEvents(delta *streamDelta) []ai.StreamEvent {
	if delta == nil {
		return nil
	}

	switch delta.Type {
	case "text_delta":
		if delta.Text != "" {
			return []ai.StreamEvent{{Type: ai.StreamEventContent, Content: delta.Text}}
		}

	case "thinking_delta":
		if delta.Thinking != "" {
			return []ai.StreamEvent{{Type: ai.StreamEventReasoning, Reasoning: delta.Thinking}}
		}

	case "input_json_delta":
		// Argument fragments belong to the most recently opened tool block,
		// whose index was handed out on content_block_start.
		if delta.PartialJSON != "" {
			return []ai.StreamEvent{{
				Type: ai.StreamEventToolCall,
				ToolCall: &ai.ToolCallDelta{
					Index:     s.toolIndex - 1,
					Arguments: delta.PartialJSON,
				},
			}}
		}
	}

	return nil
}

// usageTotals assembles the aggregated counters into the generic usage shape.
func (s *streamState) usageTotals() *ai.Usage {
	return &ai.Usage{
		PromptTokens:     s.inputTokens,
		CompletionTokens: s.outputTokens,
		TotalTokens:      s.inputTokens + s.outputTokens,
		CachedTokens:     s.cacheCreation + s.cacheRead,
	}
}
