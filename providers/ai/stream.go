package ai

import (
	"iter"
	"strings"
)

// StreamEventType discriminates StreamEvent payloads.
type StreamEventType string

// Stream event kinds. Content, Reasoning and ToolCall carry incremental
// deltas. Usage arrives at most once, typically near the end, Done closes a
// stream that finished normally, and Error mirrors a terminating failure for
// consumers that log events (the authoritative error travels through the
// iterator's error value).
const (
	StreamEventContent   StreamEventType = "content"
	StreamEventToolCall  StreamEventType = "tool_call"
	StreamEventReasoning StreamEventType = "reasoning"
	StreamEventUsage     StreamEventType = "usage"
	StreamEventDone      StreamEventType = "done"
	StreamEventError     StreamEventType = "error"
)

// ToolCallDelta is an incremental update to one streamed tool call. Index
// says which call the fragment belongs to, since providers may interleave
// several. ID and Name arrive on the first fragment for an index; later
// fragments only extend Arguments with more JSON text.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamEvent is one delta yielded while streaming a model response. Type
// says which payload field is populated; the rest stay zero. FinishReason
// accompanies StreamEventDone.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Content      string          `json:"content,omitempty"`
	Reasoning    string          `json:"reasoning,omitempty"`
	ToolCall     *ToolCallDelta  `json:"tool_call,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ChatStream wraps a streaming iterator and knows how to fold deltas back into
// a complete ChatResponse. Consumers can range over Iter for token-by-token
// processing or call Collect when only the final response matters.
//
// A ChatStream must be consumed: iterate Iter (breaking early is fine) or call
// Collect. The producing provider may keep resources open (an HTTP response
// body, typically) that are released only when the iterator runs to completion
// or observes the consumer's break. A stream that is constructed and never
// iterated leaks them.
type ChatStream struct {
	iterator iter.Seq2[StreamEvent, error]
}

// NewChatStream creates a ChatStream from a raw streaming iterator. The
// iterator yields StreamEvent values with a nil error for normal deltas and a
// non-nil error for a mid-stream failure. See the ChatStream documentation for
// the consumption requirement.
func NewChatStream(iterator iter.Seq2[StreamEvent, error]) *ChatStream {
	return &ChatStream{iterator: iterator}
}

// NewSingleEventStream adapts a synchronous ChatResponse into stream form: its
// content, reasoning, tool calls, and usage are replayed as individual events
// followed by a done event. Used as the fallback when a provider has no native
// streaming support.
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	events := make([]StreamEvent, 0, len(response.ToolCalls)+4)

	if response.Content != "" {
		events = append(events, StreamEvent{Type: StreamEventContent, Content: response.Content})
	}

	if response.Reasoning != "" {
		events = append(events, StreamEvent{Type: StreamEventReasoning, Reasoning: response.Reasoning})
	}

	for callIndex, toolCall := range response.ToolCalls {
		events = append(events, StreamEvent{
			Type: StreamEventToolCall,
			ToolCall: &ToolCallDelta{
				Index:     callIndex,
				ID:        toolCall.ID,
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			},
		})
	}

	if response.Usage != nil {
		events = append(events, StreamEvent{Type: StreamEventUsage, Usage: response.Usage})
	}

	events = append(events, StreamEvent{Type: StreamEventDone, FinishReason: response.FinishReason})

	return NewChatStream(func(yield func(StreamEvent, error) bool) {
		for _, event := range events {
			if !yield(event, nil) {
				return
			}
		}
	})
}

// Iter exposes the stream as a range-over-func iterator. Each step yields the
// next delta or the error that ended the stream.
func (stream *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Collect drains the stream and returns the accumulated ChatResponse: content
// and reasoning deltas concatenated, tool call fragments assembled per index,
// the last usage event kept. A mid-stream error stops collection; the partial
// response built so far is returned together with that error.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	accumulated := &ChatResponse{}
	var partials []partialToolCall

	for event, err := range stream.iterator {
		if err != nil {
			return accumulated, err
		}

		switch event.Type {
		case StreamEventContent:
			accumulated.Content += event.Content

		case StreamEventReasoning:
			accumulated.Reasoning += event.Reasoning

		case StreamEventToolCall:
			if event.ToolCall != nil {
				partials = mergeToolCallDelta(partials, event.ToolCall)
			}

		case StreamEventUsage:
			if event.Usage != nil {
				accumulated.Usage = event.Usage
			}

		case StreamEventDone:
			accumulated.FinishReason = event.FinishReason

		case StreamEventError:
			// Informational only; the terminating error arrives through the
			// iterator's error value.
		}
	}

	for i := range partials {
		accumulated.ToolCalls = append(accumulated.ToolCalls, partials[i].finalize())
	}

	return accumulated, nil
}

// partialToolCall assembles the fragments of one streamed tool call.
type partialToolCall struct {
	id        string
	name      string
	arguments strings.Builder
}

func (p *partialToolCall) applyDelta(delta *ToolCallDelta) {
	if delta.ID != "" {
		p.id = delta.ID
	}
	if delta.Name != "" {
		p.name = delta.Name
	}
	if delta.Arguments != "" {
		p.arguments.WriteString(delta.Arguments)
	}
}

func (p *partialToolCall) finalize() ToolCall {
	return ToolCall{
		ID:   p.id,
		Type: "function",
		Function: ToolCallFunction{
			Name:      p.name,
			Arguments: p.arguments.String(),
		},
	}
}

// mergeToolCallDelta routes a delta to the partial at its index, growing the
// slice when a new index appears. Indices may arrive sparsely; intermediate
// slots start empty and fill as their fragments come in.
func mergeToolCallDelta(partials []partialToolCall, delta *ToolCallDelta) []partialToolCall {
	for len(partials) <= delta.Index {
		partials = append(partials, partialToolCall{})
	}

	partials[delta.Index].applyDelta(delta)

	return partials
}
