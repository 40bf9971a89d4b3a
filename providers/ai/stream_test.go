package ai

import (
	"errors"
	"slices"
	"testing"
)

// replay builds a ChatStream that yields the given events in order with no
// error.
func replay(events ...StreamEvent) *ChatStream {
	return NewChatStream(func(yield func(StreamEvent, error) bool) {
		for _, event := range events {
			if !yield(event, nil) {
				return
			}
		}
	})
}

// drain consumes the stream, failing the test on any mid-stream error, and
// returns every event seen.
func drain(t *testing.T, stream *ChatStream) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for event, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func eventTypes(events []StreamEvent) []StreamEventType {
	types := make([]StreamEventType, len(events))
	for i, event := range events {
		types[i] = event.Type
	}
	return types
}

func TestSingleEventStream(t *testing.T) {
	t.Run("content then done", func(t *testing.T) {
		events := drain(t, NewSingleEventStream(&ChatResponse{Content: "hello world", FinishReason: "stop"}))

		want := []StreamEventType{StreamEventContent, StreamEventDone}
		if !slices.Equal(eventTypes(events), want) {
			t.Fatalf("event types = %v, want %v", eventTypes(events), want)
		}
		if events[0].Content != "hello world" {
			t.Errorf("content = %q, want %q", events[0].Content, "hello world")
		}
		if events[1].FinishReason != "stop" {
			t.Errorf("finish reason = %q, want stop", events[1].FinishReason)
		}
	})

	t.Run("reasoning replays before done", func(t *testing.T) {
		events := drain(t, NewSingleEventStream(&ChatResponse{Reasoning: "let me think"}))

		want := []StreamEventType{StreamEventReasoning, StreamEventDone}
		if !slices.Equal(eventTypes(events), want) {
			t.Fatalf("event types = %v, want %v", eventTypes(events), want)
		}
		if events[0].Reasoning != "let me think" {
			t.Errorf("reasoning = %q, want %q", events[0].Reasoning, "let me think")
		}
	})

	t.Run("each tool call becomes one complete delta", func(t *testing.T) {
		events := drain(t, NewSingleEventStream(&ChatResponse{
			ToolCalls: []ToolCall{
				{ID: "call_1", Function: ToolCallFunction{Name: "search", Arguments: `{"q":"go"}`}},
				{ID: "call_2", Function: ToolCallFunction{Name: "calc", Arguments: `{"a":1}`}},
			},
		}))

		var deltas []*ToolCallDelta
		for _, event := range events {
			if event.Type == StreamEventToolCall {
				deltas = append(deltas, event.ToolCall)
			}
		}
		if len(deltas) != 2 {
			t.Fatalf("tool call events = %d, want 2", len(deltas))
		}
		if deltas[0].Index != 0 || deltas[0].ID != "call_1" || deltas[0].Arguments != `{"q":"go"}` {
			t.Errorf("first delta = %+v", deltas[0])
		}
		if deltas[1].Index != 1 || deltas[1].Name != "calc" {
			t.Errorf("second delta = %+v", deltas[1])
		}
	})

	t.Run("usage replays before done", func(t *testing.T) {
		usage := &Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
		events := drain(t, NewSingleEventStream(&ChatResponse{Usage: usage}))

		want := []StreamEventType{StreamEventUsage, StreamEventDone}
		if !slices.Equal(eventTypes(events), want) {
			t.Fatalf("event types = %v, want %v", eventTypes(events), want)
		}
		if events[0].Usage.TotalTokens != 30 {
			t.Errorf("total tokens = %d, want 30", events[0].Usage.TotalTokens)
		}
	})

	t.Run("empty response yields done alone", func(t *testing.T) {
		events := drain(t, NewSingleEventStream(&ChatResponse{}))

		if len(events) != 1 || events[0].Type != StreamEventDone {
			t.Fatalf("events = %v, want a single done event", events)
		}
	})

	t.Run("breaking stops the replay", func(t *testing.T) {
		stream := NewSingleEventStream(&ChatResponse{Content: "hello", FinishReason: "stop"})

		seen := 0
		for _, err := range stream.Iter() {
			if err != nil {
				t.Fatalf("unexpected stream error: %v", err)
			}
			seen++
			break
		}
		if seen != 1 {
			t.Errorf("observed %d events before break, want 1", seen)
		}
	})
}

func TestCollect(t *testing.T) {
	t.Run("concatenates content in arrival order", func(t *testing.T) {
		response, err := replay(
			StreamEvent{Type: StreamEventContent, Content: "Hello, "},
			StreamEvent{Type: StreamEventContent, Content: "world!"},
			StreamEvent{Type: StreamEventDone, FinishReason: "stop"},
		).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if response.Content != "Hello, world!" {
			t.Errorf("content = %q, want %q", response.Content, "Hello, world!")
		}
		if response.FinishReason != "stop" {
			t.Errorf("finish reason = %q, want stop", response.FinishReason)
		}
	})

	t.Run("concatenates reasoning", func(t *testing.T) {
		response, err := replay(
			StreamEvent{Type: StreamEventReasoning, Reasoning: "step 1 "},
			StreamEvent{Type: StreamEventReasoning, Reasoning: "step 2"},
			StreamEvent{Type: StreamEventDone},
		).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if response.Reasoning != "step 1 step 2" {
			t.Errorf("reasoning = %q, want %q", response.Reasoning, "step 1 step 2")
		}
	})

	t.Run("assembles tool call fragments", func(t *testing.T) {
		response, err := replay(
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 0, ID: "call_1", Name: "search"}},
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 0, Arguments: `{"q":`}},
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 0, Arguments: `"go"}`}},
			StreamEvent{Type: StreamEventDone},
		).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(response.ToolCalls) != 1 {
			t.Fatalf("tool calls = %d, want 1", len(response.ToolCalls))
		}
		call := response.ToolCalls[0]
		if call.ID != "call_1" || call.Function.Name != "search" {
			t.Errorf("call = %+v", call)
		}
		if call.Function.Arguments != `{"q":"go"}` {
			t.Errorf("arguments = %q, want %q", call.Function.Arguments, `{"q":"go"}`)
		}
	})

	t.Run("interleaved indices become separate calls", func(t *testing.T) {
		response, err := replay(
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 0, ID: "a", Name: "toolA"}},
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 1, ID: "b", Name: "toolB"}},
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 0, Arguments: `{}`}},
			StreamEvent{Type: StreamEventToolCall, ToolCall: &ToolCallDelta{Index: 1, Arguments: `{}`}},
			StreamEvent{Type: StreamEventDone},
		).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if len(response.ToolCalls) != 2 {
			t.Fatalf("tool calls = %d, want 2", len(response.ToolCalls))
		}
		if response.ToolCalls[0].Function.Name != "toolA" || response.ToolCalls[1].Function.Name != "toolB" {
			t.Errorf("calls = %+v", response.ToolCalls)
		}
	})

	t.Run("keeps usage from the stream", func(t *testing.T) {
		response, err := replay(
			StreamEvent{Type: StreamEventContent, Content: "hi"},
			StreamEvent{Type: StreamEventUsage, Usage: &Usage{PromptTokens: 5, CompletionTokens: 10, TotalTokens: 15}},
			StreamEvent{Type: StreamEventDone},
		).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if response.Usage == nil || response.Usage.TotalTokens != 15 {
			t.Errorf("usage = %+v, want TotalTokens 15", response.Usage)
		}
	})

	t.Run("mid-stream error returns the partial response", func(t *testing.T) {
		sentinel := errors.New("network interrupted")
		stream := NewChatStream(func(yield func(StreamEvent, error) bool) {
			if !yield(StreamEvent{Type: StreamEventContent, Content: "partial "}, nil) {
				return
			}
			yield(StreamEvent{}, sentinel)
		})

		response, err := stream.Collect()
		if !errors.Is(err, sentinel) {
			t.Errorf("err = %v, want the sentinel", err)
		}
		if response.Content != "partial " {
			t.Errorf("content = %q, want the part collected before the error", response.Content)
		}
	})

	t.Run("error event alone is informational", func(t *testing.T) {
		response, err := replay(
			StreamEvent{Type: StreamEventContent, Content: "before"},
			StreamEvent{Type: StreamEventError, Error: "upstream hiccup"},
			StreamEvent{Type: StreamEventContent, Content: " after"},
			StreamEvent{Type: StreamEventDone, FinishReason: "stop"},
		).Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if response.Content != "before after" {
			t.Errorf("content = %q, want %q", response.Content, "before after")
		}
	})

	t.Run("empty stream yields a zero response", func(t *testing.T) {
		response, err := replay().Collect()
		if err != nil {
			t.Fatalf("Collect failed: %v", err)
		}
		if response.Content != "" || response.ToolCalls != nil {
			t.Errorf("response = %+v, want zero value", response)
		}
	})
}

func TestMergeToolCallDelta(t *testing.T) {
	t.Run("grows to cover a sparse index", func(t *testing.T) {
		var partials []partialToolCall

		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 0, ID: "id1", Name: "fn1"})
		if len(partials) != 1 {
			t.Fatalf("partials = %d, want 1", len(partials))
		}

		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 2, ID: "id3", Name: "fn3"})
		if len(partials) != 3 {
			t.Fatalf("partials = %d after index 2, want 3", len(partials))
		}
	})

	t.Run("argument fragments concatenate", func(t *testing.T) {
		var partials []partialToolCall
		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 0, ID: "id1", Name: "fn1", Arguments: `{"x`})
		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 0, Arguments: `":1}`})

		if got := partials[0].arguments.String(); got != `{"x":1}` {
			t.Errorf("arguments = %q, want %q", got, `{"x":1}`)
		}
	})

	t.Run("empty fields never overwrite earlier fragments", func(t *testing.T) {
		var partials []partialToolCall
		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 0, ID: "id1", Name: "fn1"})
		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 0, Arguments: `{}`})

		if partials[0].id != "id1" || partials[0].name != "fn1" {
			t.Errorf("partial = id %q name %q, want id1/fn1", partials[0].id, partials[0].name)
		}
	})

	t.Run("finalize yields a function call", func(t *testing.T) {
		var partials []partialToolCall
		partials = mergeToolCallDelta(partials, &ToolCallDelta{Index: 0, ID: "id1", Name: "fn1", Arguments: `{"a":2}`})

		call := partials[0].finalize()
		if call.Type != "function" {
			t.Errorf("type = %q, want function", call.Type)
		}
		if call.ID != "id1" || call.Function.Name != "fn1" || call.Function.Arguments != `{"a":2}` {
			t.Errorf("finalized call = %+v", call)
		}
	})
}
