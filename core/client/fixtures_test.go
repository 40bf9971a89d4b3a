package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/observability"
)

// Shared test doubles for the client package. Provider and tool fakes are
// scripted through function fields so each test controls exactly what the
// "LLM" answers, and the spy observer counts every telemetry call so tests can
// assert on the precise spans, logs, and metrics a code path produced.

// fakeProvider implements ai.Provider. When send is nil it answers with a
// fixed canned reply.
type fakeProvider struct {
	send func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error)
}

func (f *fakeProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if f.send != nil {
		return f.send(ctx, request)
	}

	return &ai.ChatResponse{
		ID:           "resp-1",
		Model:        "fake-model",
		Content:      "canned reply",
		FinishReason: "stop",
		Usage: &ai.Usage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
	}, nil
}

func (f *fakeProvider) IsStopMessage(response *ai.ChatResponse) bool {
	return response.FinishReason == "stop"
}

func (f *fakeProvider) WithAPIKey(string) ai.Provider           { return f }
func (f *fakeProvider) WithBaseURL(string) ai.Provider          { return f }
func (f *fakeProvider) WithHttpClient(*http.Client) ai.Provider { return f }

// fakeStreamProvider adds ai.StreamProvider on top of fakeProvider. When
// stream is nil it wraps the canned reply in a single-event stream.
type fakeStreamProvider struct {
	fakeProvider
	stream func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error)
}

func (f *fakeStreamProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	if f.stream != nil {
		return f.stream(ctx, request)
	}

	return ai.NewSingleEventStream(&ai.ChatResponse{Content: "canned stream reply", FinishReason: "stop"}), nil
}

// fakeTool counts its own executions and always succeeds.
type fakeTool struct {
	name        string
	description string
	calls       int
}

func (f *fakeTool) ToolInfo() ai.ToolDescription {
	return ai.ToolDescription{Name: f.name, Description: f.description}
}

func (f *fakeTool) Call(_ context.Context, _ string) (string, error) {
	f.calls++
	return `{"result": "success"}`, nil
}

func (f *fakeTool) IsExecutable() bool { return true }

// failingMemory is a memory.Provider whose AllMessages always fails, for
// exercising the history-load error paths.
type failingMemory struct {
	err error
}

func (f *failingMemory) AppendMessage(_ context.Context, _ *ai.Message) {}

func (f *failingMemory) AllMessages(_ context.Context) ([]ai.Message, error) {
	return nil, f.err
}

func (f *failingMemory) LastMessages(_ context.Context, _ int) ([]ai.Message, error) {
	return nil, nil
}

func (f *failingMemory) PopLastMessage(_ context.Context) (*ai.Message, error) {
	return nil, nil
}

func (f *failingMemory) Count(_ context.Context) (int, error) { return 0, nil }

func (f *failingMemory) ClearMessages(_ context.Context) {}

func (f *failingMemory) FilterByRole(_ context.Context, _ ai.MessageRole) ([]ai.Message, error) {
	return nil, nil
}

// spyObserver implements observability.Provider and records every call. The
// zero value is usable.
type spyObserver struct {
	spansStarted int
	spansEnded   int
	debugs       int
	warns        int
	infos        []string
	errors       []string
	counters     map[string]int64
	histograms   int
}

func (o *spyObserver) StartSpan(ctx context.Context, _ string, _ ...observability.Attribute) (context.Context, observability.Span) {
	o.spansStarted++
	return ctx, &spySpan{owner: o}
}

func (o *spyObserver) Counter(name string) observability.Counter {
	return &spyCounter{owner: o, name: name}
}

func (o *spyObserver) Histogram(_ string) observability.Histogram {
	return &spyHistogram{owner: o}
}

func (o *spyObserver) Trace(_ context.Context, _ string, _ ...observability.Attribute) {}

func (o *spyObserver) Debug(_ context.Context, _ string, _ ...observability.Attribute) {
	o.debugs++
}

func (o *spyObserver) Info(_ context.Context, msg string, _ ...observability.Attribute) {
	o.infos = append(o.infos, msg)
}

func (o *spyObserver) Warn(_ context.Context, _ string, _ ...observability.Attribute) {
	o.warns++
}

func (o *spyObserver) Error(_ context.Context, msg string, _ ...observability.Attribute) {
	o.errors = append(o.errors, msg)
}

// sawMetrics reports whether any counter or histogram was touched.
func (o *spyObserver) sawMetrics() bool {
	return o.histograms > 0 || len(o.counters) > 0
}

type spySpan struct {
	owner  *spyObserver
	status observability.StatusCode
}

func (s *spySpan) End() { s.owner.spansEnded++ }

func (s *spySpan) SetAttributes(_ ...observability.Attribute) {}

func (s *spySpan) SetStatus(code observability.StatusCode, _ string) { s.status = code }

func (s *spySpan) RecordError(_ error) {}

func (s *spySpan) AddEvent(_ string, _ ...observability.Attribute) {}

type spyCounter struct {
	owner *spyObserver
	name  string
}

func (c *spyCounter) Add(_ context.Context, value int64, _ ...observability.Attribute) {
	if c.owner.counters == nil {
		c.owner.counters = make(map[string]int64)
	}

	c.owner.counters[c.name] += value
}

type spyHistogram struct {
	owner *spyObserver
}

func (h *spyHistogram) Record(_ context.Context, _ float64, _ ...observability.Attribute) {
	h.owner.histograms++
}

// eventStream builds a ChatStream that replays the given events in order.
func eventStream(events ...ai.StreamEvent) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, event := range events {
			if !yield(event, nil) {
				return
			}
		}
	})
}

// textStream builds a ChatStream yielding a single content event followed by a
// done event.
func textStream(content string) *ai.ChatStream {
	return eventStream(
		ai.StreamEvent{Type: ai.StreamEventContent, Content: content},
		ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: "stop"},
	)
}

// drainEvents consumes a stream to the end and returns every event, failing
// the test on any mid-stream error.
func drainEvents(t *testing.T, stream *ai.ChatStream) []ai.StreamEvent {
	t.Helper()

	var events []ai.StreamEvent

	for event, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}

		events = append(events, event)
	}

	return events
}
