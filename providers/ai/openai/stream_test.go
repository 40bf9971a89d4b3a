package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
)

// writeSSE writes one SSE data line and flushes it out immediately.
func writeSSE(w http.ResponseWriter, data string) {
	fmt.Fprintf(w, "data: %s\n\n", data)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// chunkWith assembles a one-choice streaming chunk around the given delta.
// delta is raw JSON; pass finish as the bare reason or "" for null.
func chunkWith(delta, finish string) string {
	finishJSON := "null"
	if finish != "" {
		finishJSON = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`{"id":"chatcmpl-t","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[{"index":0,"delta":%s,"finish_reason":%s}]}`,
		delta, finishJSON)
}

// usageChunk assembles a choices-free chunk carrying only usage totals, the
// shape the endpoint sends last when include_usage is requested.
func usageChunk(prompt, completion int) string {
	return fmt.Sprintf(`{"id":"chatcmpl-t","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[],"usage":{"prompt_tokens":%d,"completion_tokens":%d,"total_tokens":%d}}`,
		prompt, completion, prompt+completion)
}

// scriptedStreamProvider starts a server that plays back the given payloads
// as SSE data lines followed by the [DONE] sentinel, and returns a provider
// pointed at it.
func scriptedStreamProvider(t *testing.T, payloads ...string) *OpenAIProvider {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, payload := range payloads {
			writeSSE(w, payload)
		}
		writeSSE(w, doneSentinel)
	}))
	t.Cleanup(server.Close)

	return New().WithAPIKey("test-key").WithBaseURL(server.URL).(*OpenAIProvider)
}

func TestStreamMessage_CollectsContent(t *testing.T) {
	provider := scriptedStreamProvider(t,
		chunkWith(`{"role":"assistant","content":"Hello"}`, ""),
		chunkWith(`{"content":" world"}`, ""),
		chunkWith(`{"content":"!"}`, ""),
		usageChunk(10, 3),
		chunkWith(`{}`, "stop"),
	)

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if response.Content != "Hello world!" {
		t.Errorf("Content = %q, want %q", response.Content, "Hello world!")
	}
	if response.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want %q", response.FinishReason, "stop")
	}
	if response.Usage == nil {
		t.Fatal("expected usage on the collected response")
	}
	if response.Usage.PromptTokens != 10 || response.Usage.CompletionTokens != 3 {
		t.Errorf("Usage = %+v, want 10 prompt / 3 completion tokens", response.Usage)
	}
}

func TestStreamMessage_AssemblesToolCallFragments(t *testing.T) {
	provider := scriptedStreamProvider(t,
		chunkWith(`{"role":"assistant","tool_calls":[{"index":0,"id":"call_abc123","type":"function","function":{"name":"get_weather","arguments":""}}]}`, ""),
		chunkWith(`{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}`, ""),
		chunkWith(`{"tool_calls":[{"index":0,"function":{"arguments":"\"London\"}"}}]}`, ""),
		chunkWith(`{}`, "tool_calls"),
	)

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "What's the weather?"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if len(response.ToolCalls) != 1 {
		t.Fatalf("expected 1 assembled tool call, got %d", len(response.ToolCalls))
	}

	call := response.ToolCalls[0]
	if call.ID != "call_abc123" {
		t.Errorf("ID = %q, want %q", call.ID, "call_abc123")
	}
	if call.Function.Name != "get_weather" {
		t.Errorf("Name = %q, want %q", call.Function.Name, "get_weather")
	}
	if call.Function.Arguments != `{"city":"London"}` {
		t.Errorf("Arguments = %q, want %q", call.Function.Arguments, `{"city":"London"}`)
	}
	if response.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q, want %q", response.FinishReason, "tool_calls")
	}
}

func TestStreamMessage_CollectsReasoning(t *testing.T) {
	provider := scriptedStreamProvider(t,
		chunkWith(`{"role":"assistant","reasoning":"step 1"}`, ""),
		chunkWith(`{"reasoning":", step 2"}`, ""),
		chunkWith(`{"content":"the answer"}`, ""),
		chunkWith(`{}`, "stop"),
	)

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "o1",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Why?"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if response.Reasoning != "step 1, step 2" {
		t.Errorf("Reasoning = %q, want %q", response.Reasoning, "step 1, step 2")
	}
	if response.Content != "the answer" {
		t.Errorf("Content = %q, want %q", response.Content, "the answer")
	}
}

// TestStreamMessage_MalformedChunk verifies that an unparseable SSE payload
// surfaces as an error from Collect while keeping the deltas received before
// it.
func TestStreamMessage_MalformedChunk(t *testing.T) {
	provider := scriptedStreamProvider(t,
		chunkWith(`{"role":"assistant","content":"Start"}`, ""),
		`{invalid json}`,
	)

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err == nil {
		t.Fatal("expected error from Collect, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse streaming chunk") {
		t.Errorf("expected a chunk parse error, got: %v", err)
	}
	if response.Content != "Start" {
		t.Errorf("partial Content = %q, want %q", response.Content, "Start")
	}
}

// TestStreamMessage_ContextCancellation verifies that cancelling the context
// mid-stream terminates the iteration with an error instead of hanging.
func TestStreamMessage_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		writeSSE(w, chunkWith(`{"role":"assistant","content":"Hello"}`, ""))

		// Hold the stream open until the client gives up.
		<-r.Context().Done()
	}))
	defer server.Close()

	provider := New().WithAPIKey("test-key").WithBaseURL(server.URL).(*OpenAIProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := provider.StreamMessage(ctx, ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	var events int
	var terminal error
	for event, iterErr := range stream.Iter() {
		if iterErr != nil {
			terminal = iterErr
			break
		}
		events++
		if event.Type == ai.StreamEventContent {
			cancel()
		}
	}

	if events == 0 {
		t.Error("expected at least one event before cancellation")
	}
	if terminal == nil {
		t.Error("expected the iteration to end with an error after cancel")
	}
}

func TestStreamMessage_RangeIteration(t *testing.T) {
	provider := scriptedStreamProvider(t,
		chunkWith(`{"role":"assistant","content":"A"}`, ""),
		chunkWith(`{"content":"B"}`, ""),
		chunkWith(`{"content":"C"}`, ""),
		chunkWith(`{}`, "stop"),
	)

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	var tokens []string
	var finishReason string
	for event, iterErr := range stream.Iter() {
		if iterErr != nil {
			t.Fatalf("unexpected error: %v", iterErr)
		}
		switch event.Type {
		case ai.StreamEventContent:
			tokens = append(tokens, event.Content)
		case ai.StreamEventDone:
			finishReason = event.FinishReason
		}
	}

	if got := strings.Join(tokens, ""); got != "ABC" || len(tokens) != 3 {
		t.Errorf("content tokens = %v, want three tokens spelling ABC", tokens)
	}
	if finishReason != "stop" {
		t.Errorf("finish reason = %q, want %q", finishReason, "stop")
	}
}

// TestStreamMessage_DoneOnly covers a stream that closes without producing
// any deltas: no events, no error, an empty collected response.
func TestStreamMessage_DoneOnly(t *testing.T) {
	provider := scriptedStreamProvider(t)

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.Content != "" || response.FinishReason != "" || len(response.ToolCalls) != 0 {
		t.Errorf("expected an empty response, got %+v", response)
	}
}

// TestStreamMessage_HTTPError verifies that a failing request is reported by
// StreamMessage itself, before any iterator exists.
func TestStreamMessage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API key"}}`)
	}))
	defer server.Close()

	provider := New().WithAPIKey("bad-key").WithBaseURL(server.URL).(*OpenAIProvider)

	_, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "gpt-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected the status code in the error, got: %v", err)
	}
}

func TestStreamMessage_MissingAPIKey(t *testing.T) {
	provider := &OpenAIProvider{baseURL: defaultBaseURL, client: http.DefaultClient}

	if _, err := provider.StreamMessage(context.Background(), ai.ChatRequest{}); err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
}

// TestDecodeStreamChunk pins the wire decoding of individual SSE payloads by
// comparing against fully constructed chunk values.
func TestDecodeStreamChunk(t *testing.T) {
	tests := []struct {
		name string
		data string
		want *chatCompletionStreamChunk
	}{
		{
			name: "content delta",
			data: `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"},"finish_reason":null}]}`,
			want: &chatCompletionStreamChunk{
				ID: "chatcmpl-1", Object: "chat.completion.chunk", Created: 1700000000, Model: "gpt-4",
				Choices: []streamChoice{{
					Delta: streamDelta{Role: "assistant", Content: utils.Ptr("Hello")},
				}},
			},
		},
		{
			name: "reasoning delta",
			data: `{"id":"chatcmpl-2","object":"chat.completion.chunk","created":1700000000,"model":"o1","choices":[{"index":0,"delta":{"reasoning":"step 1"},"finish_reason":null}]}`,
			want: &chatCompletionStreamChunk{
				ID: "chatcmpl-2", Object: "chat.completion.chunk", Created: 1700000000, Model: "o1",
				Choices: []streamChoice{{
					Delta: streamDelta{Reasoning: utils.Ptr("step 1")},
				}},
			},
		},
		{
			name: "tool call delta",
			data: `{"id":"chatcmpl-3","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"Calculator","arguments":""}}]},"finish_reason":null}]}`,
			want: &chatCompletionStreamChunk{
				ID: "chatcmpl-3", Object: "chat.completion.chunk", Created: 1700000000, Model: "gpt-4",
				Choices: []streamChoice{{
					Delta: streamDelta{ToolCalls: []streamToolCallPart{{
						ID:       "call_abc",
						Type:     "function",
						Function: streamFunctionPart{Name: "Calculator"},
					}}},
				}},
			},
		},
		{
			name: "usage-only final chunk",
			data: `{"id":"chatcmpl-4","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`,
			want: &chatCompletionStreamChunk{
				ID: "chatcmpl-4", Object: "chat.completion.chunk", Created: 1700000000, Model: "gpt-4",
				Choices: []streamChoice{},
				Usage:   &chatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			},
		},
		{
			name: "finish chunk keeps the empty content pointer",
			data: `{"id":"chatcmpl-5","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[{"index":0,"delta":{"content":""},"finish_reason":"stop"}]}`,
			want: &chatCompletionStreamChunk{
				ID: "chatcmpl-5", Object: "chat.completion.chunk", Created: 1700000000, Model: "gpt-4",
				Choices: []streamChoice{{
					Delta:        streamDelta{Content: utils.Ptr("")},
					FinishReason: utils.Ptr("stop"),
				}},
			},
		},
		{
			name: "empty object",
			data: `{}`,
			want: &chatCompletionStreamChunk{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := decodeStreamChunk(tt.data)
			if err != nil {
				t.Fatalf("decodeStreamChunk() error = %v", err)
			}
			if !reflect.DeepEqual(chunk, tt.want) {
				t.Errorf("decodeStreamChunk() = %+v, want %+v", chunk, tt.want)
			}
		})
	}
}

func TestDecodeStreamChunk_MalformedJSON(t *testing.T) {
	if _, err := decodeStreamChunk(`{"id": "broken", "choices": [`); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}
