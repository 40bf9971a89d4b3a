package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parley-ai/parley/providers/ai"
)

// serveMessage wires a provider to a test server that answers every call
// with the given canned response.
func serveMessage(t *testing.T, canned anthropicResponse) *AnthropicProvider {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(canned); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	return New().WithAPIKey("test-key").WithBaseURL(server.URL).(*AnthropicProvider)
}

func TestNew_EnvironmentDefaults(t *testing.T) {
	t.Run("empty environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("ANTHROPIC_API_BASE_URL", "")

		provider := New()
		if provider == nil {
			t.Fatal("New returned nil")
		}
		if provider.apiKey != "" {
			t.Errorf("apiKey = %q, want empty", provider.apiKey)
		}
		if provider.baseURL != defaultBaseURL {
			t.Errorf("baseURL = %q, want %q", provider.baseURL, defaultBaseURL)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "env-key")
		t.Setenv("ANTHROPIC_API_BASE_URL", "https://proxy.internal/v1")

		provider := New()
		if provider.apiKey != "env-key" {
			t.Errorf("apiKey = %q, want %q", provider.apiKey, "env-key")
		}
		if provider.baseURL != "https://proxy.internal/v1" {
			t.Errorf("baseURL = %q, want the env value", provider.baseURL)
		}
	})
}

func TestBuilder_Overrides(t *testing.T) {
	t.Run("api key", func(t *testing.T) {
		provider := New().WithAPIKey("test-api-key").(*AnthropicProvider)
		if provider.apiKey != "test-api-key" {
			t.Errorf("apiKey = %q, want %q", provider.apiKey, "test-api-key")
		}
	})

	t.Run("base url", func(t *testing.T) {
		provider := New().WithBaseURL("https://custom.anthropic.com").(*AnthropicProvider)
		if provider.baseURL != "https://custom.anthropic.com" {
			t.Errorf("baseURL = %q, want the override", provider.baseURL)
		}
	})

	t.Run("http client", func(t *testing.T) {
		custom := &http.Client{}
		provider := New().WithHttpClient(custom).(*AnthropicProvider)
		if provider.client != custom {
			t.Error("client was not replaced")
		}
	})

	t.Run("capabilities round-trip", func(t *testing.T) {
		caps := Capabilities{
			ExtendedThinking: true,
			PromptCaching:    true,
			Effort:           "high",
		}
		got := New().WithCapabilities(caps).GetCapabilities()

		if !got.ExtendedThinking || !got.PromptCaching {
			t.Errorf("capabilities = %+v, want flags preserved", got)
		}
		if got.Effort != "high" {
			t.Errorf("Effort = %q, want %q", got.Effort, "high")
		}
	})

	t.Run("satisfies the provider interface", func(t *testing.T) {
		var _ ai.Provider = New()
	})
}

// TestSendMessage_WireFormat pins the request side of the exchange: the
// Messages API authenticates via x-api-key rather than a Bearer token, and
// requires both an anthropic-version header and a max_tokens field.
func TestSendMessage_WireFormat(t *testing.T) {
	var (
		method  string
		headers http.Header
		body    anthropicRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(anthropicResponse{
			ID:         "msg_test123",
			Type:       "message",
			Role:       "assistant",
			Content:    []responseContentBlock{{Type: "text", Text: "Hello! How can I help?"}},
			Model:      "claude-sonnet-4-20250514",
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 10, OutputTokens: 8},
		}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	defer server.Close()

	provider := New().WithAPIKey("test-key").WithBaseURL(server.URL).(*AnthropicProvider)
	response, err := provider.SendMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hello"}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if method != http.MethodPost {
		t.Errorf("method = %q, want POST", method)
	}
	if got := headers.Get("x-api-key"); got != "test-key" {
		t.Errorf("x-api-key = %q, want %q", got, "test-key")
	}
	if got := headers.Get("anthropic-version"); got != anthropicVersion {
		t.Errorf("anthropic-version = %q, want %q", got, anthropicVersion)
	}
	if got := headers.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want no Bearer auth on this API", got)
	}

	if len(body.Messages) != 1 {
		t.Fatalf("request carried %d messages, want 1", len(body.Messages))
	}
	if body.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want the %d default", body.MaxTokens, defaultMaxTokens)
	}

	if response.Content != "Hello! How can I help?" {
		t.Errorf("Content = %q, want the decoded text", response.Content)
	}
	if response.FinishReason != ai.FinishReasonStop {
		t.Errorf("FinishReason = %q, want %q", response.FinishReason, ai.FinishReasonStop)
	}
	if response.Usage == nil || response.Usage.PromptTokens != 10 || response.Usage.CompletionTokens != 8 {
		t.Errorf("Usage = %+v, want 10/8 tokens", response.Usage)
	}
}

func TestSendMessage_ResponseMapping(t *testing.T) {
	t.Run("tool use", func(t *testing.T) {
		provider := serveMessage(t, anthropicResponse{
			ID:   "msg_tooltest",
			Type: "message",
			Role: "assistant",
			Content: []responseContentBlock{{
				Type:  "tool_use",
				ID:    "call_1",
				Name:  "get_weather",
				Input: json.RawMessage(`{"city":"London"}`),
			}},
			Model:      "claude-sonnet-4-20250514",
			StopReason: "tool_use",
			Usage:      anthropicUsage{InputTokens: 20, OutputTokens: 15},
		})

		response, err := provider.SendMessage(context.Background(), ai.ChatRequest{
			Model:    "claude-sonnet-4-20250514",
			Messages: []ai.Message{{Role: ai.RoleUser, Content: "What is the weather in London?"}},
		})
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}

		if len(response.ToolCalls) != 1 {
			t.Fatalf("len(ToolCalls) = %d, want 1", len(response.ToolCalls))
		}
		call := response.ToolCalls[0]
		if call.ID != "call_1" || call.Function.Name != "get_weather" {
			t.Errorf("call = %+v, want id and name from the block", call)
		}
		if call.Function.Arguments != `{"city":"London"}` {
			t.Errorf("Arguments = %q, want the raw input", call.Function.Arguments)
		}
		if response.FinishReason != ai.FinishReasonToolCalls {
			t.Errorf("FinishReason = %q, want %q", response.FinishReason, ai.FinishReasonToolCalls)
		}
	})

	t.Run("thinking", func(t *testing.T) {
		provider := serveMessage(t, anthropicResponse{
			ID:   "msg_thinking",
			Type: "message",
			Role: "assistant",
			Content: []responseContentBlock{
				{Type: "thinking", Thinking: "Let me think..."},
				{Type: "text", Text: "The answer is 42"},
			},
			Model:      "claude-sonnet-4-20250514",
			StopReason: "end_turn",
			Usage:      anthropicUsage{InputTokens: 30, OutputTokens: 25},
		})

		response, err := provider.SendMessage(context.Background(), ai.ChatRequest{
			Model:    "claude-sonnet-4-20250514",
			Messages: []ai.Message{{Role: ai.RoleUser, Content: "What is 6 times 7?"}},
		})
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}

		if response.Reasoning != "Let me think..." {
			t.Errorf("Reasoning = %q, want the thinking block", response.Reasoning)
		}
		if response.Content != "The answer is 42" {
			t.Errorf("Content = %q, want the text block", response.Content)
		}
	})
}

func TestSendMessage_Upstream429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Rate limit exceeded"}}`))
	}))
	defer server.Close()

	provider := New().WithAPIKey("test-key").WithBaseURL(server.URL).(*AnthropicProvider)
	_, err := provider.SendMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hello"}},
	})

	if err == nil {
		t.Fatal("expected an error for a 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want the status code surfaced", err)
	}
}

func TestSendMessage_MissingAPIKey(t *testing.T) {
	// Built directly so a key from the environment cannot leak in.
	provider := &AnthropicProvider{baseURL: defaultBaseURL, client: http.DefaultClient}

	_, err := provider.SendMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hello"}},
	})

	if err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY is not set") {
		t.Errorf("error = %v, want it to name ANTHROPIC_API_KEY", err)
	}
}

// capturedBetaHeader runs one request through a provider with the given
// capabilities and returns the anthropic-beta header the server saw.
func capturedBetaHeader(t *testing.T, capabilities Capabilities) string {
	t.Helper()

	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("anthropic-beta")
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(anthropicResponse{
			ID:         "msg_beta",
			Type:       "message",
			Role:       "assistant",
			Content:    []responseContentBlock{{Type: "text", Text: "OK"}},
			Model:      "claude-sonnet-4-20250514",
			StopReason: "end_turn",
		}); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	// WithCapabilities comes first in the chain: it returns the concrete type
	// while the other fluent methods return the interface.
	provider := New().
		WithCapabilities(capabilities).
		WithAPIKey("test-key").
		WithBaseURL(server.URL)

	if _, err := provider.SendMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4-20250514",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hello"}},
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	return header
}

func TestSendMessage_BetaHeader(t *testing.T) {
	t.Run("configured beta features are forwarded", func(t *testing.T) {
		header := capturedBetaHeader(t, Capabilities{BetaFeatures: []string{BetaCodeExecution}})
		if !strings.Contains(header, BetaCodeExecution) {
			t.Errorf("anthropic-beta = %q, want it to contain %q", header, BetaCodeExecution)
		}
	})

	t.Run("extended thinking implies the interleaved beta", func(t *testing.T) {
		header := capturedBetaHeader(t, Capabilities{ExtendedThinking: true})
		if !strings.Contains(header, BetaInterleavedThinking) {
			t.Errorf("anthropic-beta = %q, want it to contain %q", header, BetaInterleavedThinking)
		}
	})

	t.Run("absent without betas", func(t *testing.T) {
		if header := capturedBetaHeader(t, Capabilities{}); header != "" {
			t.Errorf("anthropic-beta = %q, want the header omitted", header)
		}
	})
}

func TestIsStopMessage(t *testing.T) {
	provider := New()

	cases := []struct {
		name    string
		message *ai.ChatResponse
		want    bool
	}{
		{"nil message", nil, true},
		{"finish reason stop", &ai.ChatResponse{Content: "Hello", FinishReason: "stop"}, true},
		{"finish reason length", &ai.ChatResponse{Content: "Truncated", FinishReason: "length"}, true},
		{"finish reason content_filter", &ai.ChatResponse{FinishReason: "content_filter"}, true},
		{
			// Tool calls always win, even against a stop finish reason, since
			// some backends report the wrong reason alongside calls.
			"tool calls beat a stop reason",
			&ai.ChatResponse{
				FinishReason: "stop",
				ToolCalls:    []ai.ToolCall{{ID: "call_1", Type: "function", Function: ai.ToolCallFunction{Name: "some_tool"}}},
			},
			false,
		},
		{"empty content", &ai.ChatResponse{}, true},
		{"content without finish reason keeps going", &ai.ChatResponse{Content: "Some content"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := provider.IsStopMessage(tc.message); got != tc.want {
				t.Errorf("IsStopMessage = %v, want %v", got, tc.want)
			}
		})
	}
}
