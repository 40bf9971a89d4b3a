package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/observability"
)

const (
	// defaultBaseURL is the canonical base URL for the OpenAI API.
	defaultBaseURL = "https://api.openai.com/v1"

	// chatCompletionsEndpoint is the path for the Chat Completions API endpoint.
	// This is the only endpoint the adapter speaks; it is what OpenAI-compatible
	// hosts (Azure, Ollama, OpenRouter, vLLM, ...) implement.
	chatCompletionsEndpoint = "/chat/completions"
)

// OpenAIProvider implements [ai.Provider] for the OpenAI Chat Completions API
// and any endpoint that speaks the same wire format. Feature differences
// between hosts are modeled by [Capabilities], detected from the base URL and
// overridable via [OpenAIProvider.WithCapabilities]. Use [New] to construct a
// ready-to-use instance.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	capabilities Capabilities
}

// New returns an [OpenAIProvider] initialized from environment variables.
// It reads OPENAI_API_KEY for authentication and OPENAI_API_BASE_URL for the
// endpoint base (defaulting to https://api.openai.com/v1 when unset), then
// detects capabilities from the resulting URL. Use
// [OpenAIProvider.WithAPIKey] and [OpenAIProvider.WithBaseURL] to override
// these values after construction.
func New() *OpenAIProvider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      baseURL,
		client:       &http.Client{},
		capabilities: detectCapabilities(baseURL),
	}
}

// NewOpenAIProvider is an alias for [New], kept for callers that prefer the
// qualified constructor name.
func NewOpenAIProvider() *OpenAIProvider {
	return New()
}

// WithAPIKey sets the API key used for authenticating requests and returns the
// provider so calls can be chained. It overrides the value read from OPENAI_API_KEY.
func (provider *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	provider.apiKey = apiKey
	return provider
}

// WithBaseURL overrides the API base URL and returns the provider so calls can
// be chained. Capabilities are re-detected from the new URL; call
// [OpenAIProvider.WithCapabilities] afterwards to pin them explicitly.
func (provider *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	provider.baseURL = baseURL
	provider.capabilities = detectCapabilities(baseURL)
	return provider
}

// WithHttpClient replaces the default [http.Client] used for API calls and
// returns the provider so calls can be chained. Useful for injecting custom
// timeouts, transport layers, or test doubles.
func (provider *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	provider.client = httpClient
	return provider
}

// WithCapabilities replaces the current [Capabilities] with a caller-supplied
// value and returns *OpenAIProvider (not ai.Provider) so the Capabilities
// type remains accessible without an interface cast.
func (provider *OpenAIProvider) WithCapabilities(capabilities Capabilities) *OpenAIProvider {
	provider.capabilities = capabilities
	return provider
}

// GetCapabilities returns the [Capabilities] currently in effect for this provider.
func (provider *OpenAIProvider) GetCapabilities() Capabilities {
	return provider.capabilities
}

// traceRequestStart annotates any span and observer carried by ctx with the
// request attributes shared by the sync and streaming paths. The returned
// span may be nil; callers that enrich it further must check.
func traceRequestStart(ctx context.Context, provider *OpenAIProvider, request ai.ChatRequest, streaming bool) observability.Span {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, "openai"),
			observability.String(observability.AttrLLMEndpoint, provider.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
		)
		if streaming {
			span.SetAttributes(observability.Bool("llm.streaming", true))
		}
	}

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		message := "OpenAI provider preparing request"
		if streaming {
			message = "OpenAI provider preparing streaming request"
		}
		observer.Trace(ctx, message,
			observability.String(observability.AttrLLMProvider, "openai"),
			observability.String(observability.AttrLLMEndpoint, provider.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
		)
	}

	return span
}

// SendMessage implements [ai.Provider] by sending a synchronous chat request
// to the Chat Completions API and returning the response mapped to the
// generic [ai.ChatResponse] format. It returns an error if the API key is
// unset, the HTTP request fails, or the response carries no choices.
func (provider *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := traceRequestStart(ctx, provider, request, false)
	if span != nil {
		defer span.AddEvent(observability.EventLLMRequestEnd)
	}

	// Guard against missing credentials before making a network call.
	if provider.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	useLegacyFunctions := provider.capabilities.ToolCallMode == ToolCallModeFunctions
	chatRequest := requestToChatCompletion(request, useLegacyFunctions)

	url := provider.baseURL + chatCompletionsEndpoint
	httpResponse, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, provider.client, url, provider.apiKey, chatRequest)
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, err
	}

	if resp == nil {
		return nil, fmt.Errorf("empty response from OpenAI API: %s", httpResponse.Status)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	result := chatCompletionToGeneric(*resp)

	// Some compatible hosts omit the model in the response; fall back to the
	// request model so callers always have a non-empty Model field.
	if result.Model == "" {
		result.Model = request.Model
	}

	// Enrich span with response details now that we have a decoded result.
	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMResponseID, result.ID),
			observability.String(observability.AttrLLMFinishReason, result.FinishReason),
			observability.Int(observability.AttrHTTPStatusCode, httpResponse.StatusCode),
		)
		if result.Usage != nil {
			span.AddEvent(observability.EventTokensReceived,
				observability.Int(observability.AttrLLMTokensTotal, result.Usage.TotalTokens),
			)
		}
	}

	return result, nil
}

// IsStopMessage reports whether the given chat response should be treated as a
// terminal response that requires no further action. A nil message, an explicit
// "stop", "length", or "content_filter" finish reason, or a response with no
// content and no tool calls are all treated as stop signals.
func (provider *OpenAIProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}

	// Tool calls always need to be executed first, regardless of finish reason.
	if len(message.ToolCalls) > 0 {
		return false
	}

	if message.FinishReason == "stop" || message.FinishReason == "length" || message.FinishReason == "content_filter" {
		return true
	}

	if message.Content == "" {
		return true
	}

	return false
}
