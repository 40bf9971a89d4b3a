package anthropic

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
	// defaultBaseURL is the canonical base URL for the Messages API.
	defaultBaseURL = "https://api.anthropic.com/v1"

	// messagesEndpoint is the path of the Messages endpoint under the base URL.
	messagesEndpoint = "/messages"

	// anthropicVersion pins the wire format via the anthropic-version header,
	// which the API versions independently of the URL.
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider implements [ai.Provider] for the Anthropic Messages API,
// including extended thinking, prompt caching, and tool use; those features
// are switched through [Capabilities]. Use [New] to construct a ready-to-use
// instance.
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	capabilities Capabilities
}

// New returns an [AnthropicProvider] configured from ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL, the latter defaulting to the public endpoint. The
// With* methods override any of these after construction.
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey overrides the API key and returns the provider for chaining.
func (provider *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	provider.apiKey = apiKey
	return provider
}

// WithBaseURL overrides the endpoint base URL, e.g. to target a proxy or a
// local test server, and returns the provider for chaining.
func (provider *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	provider.baseURL = baseURL
	return provider
}

// WithHttpClient swaps the [http.Client] used for API calls, which is how
// custom timeouts and transports come in, and returns the provider for
// chaining.
func (provider *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	provider.client = httpClient
	return provider
}

// WithCapabilities replaces the active [Capabilities]. It returns the
// concrete *AnthropicProvider rather than [ai.Provider] so the capability
// accessors stay reachable without a cast, matching the OpenAI adapter.
func (provider *AnthropicProvider) WithCapabilities(capabilities Capabilities) *AnthropicProvider {
	provider.capabilities = capabilities
	return provider
}

// GetCapabilities returns the [Capabilities] currently in effect.
func (provider *AnthropicProvider) GetCapabilities() Capabilities {
	return provider.capabilities
}

// requestHeaders builds the headers every Messages call needs. The
// credential travels in x-api-key (this API does not use Bearer tokens),
// anthropic-version pins the format, and anthropic-beta appears only when
// the configured capabilities require a beta flag.
func (provider *AnthropicProvider) requestHeaders() []utils.HeaderOption {
	headers := []utils.HeaderOption{
		{Key: "x-api-key", Value: provider.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}

	if beta := provider.capabilities.betaHeaderValue(); beta != "" {
		headers = append(headers, utils.HeaderOption{Key: "anthropic-beta", Value: beta})
	}

	return headers
}

// traceRequestStart annotates any span and observer carried by ctx with the
// request attributes shared by the sync and streaming paths. The returned
// span may be nil; callers that enrich it further must check.
func traceRequestStart(ctx context.Context, provider *AnthropicProvider, request ai.ChatRequest, streaming bool) observability.Span {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, "anthropic"),
			observability.String(observability.AttrLLMEndpoint, provider.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
		)
		if streaming {
			span.SetAttributes(observability.Bool("llm.streaming", true))
		}
	}

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		message := "Anthropic provider preparing request"
		if streaming {
			message = "Anthropic provider preparing streaming request"
		}
		observer.Trace(ctx, message,
			observability.String(observability.AttrLLMProvider, "anthropic"),
			observability.String(observability.AttrLLMEndpoint, provider.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
		)
	}

	return span
}

// SendMessage implements [ai.Provider] by posting a synchronous request to
// the Messages API and mapping the reply onto the generic [ai.ChatResponse].
// It fails when the API key is unset, the HTTP round trip errors, or the
// response body is empty.
func (provider *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := traceRequestStart(ctx, provider, request, false)
	if span != nil {
		defer span.AddEvent(observability.EventLLMRequestEnd)
	}

	// Fail on missing credentials before any network traffic.
	if provider.apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	anthropicReq, err := requestToAnthropic(request, provider.capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to build Anthropic request: %w", err)
	}

	// The empty apiKey argument keeps DoPostSync from injecting a Bearer
	// token; authentication rides in the x-api-key header instead.
	url := provider.baseURL + messagesEndpoint
	httpResponse, resp, err := utils.DoPostSync[anthropicResponse](ctx, provider.client, url, "", anthropicReq, provider.requestHeaders()...)
	if err != nil {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, err
	}

	if resp == nil {
		return nil, fmt.Errorf("empty response from Anthropic API: %s", httpResponse.Status)
	}

	result := responseToGeneric(*resp)

	// The response usually echoes the model; when it does not, report the
	// request model so Model is never empty.
	if result.Model == "" {
		result.Model = request.Model
	}

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

// IsStopMessage reports whether message is terminal and needs no further
// action. Nil messages, explicit stop/length/content_filter finish reasons,
// and contentless responses all count as stops. A response carrying tool
// calls never does, even with a stop finish reason: some models report
// end_turn alongside tool_use blocks and the calls still must run.
func (provider *AnthropicProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}

	if len(message.ToolCalls) > 0 {
		return false
	}

	switch message.FinishReason {
	case "stop", "length", "content_filter":
		return true
	}

	return message.Content == ""
}
