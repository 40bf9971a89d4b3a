package observability

// Shared attribute, span, event, and metric names. Dot-separated namespaces
// in the OpenTelemetry semantic-conventions style, so traces and logs from
// different components line up without per-call-site string literals.

// LLM request and response attributes.
const (
	AttrLLMProvider     = "llm.provider" // "openai", "anthropic", ...
	AttrLLMModel        = "llm.model"
	AttrLLMEndpoint     = "llm.endpoint"
	AttrLLMResponseID   = "llm.response.id"
	AttrLLMFinishReason = "llm.finish_reason"
	AttrLLMTemperature  = "llm.temperature"
	AttrLLMMaxTokens    = "llm.max_tokens" // #nosec G101 -- LLM token budget, not a credential
)

// Token usage attributes.
//
// #nosec G101 -- "tokens" here counts LLM tokens, nothing secret.
const (
	AttrLLMTokensPrompt     = "llm.tokens.prompt"
	AttrLLMTokensCompletion = "llm.tokens.completion"
	AttrLLMTokensTotal      = "llm.tokens.total"
)

// Tool execution attributes.
const (
	AttrToolName     = "tool.name"
	AttrToolInput    = "tool.input"  // serialized JSON
	AttrToolOutput   = "tool.output" // serialized JSON
	AttrToolDuration = "tool.duration"
	AttrToolError    = "tool.error"
)

// Request shape attributes.
const (
	AttrRequestMessagesCount = "request.messages_count"
	AttrRequestToolsCount    = "request.tools_count"
)

// HTTP transport attributes.
const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// Conversation memory attributes.
const (
	AttrMemoryMessageRole   = "memory.message.role"
	AttrMemoryMessageLength = "memory.message.length"
	AttrMemoryTotalMessages = "memory.total_messages"
)

// Client and general attributes.
const (
	AttrClientToolCalls   = "client.tool_calls"
	AttrError             = "error"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// SpanClientSendMessage wraps one full client request, tool roundtrips
// included.
const SpanClientSendMessage = "client.send_message"

// Span event names. Providers and tools add these to the client span rather
// than opening spans of their own.
const (
	EventLLMRequestStart    = "llm.request.start"
	EventLLMRequestEnd      = "llm.request.end"
	EventToolExecutionStart = "tool.execution.start"
	EventToolExecutionEnd   = "tool.execution.end"
	EventTokensReceived     = "llm.tokens.received" // #nosec G101 -- LLM token count, not a credential
	EventMemoryAppend       = "memory.append"
	EventMemoryClear        = "memory.clear"
)

// Metric names emitted by the client middleware.
const (
	MetricClientRequestCount     = "parley.client.request.count"
	MetricClientRequestDuration  = "parley.client.request.duration"
	MetricClientTokensTotal      = "parley.client.tokens.total"
	MetricClientTokensPrompt     = "parley.client.tokens.prompt"
	MetricClientTokensCompletion = "parley.client.tokens.completion"
)
