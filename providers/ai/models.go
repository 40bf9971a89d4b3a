package ai

import (
	"encoding/json"

	"github.com/parley-ai/parley/internal/jsonschema"
)

// ChatRequest is the provider-neutral form of one chat completion call.
// Adapters translate it into their native wire format; everything optional
// stays nil or empty when the caller does not use it.
type ChatRequest struct {
	Model            string            `json:"model,omitempty"`
	Messages         []Message         `json:"messages"` // Conversation history, system prompt excluded
	SystemPrompt     string            `json:"system_prompt,omitempty"`
	Tools            []ToolDescription `json:"tools,omitempty"`
	ResponseFormat   *ResponseFormat   `json:"response_format,omitempty"`
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"`
	ToolChoice       *ToolChoice       `json:"tool_choice,omitempty"`
}

// Message is a single conversation turn. Role decides which of the remaining
// fields are meaningful: assistant messages may carry ToolCalls and Reasoning,
// tool messages carry the ToolCallID they answer plus the tool's Name.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content,omitempty"`

	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`

	Reasoning string `json:"reasoning,omitempty"`

	// TODO: non-text content parts (images, audio).
}

// MessageRole labels who produced a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolDescription is the declaration of one callable tool as presented to the
// model: its name, what it does, and a JSON schema for its arguments.
type ToolDescription struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Required    bool               `json:"required,omitempty"`
}

// ToolChoice constrains which tools the model may (or must) call.
// ToolChoiceForced takes precedence over the other fields when set: it is
// either one of the reserved strings "auto" | "none" | "required" or the name
// of a single tool the model must call.
type ToolChoice struct {
	ToolChoiceForced   string            `json:"tool_choice_forced,omitempty"`
	AtLeastOneRequired bool              `json:"at_least_one_required,omitempty"`
	RequiredTools      []ToolDescription `json:"required_tools,omitempty"`
}

// GenerationConfig tunes sampling. Fields a provider does not support are
// silently ignored by its adapter.
type GenerationConfig struct {
	MaxTokens        int     `json:"max_tokens,omitempty"`
	Temperature      float32 `json:"temperature,omitempty"`       // [0..2], higher is more random
	TopP             float32 `json:"top_p,omitempty"`             // [0..1] nucleus sampling, alternative to temperature
	FrequencyPenalty float32 `json:"frequency_penalty,omitempty"` // [-2..2], positive discourages repetition
	PresencePenalty  float32 `json:"presence_penalty,omitempty"`  // [-2..2], positive encourages new topics
	MaxOutputTokens  int     `json:"max_output_tokens,omitempty"`
}

// ResponseFormat asks the model for structured output. With OutputSchema set
// the adapter requests schema-conforming JSON (strictly so when Strict is
// true and the provider can enforce it). Type is a bare hint, one of
// "text|json_object|json_schema|markdown|enum", for use without a schema.
type ResponseFormat struct {
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"`
	Strict       bool               `json:"strict,omitempty"`
	Type         string             `json:"type,omitempty"`
}

// ChatResponse is the provider-neutral result of one chat completion,
// normalized from whatever the provider returned.
type ChatResponse struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Object       string     `json:"object"`
	Created      int64      `json:"created"`
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`

	// RoundtripUsage holds the per-roundtrip usage history when the response
	// was produced by a tool-execution loop: one entry per roundtrip the loop
	// continued past, in order. The terminal call's usage is folded into
	// Usage but is not part of this history.
	RoundtripUsage []Usage `json:"roundtrip_usage,omitempty"`

	Reasoning string `json:"reasoning,omitempty"`
}

// StructuredChatResponse pairs a ChatResponse with the model output parsed
// into T. Data is nil when the response could not be parsed.
type StructuredChatResponse[T any] struct {
	ChatResponse
	Data *T `json:"data,omitempty"`
}

// Normalized finish reasons. Providers map their native stop semantics onto
// these; adapters pass through anything they do not recognize.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)

// Usage counts tokens for one completion. ReasoningTokens and CachedTokens
// stay zero on providers that do not report them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	CachedTokens    int `json:"cached_tokens,omitempty"`
}

// Add sums every field of other into u. The zero value is the identity, so
// usages can be accumulated across roundtrips without special-casing the
// first one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.ReasoningTokens += other.ReasoningTokens
	u.CachedTokens += other.CachedTokens
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"` // Always "function" today
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the tool and carries its arguments as the raw JSON
// string the model produced.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResult is the uniform outcome of executing one tool call. Keeping the
// shape identical for successes and failures lets the model reason about
// outcomes without per-tool conventions: Success says which case this is,
// Error holds a machine-readable code such as "tool_not_found" when it is a
// failure, and Data holds the tool's output when it is not.
type ToolResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// NewToolResultSuccess wraps a tool's output in a successful ToolResult.
func NewToolResultSuccess(data any) ToolResult {
	return ToolResult{
		Success: true,
		Data:    data,
	}
}

// NewToolResultError builds a failed ToolResult from a machine-readable
// errorType and a human-readable message.
func NewToolResultError(errorType, message string) ToolResult {
	return ToolResult{
		Success: false,
		Error:   errorType,
		Message: message,
	}
}

// ToJSON renders the result as the JSON string sent back to the model.
func (tr ToolResult) ToJSON() (string, error) {
	encoded, err := json.Marshal(tr)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
