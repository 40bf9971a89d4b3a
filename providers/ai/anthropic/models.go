package anthropic

import "encoding/json"

/*
	MESSAGES API WIRE FORMAT - REQUESTS
*/

// anthropicRequest is the body posted to the Messages endpoint. Unlike the
// OpenAI wire format the system prompt travels outside the message list and
// max_tokens is mandatory on every call.
type anthropicRequest struct {
	Model        string                   `json:"model"`
	Messages     []anthropicMessage       `json:"messages"`
	System       json.RawMessage          `json:"system,omitempty"` // String or []anthropicContentBlock
	MaxTokens    int                      `json:"max_tokens"`
	Temperature  *float64                 `json:"temperature,omitempty"`
	TopP         *float64                 `json:"top_p,omitempty"`
	Tools        []anthropicTool          `json:"tools,omitempty"`
	ToolChoice   *anthropicToolChoice     `json:"tool_choice,omitempty"`
	Stream       bool                     `json:"stream,omitempty"`
	Thinking     *anthropicThinkingConfig `json:"thinking,omitempty"`
	OutputConfig *anthropicOutputConfig   `json:"output_config,omitempty"`
	Speed        string                   `json:"speed,omitempty"` // "fast" selects the fast-mode research preview
}

// anthropicMessage is one conversation turn. The API accepts only "user" and
// "assistant" roles here; tool results ride inside user turns as content
// blocks.
type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

// anthropicContentBlock is the request-side content union, discriminated by
// Type. The populated fields depend on it:
//
//	"text"        Text, optionally CacheControl
//	"tool_use"    ID, Name, Input
//	"tool_result" ToolUseID, Content, IsError
//	"thinking"    Thinking, Signature
type anthropicContentBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text,omitempty"`
	ID           string                 `json:"id,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Input        json.RawMessage        `json:"input,omitempty"`
	ToolUseID    string                 `json:"tool_use_id,omitempty"`
	Content      json.RawMessage        `json:"content,omitempty"` // String or nested content blocks
	IsError      bool                   `json:"is_error,omitempty"`
	Thinking     string                 `json:"thinking,omitempty"`
	Signature    string                 `json:"signature,omitempty"` // Opaque; round-tripped on replayed thinking
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

// anthropicCacheControl marks a content block or tool definition as a prompt
// cache breakpoint. The only published type is "ephemeral".
type anthropicCacheControl struct {
	Type string `json:"type"`
}

// anthropicTool declares one callable tool. InputSchema carries the JSON
// Schema for the tool arguments as raw bytes so the schema layer stays out
// of the wire types.
type anthropicTool struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	InputSchema  json.RawMessage        `json:"input_schema"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

// anthropicToolChoice steers tool selection. Type is "auto", "any", or
// "tool"; Name is only meaningful with "tool".
type anthropicToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}

// anthropicThinkingConfig switches on extended thinking. Newer models take
// Type "adaptive" with no budget; older ones need Type "enabled" plus an
// explicit BudgetTokens.
type anthropicThinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// anthropicOutputConfig sets the effort level for the response. Known values
// are "low", "medium", "high", and "max", the last being Opus-only.
type anthropicOutputConfig struct {
	Effort string `json:"effort"`
}

/*
	MESSAGES API WIRE FORMAT - RESPONSES
*/

// anthropicResponse is the decoded Messages endpoint reply.
type anthropicResponse struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"` // Always "message"
	Role         string                 `json:"role"` // Always "assistant"
	Content      []responseContentBlock `json:"content"`
	Model        string                 `json:"model"`
	StopReason   string                 `json:"stop_reason"`
	StopSequence string                 `json:"stop_sequence,omitempty"`
	Usage        anthropicUsage         `json:"usage"`
}

// responseContentBlock is the response-side content union. Only "text",
// "thinking", and "tool_use" are mapped; unknown types are skipped during
// conversion so new block kinds cannot break decoding.
type responseContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// anthropicUsage counts tokens for one request, with the prompt-cache splits
// broken out separately from plain input tokens.
type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}
