package openai

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/core/parse"
	"github.com/parley-ai/parley/internal/jsonschema"
	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
)

/*
	CHAT COMPLETIONS WIRE FORMAT - REQUEST
*/

// chatCompletionRequest is the request body for the /chat/completions
// endpoint. Pointer fields distinguish "unset" from a deliberate zero so the
// endpoint's own defaults apply when the caller left a knob alone.
type chatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	MaxTokens           *int           `json:"max_tokens,omitempty"`            // Legacy, still accepted
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"` // Preferred
	FrequencyPenalty    *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64       `json:"presence_penalty,omitempty"`
	Stop                any    `json:"stop,omitempty"` // string or []string
	Stream              *bool          `json:"stream,omitempty"`
	StreamOptions       *streamOptions `json:"stream_options,omitempty"`
	Seed                *int           `json:"seed,omitempty"`
	User                string         `json:"user,omitempty"`

	// Modern tool calling
	Tools             []chatTool  `json:"tools,omitempty"`
	ToolChoice        any `json:"tool_choice,omitempty"` // "auto", "none", "required", or object
	ParallelToolCalls *bool       `json:"parallel_tool_calls,omitempty"`

	// Legacy tool calling, for hosts that never adopted the tools field
	Functions    []chatFunction `json:"functions,omitempty"`
	FunctionCall any    `json:"function_call,omitempty"` // "auto", "none", or object

	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

// chatMessage is one conversation entry on the wire. Which optional fields
// apply depends on the role: tool_call_id and name belong to role=tool
// entries, tool_calls to role=assistant entries.
type chatMessage struct {
	Role       string         `json:"role"` // system, user, assistant, tool
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

// chatTool wraps a function definition in the modern tools format.
type chatTool struct {
	Type     string       `json:"type"` // "function"
	Function chatFunction `json:"function"`
}

// chatFunction describes a callable function. The same shape serves the
// modern tools array and the legacy top-level functions field.
type chatFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  jsonschema.Schema `json:"parameters,omitempty"`
	Strict      bool              `json:"strict,omitempty"`
}

// chatToolCall is a completed tool call as the API reports it.
type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function chatFunctionCall `json:"function"`
}

// chatFunctionCall names the function being invoked and carries its arguments
// as the raw JSON string the model produced.
type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// chatResponseFormat selects the output shape. Type "json_schema" requires
// the schema payload; "text" and "json_object" stand alone.
type chatResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

// chatJSONSchema is the schema payload for structured outputs.
type chatJSONSchema struct {
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	Strict bool              `json:"strict,omitempty"`
}

/*
	CHAT COMPLETIONS WIRE FORMAT - RESPONSE
*/

type chatCompletionResponse struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"` // "chat.completion"
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
	Choices           []chatChoice `json:"choices"`
	Usage             *chatUsage   `json:"usage,omitempty"`

	// Azure/OpenAI safety filters
	PromptFilterResults []chatFilterResult `json:"prompt_filter_results,omitempty"`
	ServiceTier         string             `json:"service_tier,omitempty"`
}

type chatChoice struct {
	Index                int                       `json:"index"`
	Message              chatResponseMessage       `json:"message"`
	FinishReason         string                    `json:"finish_reason"` // "stop", "length", "tool_calls", "content_filter"
	Logprobs             any               `json:"logprobs,omitempty"`
	ContentFilterResults *chatContentFilterResults `json:"content_filter_results,omitempty"`
}

type chatResponseMessage struct {
	Role      string         `json:"role"` // "assistant"
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"` // Dedicated reasoning field (OpenRouter, o-series)
}

// chatUsage mirrors the usage block. The detail sub-objects are only sent by
// hosts that meter reasoning tokens or prompt caching.
type chatUsage struct {
	PromptTokens            int                    `json:"prompt_tokens"`
	CompletionTokens        int                    `json:"completion_tokens"`
	TotalTokens             int                    `json:"total_tokens"`
	CompletionTokensDetails *chatCompletionDetails `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails     *chatPromptDetails     `json:"prompt_tokens_details,omitempty"`
}

type chatCompletionDetails struct {
	ReasoningTokens          int `json:"reasoning_tokens,omitempty"`
	AcceptedPredictionTokens int `json:"accepted_prediction_tokens,omitempty"`
	RejectedPredictionTokens int `json:"rejected_prediction_tokens,omitempty"`
}

type chatPromptDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
	AudioTokens  int `json:"audio_tokens,omitempty"`
}

type chatContentFilterResults struct {
	Hate     chatFilterResult `json:"hate"`
	SelfHarm chatFilterResult `json:"self_harm"`
	Sexual   chatFilterResult `json:"sexual"`
	Violence chatFilterResult `json:"violence"`
}

type chatFilterResult struct {
	Filtered bool   `json:"filtered"`
	Severity string `json:"severity"`
}

/*
	REQUEST CONVERSION
*/

// requestToChatCompletion maps the provider-agnostic request onto the chat
// completions wire format. useLegacyFunctions selects the pre-tools
// functions/function_call fields for hosts that never adopted the tools API.
func requestToChatCompletion(request ai.ChatRequest, useLegacyFunctions bool) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:    request.Model,
		Messages: chatMessagesFrom(request),
	}

	applyGenerationConfig(&req, request.GenerationConfig)

	if len(request.Tools) > 0 {
		attachTools(&req, request, useLegacyFunctions)
	}

	req.ResponseFormat = responseFormatFrom(request.ResponseFormat)

	return req
}

// chatMessagesFrom flattens the system prompt and the conversation history
// into wire messages. The system prompt, when present, always leads.
func chatMessagesFrom(request ai.ChatRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(request.Messages)+1)

	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{
			Role:    string(ai.RoleSystem),
			Content: request.SystemPrompt,
		})
	}

	for _, msg := range request.Messages {
		wireMsg := chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}

		for _, call := range msg.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, chatToolCall{
				ID:   call.ID,
				Type: call.Type,
				Function: chatFunctionCall{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			})
		}

		messages = append(messages, wireMsg)
	}

	return messages
}

// applyGenerationConfig copies sampling and token-budget settings onto the
// wire request. Zero values count as "not set" and leave the field absent.
func applyGenerationConfig(req *chatCompletionRequest, cfg *ai.GenerationConfig) {
	if cfg == nil {
		return
	}

	if cfg.Temperature > 0 {
		req.Temperature = utils.Ptr(float64(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		req.TopP = utils.Ptr(float64(cfg.TopP))
	}
	if cfg.FrequencyPenalty != 0 {
		req.FrequencyPenalty = utils.Ptr(float64(cfg.FrequencyPenalty))
	}
	if cfg.PresencePenalty != 0 {
		req.PresencePenalty = utils.Ptr(float64(cfg.PresencePenalty))
	}

	// max_completion_tokens supersedes max_tokens; send whichever was set,
	// preferring the modern field when both are.
	switch {
	case cfg.MaxOutputTokens > 0:
		req.MaxCompletionTokens = utils.Ptr(cfg.MaxOutputTokens)
	case cfg.MaxTokens > 0:
		req.MaxTokens = utils.Ptr(cfg.MaxTokens)
	}
}

// attachTools adds the tool definitions and the resolved tool choice to the
// request, in whichever wire format the endpoint understands.
func attachTools(req *chatCompletionRequest, request ai.ChatRequest, useLegacyFunctions bool) {
	toolChoice := chatToolChoiceFrom(request.ToolChoice, useLegacyFunctions)

	if useLegacyFunctions {
		for _, tool := range request.Tools {
			req.Functions = append(req.Functions, chatFunctionFrom(tool))
		}
		req.FunctionCall = toolChoice
		return
	}

	for _, tool := range request.Tools {
		req.Tools = append(req.Tools, chatTool{
			Type:     "function",
			Function: chatFunctionFrom(tool),
		})
	}
	req.ToolChoice = toolChoice
}

func chatFunctionFrom(tool ai.ToolDescription) chatFunction {
	return chatFunction{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  *tool.Parameters,
	}
}

// chatToolChoiceFrom resolves the tool_choice value from the request
// constraints. Precedence: an explicit forced choice wins, then the
// at-least-one flag, then the required-tools list. With no constraint the
// model decides for itself.
func chatToolChoiceFrom(choice *ai.ToolChoice, useLegacyFunctions bool) any {
	if choice == nil {
		return "auto"
	}

	if choice.ToolChoiceForced != "" {
		return choice.ToolChoiceForced
	}

	if choice.AtLeastOneRequired {
		return "required"
	}

	if len(choice.RequiredTools) == 0 {
		return "auto"
	}

	if len(choice.RequiredTools) == 1 {
		return map[string]any{
			"type": "function",
			"name": choice.RequiredTools[0].Name,
		}
	}

	// Several required tools: the modern format can restrict the allowed set,
	// the legacy format cannot and falls back to a bare "required".
	if useLegacyFunctions {
		return "required"
	}

	allowed := make([]map[string]string, 0, len(choice.RequiredTools))
	for _, tool := range choice.RequiredTools {
		allowed = append(allowed, map[string]string{
			"type": "function",
			"name": tool.Name,
		})
	}

	return map[string]any{
		"type":  "allowed_tools",
		"mode":  "required",
		"tools": allowed,
	}
}

// responseFormatFrom maps the requested response format, preferring a full
// JSON schema over a bare type hint when both are present.
func responseFormatFrom(format *ai.ResponseFormat) *chatResponseFormat {
	if format == nil {
		return nil
	}

	if format.OutputSchema != nil {
		return &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &chatJSONSchema{
				Name:   "response_schema",
				Schema: *format.OutputSchema,
				Strict: format.Strict,
			},
		}
	}

	if format.Type != "" {
		return &chatResponseFormat{Type: format.Type}
	}

	return nil
}

/*
	RESPONSE CONVERSION
*/

// chatCompletionToGeneric maps a decoded chat completion onto the
// provider-agnostic response type. Only the first choice is considered.
func chatCompletionToGeneric(resp chatCompletionResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Object:  resp.Object,
		Created: resp.Created,
	}

	if len(resp.Choices) == 0 {
		result.FinishReason = "error"
		return result
	}

	choice := resp.Choices[0]
	result.FinishReason = choice.FinishReason
	result.Content, result.Reasoning = splitReasoning(choice.Message)

	if len(choice.Message.ToolCalls) > 0 {
		result.ToolCalls = toolCallsToGeneric(choice.Message.ToolCalls)
	} else if choice.Message.Content != "" {
		// Some hosts emit tool calls as text instead of populating the
		// standard field, and report a plain stop alongside; recover the
		// calls and fix up the finish reason so tool loops keep going.
		result.ToolCalls = parseChatCompletionToolCallsFromContent(choice.Message.Content)
		if len(result.ToolCalls) > 0 && result.FinishReason == ai.FinishReasonStop {
			result.FinishReason = ai.FinishReasonToolCalls
		}
	}

	// Tool calls need IDs so the tool response messages that come back can
	// reference the call they answer. Compatible hosts sometimes omit them.
	backfillToolCallIDs(result.ToolCalls)

	result.Usage = usageToGeneric(resp.Usage)

	return result
}

// toolCallsToGeneric converts wire tool calls. Arguments stay as the raw JSON
// string the model produced; parsing them is the tool layer's concern.
func toolCallsToGeneric(calls []chatToolCall) []ai.ToolCall {
	converted := make([]ai.ToolCall, 0, len(calls))
	for _, call := range calls {
		converted = append(converted, ai.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			Function: ai.ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return converted
}

// splitReasoning separates the visible answer from chain-of-thought text.
// Reasoning can arrive in the dedicated field, inside <think> tags embedded
// in the content, or both; embedded reasoning is stripped from the content
// and appended after the explicit part.
func splitReasoning(message chatResponseMessage) (content, reasoning string) {
	content = strings.TrimSpace(message.Content)

	if content == "" {
		// With an empty content field the whole message may live in the
		// reasoning field, think tags and final answer alike.
		if message.Reasoning == "" {
			return "", ""
		}
		return cleanThinkTags(message.Reasoning), extractReasoningFromThinkTags(message.Reasoning)
	}

	parts := make([]string, 0, 2)
	if explicit := strings.TrimSpace(message.Reasoning); explicit != "" {
		parts = append(parts, explicit)
	}
	if embedded := extractReasoningFromThinkTags(content); embedded != "" {
		parts = append(parts, embedded)
		content = cleanThinkTags(content)
	}

	return content, strings.Join(parts, "\n")
}

// usageToGeneric maps wire usage counters, folding the optional detail blocks
// into the flat generic shape. Returns nil when the host sent no usage.
func usageToGeneric(raw *chatUsage) *ai.Usage {
	if raw == nil {
		return nil
	}

	usage := &ai.Usage{
		PromptTokens:     raw.PromptTokens,
		CompletionTokens: raw.CompletionTokens,
		TotalTokens:      raw.TotalTokens,
	}
	if raw.CompletionTokensDetails != nil {
		usage.ReasoningTokens = raw.CompletionTokensDetails.ReasoningTokens
	}
	if raw.PromptTokensDetails != nil {
		usage.CachedTokens = raw.PromptTokensDetails.CachedTokens
	}
	return usage
}

// backfillToolCallIDs generates an ID for every tool call that arrived
// without one, using the same call_ prefix OpenAI's native IDs carry.
// Content-recovered calls never have IDs, and some compatible hosts drop
// them from the standard field as well.
func backfillToolCallIDs(toolCalls []ai.ToolCall) {
	for i := range toolCalls {
		if toolCalls[i].ID == "" {
			toolCalls[i].ID = "call_" + uuid.New().String()
		}
	}
}

/*
	TOOL CALL RECOVERY

	Not every OpenAI-compatible host populates the tool_calls field. Some
	models emit the calls as text: wrapped in ad-hoc tags, as bare JSON,
	often cut off mid-array or lightly malformed. The helpers below dig tool
	calls out of message content, leaning on parse.ParseStringAs for the
	actual JSON repair.
*/

const (
	toolCallOpenTag  = "<TOOLCALL>"
	toolCallCloseTag = "</TOOLCALL>"
)

// contentMarkers are provider-specific fragments stripped before parsing.
// jsonrepair copes with malformed JSON but not with these.
var contentMarkers = []string{
	"<|END OF THOUGHT|>",
	"<|END_OF_THOUGHT|>",
	"<|endofthought|>",
	"[/TOOLCALL]",
	"</THOUGHT>",
	"<THOUGHT>",
}

// parseChatCompletionToolCallsFromContent recovers tool calls from message
// content. It tries the explicit <TOOLCALL> wrapper first, then the whole
// content as a JSON array, then the widest bracketed slice of it.
func parseChatCompletionToolCallsFromContent(content string) []ai.ToolCall {
	cleaned := cleanToolCallContent(content)

	if inner, ok := betweenTags(cleaned, toolCallOpenTag, toolCallCloseTag); ok {
		if calls := parseToolCallsJSON(inner); len(calls) > 0 {
			return calls
		}
	}

	if calls := parseToolCallsJSON(cleaned); len(calls) > 0 {
		return calls
	}

	first := strings.Index(cleaned, "[")
	last := strings.LastIndex(cleaned, "]")
	if first != -1 && last > first {
		if calls := parseToolCallsJSON(cleaned[first : last+1]); len(calls) > 0 {
			return calls
		}
	}

	return nil
}

// betweenTags returns the text between the first open tag and the first close
// tag, reporting false when either is missing or they are out of order.
func betweenTags(s, openTag, closeTag string) (string, bool) {
	start := strings.Index(s, openTag)
	end := strings.Index(s, closeTag)
	if start == -1 || end <= start {
		return "", false
	}
	return s[start+len(openTag) : end], true
}

// cleanToolCallContent strips the marker fragments and surrounding space.
func cleanToolCallContent(content string) string {
	content = strings.TrimSpace(content)
	for _, marker := range contentMarkers {
		content = strings.ReplaceAll(content, marker, "")
	}
	return strings.TrimSpace(content)
}

// toolCallPayload is the minimal shape a content-embedded tool call must have.
type toolCallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseToolCallsJSON parses a JSON array of tool calls, tolerating missing
// brackets and trailing junk. Repairs beyond bracket surgery (stray quotes,
// escape sequences, truncation) are ParseStringAs territory.
func parseToolCallsJSON(jsonStr string) []ai.ToolCall {
	jsonStr = strings.TrimSpace(jsonStr)
	if jsonStr == "" {
		return nil
	}

	if !strings.HasPrefix(jsonStr, "[") {
		jsonStr = "[" + jsonStr
	}
	if !strings.HasSuffix(jsonStr, "]") {
		// Close the array after the last complete object; without at least
		// one of those there is nothing to salvage.
		lastBrace := strings.LastIndex(jsonStr, "}")
		if lastBrace <= 0 {
			return nil
		}
		jsonStr = jsonStr[:lastBrace+1] + "]"
	}

	parsed, err := parse.ParseStringAs[[]toolCallPayload](jsonStr)
	if err != nil {
		return nil
	}

	var toolCalls []ai.ToolCall
	for _, call := range parsed {
		if call.Name == "" {
			continue
		}

		arguments := "{}"
		if len(call.Arguments) > 0 {
			arguments = string(call.Arguments)
		}

		// No ID here: content-recovered calls get theirs backfilled.
		toolCalls = append(toolCalls, ai.ToolCall{
			Type: "function",
			Function: ai.ToolCallFunction{
				Name:      call.Name,
				Arguments: arguments,
			},
		})
	}
	return toolCalls
}

/*
	THINK TAG HANDLING
*/

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// thinkTagBounds locates a <think> block in s. tagStart is where the open tag
// begins, textStart where the enclosed text begins, textEnd the close tag's
// position or -1. A missing open tag leaves tagStart and textStart at 0: the
// block is treated as open from the beginning, since models resumed
// mid-thought lose the opening tag. The close tag is mandatory; callers treat
// textEnd at or before their start as "no block".
func thinkTagBounds(s string) (tagStart, textStart, textEnd int) {
	tagStart = strings.Index(s, thinkOpenTag)
	if tagStart == -1 {
		tagStart = 0
	} else {
		textStart = tagStart + len(thinkOpenTag)
	}
	return tagStart, textStart, strings.Index(s, thinkCloseTag)
}

// extractReasoningFromThinkTags returns the chain-of-thought text inside a
// <think> block, or "" when the content has no closed block.
func extractReasoningFromThinkTags(content string) string {
	_, textStart, textEnd := thinkTagBounds(content)
	if textEnd == -1 || textEnd <= textStart {
		return ""
	}
	return strings.TrimSpace(content[textStart:textEnd])
}

// cleanThinkTags removes a <think> block, tags included, leaving only the
// text around it. Content without a closed block passes through untouched.
func cleanThinkTags(content string) string {
	tagStart, _, textEnd := thinkTagBounds(content)
	if textEnd == -1 || textEnd <= tagStart {
		return content
	}
	return strings.TrimSpace(content[:tagStart] + content[textEnd+len(thinkCloseTag):])
}
