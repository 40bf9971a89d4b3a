package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/parley-ai/parley/providers/ai"
)

// defaultMaxTokens is used when the request carries no output limit; the
// Messages API rejects requests without max_tokens.
const defaultMaxTokens = 4096

// requestToAnthropic maps a provider-agnostic request plus the provider
// capabilities onto the Messages API wire format.
func requestToAnthropic(request ai.ChatRequest, capabilities Capabilities) (anthropicRequest, error) {
	req := anthropicRequest{
		Model:     request.Model,
		Messages:  messagesToAnthropic(request.Messages),
		MaxTokens: defaultMaxTokens,
	}

	if request.SystemPrompt != "" {
		system, err := systemFieldFrom(request.SystemPrompt, capabilities.PromptCaching)
		if err != nil {
			return anthropicRequest{}, err
		}
		req.System = system
	}

	applyGenerationLimits(&req, request.GenerationConfig)

	req.Thinking = thinkingFrom(capabilities)
	if capabilities.Effort != "" {
		req.OutputConfig = &anthropicOutputConfig{Effort: capabilities.Effort}
	}
	if capabilities.Speed != "" {
		req.Speed = capabilities.Speed
	}

	if len(request.Tools) > 0 {
		req.Tools = toolsToAnthropic(request.Tools, capabilities.PromptCaching)
		req.ToolChoice = toolChoiceToAnthropic(request.ToolChoice)
	}

	return req, nil
}

// systemFieldFrom encodes the system prompt. The wire accepts either a bare
// JSON string or a content-block array; caching needs the array form because
// cache_control can only hang off a block.
func systemFieldFrom(prompt string, cached bool) (json.RawMessage, error) {
	if !cached {
		encoded, err := json.Marshal(prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal system prompt: %w", err)
		}
		return encoded, nil
	}

	blocks := []anthropicContentBlock{{
		Type:         "text",
		Text:         prompt,
		CacheControl: &anthropicCacheControl{Type: "ephemeral"},
	}}
	encoded, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal system blocks: %w", err)
	}
	return encoded, nil
}

// applyGenerationLimits copies sampling parameters and the output cap onto
// the wire request. Zero values stay off the wire; MaxOutputTokens takes
// precedence over the legacy MaxTokens field.
func applyGenerationLimits(req *anthropicRequest, cfg *ai.GenerationConfig) {
	if cfg == nil {
		return
	}

	if cfg.Temperature > 0 {
		temperature := float64(cfg.Temperature)
		req.Temperature = &temperature
	}
	if cfg.TopP > 0 {
		topP := float64(cfg.TopP)
		req.TopP = &topP
	}

	switch {
	case cfg.MaxOutputTokens > 0:
		req.MaxTokens = cfg.MaxOutputTokens
	case cfg.MaxTokens > 0:
		req.MaxTokens = cfg.MaxTokens
	}
}

// thinkingFrom maps the thinking capability onto the wire config. Off means
// no field at all; a positive budget pins manual thinking, otherwise the
// model decides adaptively.
func thinkingFrom(capabilities Capabilities) *anthropicThinkingConfig {
	if !capabilities.ExtendedThinking {
		return nil
	}
	if capabilities.ThinkingBudget > 0 {
		return &anthropicThinkingConfig{
			Type:         "enabled",
			BudgetTokens: capabilities.ThinkingBudget,
		}
	}
	return &anthropicThinkingConfig{Type: "adaptive"}
}

// messagesToAnthropic converts the generic message history into Messages API
// turns. The API insists on alternating user/assistant roles, so consecutive
// tool results collapse into one user turn carrying several tool_result
// blocks, and system messages (which belong in the top-level field) degrade
// to user turns instead of being dropped.
func messagesToAnthropic(messages []ai.Message) []anthropicMessage {
	var turns []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case ai.RoleUser, ai.RoleSystem:
			turns = append(turns, anthropicMessage{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: msg.Content}},
			})

		case ai.RoleAssistant:
			if turn, ok := assistantTurn(msg); ok {
				turns = append(turns, turn)
			}

		case ai.RoleTool:
			turns = appendToolResult(turns, msg)
		}
	}

	return turns
}

// assistantTurn builds the content blocks for one assistant message. Thinking
// must lead the block list so the API can verify replayed signatures; an
// assistant message with nothing to say produces no turn at all.
func assistantTurn(msg ai.Message) (anthropicMessage, bool) {
	turn := anthropicMessage{Role: "assistant"}

	if msg.Reasoning != "" {
		turn.Content = append(turn.Content, anthropicContentBlock{
			Type:     "thinking",
			Thinking: msg.Reasoning,
		})
	}

	for _, call := range msg.ToolCalls {
		turn.Content = append(turn.Content, anthropicContentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: json.RawMessage(call.Function.Arguments),
		})
	}

	if msg.Content != "" {
		turn.Content = append(turn.Content, anthropicContentBlock{
			Type: "text",
			Text: msg.Content,
		})
	}

	return turn, len(turn.Content) > 0
}

// appendToolResult adds a tool response, merging it into the previous turn
// when that turn already holds only tool results. Two consecutive user turns
// are a wire error, so this merge is mandatory for parallel tool calls.
func appendToolResult(turns []anthropicMessage, msg ai.Message) []anthropicMessage {
	content, _ := json.Marshal(msg.Content)

	block := anthropicContentBlock{
		Type:      "tool_result",
		ToolUseID: msg.ToolCallID,
		Content:   content,
	}

	if last := len(turns) - 1; last >= 0 && isToolResultTurn(turns[last]) {
		turns[last].Content = append(turns[last].Content, block)
		return turns
	}

	return append(turns, anthropicMessage{
		Role:    "user",
		Content: []anthropicContentBlock{block},
	})
}

// isToolResultTurn reports whether every block in the turn is a tool_result,
// which is the only kind of user turn another tool result may merge into.
func isToolResultTurn(turn anthropicMessage) bool {
	if turn.Role != "user" || len(turn.Content) == 0 {
		return false
	}
	for _, block := range turn.Content {
		if block.Type != "tool_result" {
			return false
		}
	}
	return true
}

// toolsToAnthropic converts tool declarations to wire entries. With caching
// on, cache_control goes on the last tool only; that caches the whole list
// up to and including that entry.
func toolsToAnthropic(tools []ai.ToolDescription, promptCaching bool) []anthropicTool {
	entries := make([]anthropicTool, 0, len(tools))

	for _, tool := range tools {
		entry := anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			// input_schema is mandatory; parameterless tools get an empty
			// object schema.
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		}

		if tool.Parameters != nil {
			if schema, err := json.Marshal(tool.Parameters); err == nil {
				entry.InputSchema = schema
			}
		}

		entries = append(entries, entry)
	}

	if promptCaching && len(entries) > 0 {
		entries[len(entries)-1].CacheControl = &anthropicCacheControl{Type: "ephemeral"}
	}

	return entries
}

// toolChoiceToAnthropic maps the generic tool selection onto the wire types
// "auto", "any", and "tool". Nil means no constraint, which the API treats
// as auto. Forced values win over the other fields, mirroring the OpenAI
// adapter.
func toolChoiceToAnthropic(tc *ai.ToolChoice) *anthropicToolChoice {
	if tc == nil {
		return nil
	}

	if tc.ToolChoiceForced != "" {
		switch strings.ToLower(tc.ToolChoiceForced) {
		case "auto", "none":
			// There is no "none" on this wire; auto is the closest match and
			// keeps the reserved word from being read as a tool name.
			return &anthropicToolChoice{Type: "auto"}
		case "any", "required":
			return &anthropicToolChoice{Type: "any"}
		default:
			return &anthropicToolChoice{Type: "tool", Name: tc.ToolChoiceForced}
		}
	}

	if tc.AtLeastOneRequired {
		return &anthropicToolChoice{Type: "any"}
	}

	switch len(tc.RequiredTools) {
	case 0:
		return nil
	case 1:
		return &anthropicToolChoice{Type: "tool", Name: tc.RequiredTools[0].Name}
	default:
		// The wire cannot restrict to a subset; "any" is as close as it gets.
		return &anthropicToolChoice{Type: "any"}
	}
}

// responseToGeneric converts a Messages API response to the provider-agnostic
// shape. Text blocks join into one Content string separated by newlines, and
// thinking blocks join the same way into Reasoning. Unknown block types are
// skipped so future content kinds cannot break the mapping.
func responseToGeneric(response anthropicResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		ID:      response.ID,
		Model:   response.Model,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
	}

	var texts, thoughts []string
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "thinking":
			thoughts = append(thoughts, block.Thinking)
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ai.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: ai.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		}
	}

	result.Content = strings.Join(texts, "\n")
	result.Reasoning = strings.Join(thoughts, "\n")
	result.FinishReason = finishReasonFrom(response.StopReason)
	result.Usage = usageFrom(response.Usage)

	return result
}

// usageFrom maps the wire token counters. The cache counters are sub-counts
// of input tokens; they surface through CachedTokens so callers can watch
// cache effectiveness.
func usageFrom(usage anthropicUsage) *ai.Usage {
	return &ai.Usage{
		PromptTokens:     usage.InputTokens,
		CompletionTokens: usage.OutputTokens,
		TotalTokens:      usage.InputTokens + usage.OutputTokens,
		CachedTokens:     usage.CacheCreationInputTokens + usage.CacheReadInputTokens,
	}
}

// finishReasonFrom converts a stop_reason to the canonical finish reason.
// Unrecognized values read as a plain stop.
func finishReasonFrom(stopReason string) string {
	switch stopReason {
	case "tool_use":
		return ai.FinishReasonToolCalls
	case "max_tokens":
		return ai.FinishReasonLength
	default:
		return ai.FinishReasonStop
	}
}
