// Package anthropic implements the parley AI provider interface for the
// Anthropic Messages API. The wire format differs from the OpenAI family in
// ways the conversion layer absorbs: the system prompt is a top-level field,
// tool results travel as user-turn content blocks, thinking arrives as
// dedicated blocks, and streaming is event-typed SSE rather than uniform
// chunks.
//
// [New] builds a provider from ANTHROPIC_API_KEY and ANTHROPIC_API_BASE_URL;
// the With* builder methods override any of it afterwards. Extended
// thinking, prompt caching, effort, and beta headers are opted into through
// [AnthropicProvider.WithCapabilities]. Synchronous requests go through
// [AnthropicProvider.SendMessage], streaming through
// [AnthropicProvider.StreamMessage].
package anthropic
