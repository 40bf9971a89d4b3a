// Package client provides the orchestration layer between raw LLM provider
// calls and complete conversations. It manages conversation state, the
// tool-execution loop, observability, middleware, and structured output in a
// single Client value.
//
// The primary entry point is [New], which accepts an [ai.Provider] and a set
// of functional options (e.g. [WithMemory], [WithTools], [WithSystemPrompt]).
// For type-safe structured responses, use [NewStructured] or [FromBaseClient].
//
// A conversation runs until the model answers without requesting tools, or
// until one of two bounds trips: the tool-roundtrip bound returns the last
// provider response as-is (unexecuted tool calls included), while the message
// bound fails the call with a [*MessageLimitError].
package client
