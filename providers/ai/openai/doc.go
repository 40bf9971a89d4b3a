// Package openai implements the parley AI provider interface for
// OpenAI-compatible APIs. It speaks the universal /v1/chat/completions
// endpoint, which is the wire format shared by OpenAI itself and by
// compatible hosts such as Azure OpenAI, Ollama, and OpenRouter.
//
// [New] builds a provider from OPENAI_API_KEY and OPENAI_API_BASE_URL and
// infers a [Capabilities] profile from the host in the URL; the With* builder
// methods override any of these after construction. Synchronous requests go
// through [OpenAIProvider.SendMessage]; [OpenAIProvider.StreamMessage] yields
// the same response incrementally as an [ai.ChatStream] over SSE events.
package openai
