// Package ai holds the provider-neutral vocabulary of the module: chat
// requests and responses, messages, tool call plumbing, token usage, and the
// interfaces every LLM backend implements. Adapters translate these types to
// and from their native wire formats, so nothing outside a provider package
// ever sees provider-specific shapes.
//
// [Provider] covers one synchronous exchange; backends that can stream also
// satisfy [StreamProvider] and deliver incremental deltas through a
// [ChatStream]. [NewSingleEventStream] bridges the gap for backends that
// cannot.
package ai
