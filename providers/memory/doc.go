// Package memory declares the [Provider] interface a conversation history
// store has to satisfy. The core client appends every turn to its provider
// and replays the history on each request, so an implementation only needs
// ordered storage plus a handful of read operations. Writes are
// fire-and-forget; reads return errors so database-backed stores can report
// failures. A process-local implementation lives in the sibling package
// [github.com/parley-ai/parley/providers/memory/inmemory].
package memory
