// Package inmemory implements [memory.Provider] on top of a mutex-guarded
// slice held in process memory. History is lost when the process exits, which
// makes it suitable for tests, CLIs, and other single-process conversations
// that do not need durable storage. Call [New] to obtain an empty, ready-to-use
// [Store].
package inmemory
