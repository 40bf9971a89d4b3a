// Package utils collects the small helpers the rest of the module leans on:
// JSON-over-HTTP plumbing for talking to provider APIs, plus pointer, string
// and timing conveniences.
//
// [DoPostSync] performs a JSON round-trip and decodes the reply into a typed
// struct; [DoPostStream] issues the same POST but leaves the body open for
// Server-Sent Events consumption. Both trace request lifecycle events on the
// span carried by the context, accept per-call header overrides and cap how
// much of a response they will buffer.
package utils
