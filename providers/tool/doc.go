// Package tool turns plain Go functions into tools an AI model can invoke.
//
// [NewTool] wraps a typed handler and derives the JSON schemas for its input
// and output from the type parameters, so the function signature alone
// defines the wire contract. [WithDescription] and [WithRequired] cover the
// optional metadata. A [Catalog] keeps a case-insensitive, concurrency-safe
// registry of tools, and an [Executor] runs cataloged tools under a [Policy]
// that converts rejections, handler errors, panics, and timeouts into failure
// [ai.ToolResult] values instead of letting them escape.
package tool
