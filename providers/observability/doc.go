// Package observability defines the tracing, metrics, and logging contracts
// the rest of the library records against, without binding to any backend.
//
// [Provider] composes [Tracer], [Metrics], and [Logger] into one injectable
// dependency. The client's middleware stores the active [Provider] and [Span]
// in the request context via [ContextWithObserver] and [ContextWithSpan];
// AI providers and tools pick them up with [ObserverFromContext] and
// [SpanFromContext] to annotate the same trace.
//
// Attribute keys, span names, event names, and metric names live in
// semconv.go as constants; use those rather than ad-hoc strings so output
// from different components correlates. The slogobs subpackage has a ready
// log/slog-backed implementation.
package observability
