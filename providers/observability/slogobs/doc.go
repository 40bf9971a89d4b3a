// Package slogobs implements observability.Provider on top of the standard
// library's log/slog.
//
// Spans and metrics degrade to structured log lines: a span logs its start
// and end (with duration), counters and histograms log each recorded value.
// That makes the package a reasonable default for development and small
// deployments where a full tracing backend would be overkill.
//
// Construct an Observer with [New]. Output is tuned with [WithFormat] (compact
// single-line, tint-colorized pretty, or JSON), [WithLevel], [WithOutput], and
// [WithColors]; [WithLogger] bypasses the built-in handler entirely in favor
// of a caller-supplied slog.Logger. With no options, format and level come
// from the PARLEY_LOG_FORMAT and PARLEY_LOG_LEVEL environment variables.
package slogobs
