package observability

import "context"

// Provider bundles the three observability concerns behind one interface so
// a single option wires tracing, metrics, and logging into the client.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer opens spans. Implementations decide what a span amounts to: a real
// distributed trace, structured log lines, or nothing at all.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is one unit of work in a trace. All methods must be safe for
// concurrent use; the client and its providers annotate the same span from
// different goroutines during streaming.
type Span interface {
	// End closes the span. Calls after the first are implementation-defined.
	End()
	// SetAttributes attaches metadata to the span.
	SetAttributes(attrs ...Attribute)
	// SetStatus records how the spanned work turned out.
	SetStatus(code StatusCode, description string)
	// RecordError marks the span as having observed err. A nil err is a no-op.
	RecordError(err error)
	// AddEvent records a point-in-time occurrence within the span.
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the terminal state of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Metrics hands out named instruments. Repeated calls with the same name
// should return the same instrument.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter is a monotonically increasing value.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records a distribution of observed values.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// Logger is leveled structured logging. Trace sits below Debug and is meant
// for per-event noise like individual stream chunks.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}
