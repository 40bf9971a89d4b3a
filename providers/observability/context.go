package observability

import "context"

// Unexported key types keep these context values collision-free.
type (
	spanKey     struct{}
	observerKey struct{}
)

// ContextWithSpan attaches span to the context for downstream components.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, spanKey{}, span)
}

// SpanFromContext returns the span attached to ctx, or nil when there is none.
func SpanFromContext(ctx context.Context) Span {
	if ctx == nil {
		return nil
	}
	span, _ := ctx.Value(spanKey{}).(Span)
	return span
}

// ContextWithObserver attaches observer to the context so providers invoked
// further down the call chain can log and trace against it.
func ContextWithObserver(ctx context.Context, observer Provider) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, observerKey{}, observer)
}

// ObserverFromContext returns the observer attached to ctx, or nil when there
// is none.
func ObserverFromContext(ctx context.Context) Provider {
	if ctx == nil {
		return nil
	}
	observer, _ := ctx.Value(observerKey{}).(Provider)
	return observer
}
