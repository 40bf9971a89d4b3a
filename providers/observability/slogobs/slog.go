package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-ai/parley/providers/observability"
)

// Observer implements observability.Provider on top of log/slog. Spans and
// metrics become structured log entries, which keeps the whole telemetry
// surface inspectable with nothing but a log reader.
type Observer struct {
	logger  *slog.Logger
	metrics *metricSet
}

var _ observability.Provider = (*Observer)(nil)

// New builds an Observer. With no options the format and level come from the
// environment (PARLEY_LOG_FORMAT, PARLEY_LOG_LEVEL), output is stdout, and
// colors follow terminal detection.
//
//	observer := slogobs.New()
//
//	observer := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatJSON),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
//
//	observer := slogobs.New(slogobs.WithLogger(myLogger))
func New(opts ...Option) *Observer {
	cfg := newConfig(opts...)

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(NewHandler(&HandlerOptions{
			Format: cfg.format,
			Level:  cfg.level,
			Output: cfg.output,
			Colors: cfg.colors,
		}))
	}

	return &Observer{
		logger:  logger,
		metrics: &metricSet{},
	}
}

// kv converts observability attributes to slog attrs, appending to base.
func kv(base []slog.Attr, attrs []observability.Attribute) []slog.Attr {
	for _, attr := range attrs {
		base = append(base, slog.Any(attr.Key, attr.Value))
	}
	return base
}

// StartSpan opens a named span, logging a span.start event at debug level.
// The context comes back unchanged; the span records its own start time and
// logs the elapsed duration when End is called.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	base := []slog.Attr{
		slog.String("span", name),
		slog.String("event", "span.start"),
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "Span started", kv(base, attrs)...)

	return ctx, &span{
		name:    name,
		started: time.Now(),
		logger:  o.logger,
		attrs:   attrs,
	}
}

type span struct {
	name    string
	started time.Time
	logger  *slog.Logger

	mu    sync.Mutex
	attrs []observability.Attribute
}

// End logs a span.end event carrying the elapsed duration and every
// attribute accumulated on the span. Debug level keeps span chatter out of
// normal output.
func (s *span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := []slog.Attr{
		slog.String("span", s.name),
		slog.String("event", "span.end"),
		slog.Duration("duration", time.Since(s.started)),
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span ended", kv(base, s.attrs)...)
}

func (s *span) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

// SetStatus stores the terminal status as attributes, so it rides along on
// the span.end entry.
func (s *span) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "unset"
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
	}

	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

// RecordError attaches the error to the span and logs it immediately at
// error level, so failures surface even before End runs.
func (s *span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs = append(s.attrs, observability.Error(err))
	s.logger.LogAttrs(context.Background(), slog.LevelError, "Span error",
		slog.String("span", s.name),
		slog.String("event", "error"),
		slog.String("error", err.Error()),
	)
}

// AddEvent logs a point-in-time event inside the span at debug level.
func (s *span) AddEvent(name string, attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := []slog.Attr{
		slog.String("span", s.name),
		slog.String("event", name),
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span event", kv(base, attrs)...)
}

// Counter returns the named counter. The same name always yields the same
// instance, so callers can fetch it on every use without caching.
func (o *Observer) Counter(name string) observability.Counter {
	return o.metrics.counter(name, o.logger)
}

// Histogram returns the named histogram, with the same identity guarantee
// as Counter.
func (o *Observer) Histogram(name string) observability.Histogram {
	return o.metrics.histogram(name, o.logger)
}

// metricSet interns counters and histograms by name. The zero value is
// ready to use.
type metricSet struct {
	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
}

func (m *metricSet) counter(name string, logger *slog.Logger) *counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counters == nil {
		m.counters = make(map[string]*counter)
	}
	c, ok := m.counters[name]
	if !ok {
		c = &counter{name: name, logger: logger}
		m.counters[name] = c
	}
	return c
}

func (m *metricSet) histogram(name string, logger *slog.Logger) *histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.histograms == nil {
		m.histograms = make(map[string]*histogram)
	}
	h, ok := m.histograms[name]
	if !ok {
		h = &histogram{name: name, logger: logger}
		m.histograms[name] = h
	}
	return h
}

type counter struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	value  int64
}

// Add accumulates the delta and logs the running total at debug level.
func (c *counter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.mu.Lock()
	c.value += value
	total := c.value
	c.mu.Unlock()

	base := []slog.Attr{
		slog.String("metric", c.name),
		slog.String("type", "counter"),
		slog.Int64("value", total),
		slog.Int64("delta", value),
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "Counter", kv(base, attrs)...)
}

type histogram struct {
	name   string
	logger *slog.Logger
}

// Record logs one observation at debug level. Nothing is aggregated; a log
// pipeline downstream can bucket the samples if needed.
func (h *histogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	base := []slog.Attr{
		slog.String("metric", h.name),
		slog.String("type", "histogram"),
		slog.Float64("value", value),
	}
	h.logger.LogAttrs(ctx, slog.LevelDebug, "Histogram", kv(base, attrs)...)
}

// Trace logs below debug. Records at this level are dropped unless the
// level is explicitly opened up via WithLevel or PARLEY_LOG_LEVEL.
func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug-4, msg, attrs...)
}

// Debug logs diagnostic detail for development.
func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs routine operational events.
func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs recoverable but suspicious conditions.
func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs failures that affected the current operation.
func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelError, msg, attrs...)
}

func (o *Observer) log(ctx context.Context, level slog.Level, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, level, msg, kv(nil, attrs)...)
}
