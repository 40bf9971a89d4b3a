package slogobs

import (
	"io"
	"log/slog"
	"os"
)

// Option configures the Observer at construction time.
type Option func(*config)

// config is the resolved construction state: either the handler knobs
// (format/level/output/colors) or a caller-supplied logger that bypasses them.
type config struct {
	format Format
	level  slog.Level
	output io.Writer
	colors bool
	logger *slog.Logger
}

// newConfig seeds the knobs from the environment (format and level from
// their env variables, output to stdout, colors off until the handler
// detects a terminal) and folds the options over them.
func newConfig(opts ...Option) *config {
	cfg := &config{
		format: GetFormatFromEnv(),
		level:  GetLogLevelFromEnv(),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithFormat selects the log output format.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum level a record needs to be emitted.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput directs log output to the given writer.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithColors switches ANSI colors on or off. Honored by the compact and
// pretty formats only.
func WithColors(enabled bool) Option {
	return func(c *config) {
		c.colors = enabled
	}
}

// WithLogger plugs in an existing slog.Logger. When set, the handler knobs
// (format, level, output, colors) are ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
