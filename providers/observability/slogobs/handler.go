package slogobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

// Handler is a slog.Handler producing compact single-line or JSON output.
// The pretty format is not handled here; NewHandler delegates it to tint.
type Handler struct {
	format Format
	level  slog.Level
	output io.Writer
	colors bool
	mu     sync.Mutex
	attrs  []slog.Attr
	groups []string
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// Format selects compact, pretty, or json output.
	Format Format
	// Level is the minimum level a record needs to be written.
	Level slog.Level
	// Output receives the log lines. Defaults to os.Stdout.
	Output io.Writer
	// Colors enables ANSI colors for the compact and pretty formats.
	Colors bool
}

// NewHandler builds a slog.Handler for the given options. Compact and JSON
// use this package's Handler; pretty returns a tint handler for colorized
// console output.
func NewHandler(opts *HandlerOptions) slog.Handler {
	var o HandlerOptions
	if opts != nil {
		o = *opts
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.Format == "" {
		o.Format = FormatCompact
	}
	if !o.Colors && o.Format != FormatJSON {
		if f, ok := o.Output.(*os.File); ok {
			o.Colors = isTerminal(f)
		}
	}

	if o.Format == FormatPretty {
		return tint.NewHandler(o.Output, &tint.Options{
			Level:      o.Level,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    !o.Colors,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
	}

	return &Handler{
		format: o.Format,
		level:  o.Level,
		output: o.Output,
		colors: o.Colors,
	}
}

// Enabled reports whether records at level are written.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle writes one record in the configured format.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.format == FormatJSON {
		return h.writeJSON(r)
	}
	return h.writeCompact(r)
}

// clone copies the handler so WithAttrs and WithGroup never mutate shared
// state. The mutex is deliberately not carried over.
func (h *Handler) clone() *Handler {
	return &Handler{
		format: h.format,
		level:  h.level,
		output: h.output,
		colors: h.colors,
		attrs:  h.attrs,
		groups: h.groups,
	}
}

// WithAttrs returns a handler that attaches attrs to every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

// WithGroup returns a handler that qualifies attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(append([]string{}, h.groups...), name)
	return next
}

// writeCompact renders one line:
//
//	2006-01-02 15:04:05 LEVEL Message → {"key":"value"}
//
// Attributes become a single JSON object after the arrow; records without
// attributes get no arrow at all.
func (h *Handler) writeCompact(r slog.Record) error {
	var line bytes.Buffer
	line.WriteString(r.Time.Format("2006-01-02 15:04:05"))

	level := fmt.Sprintf("%5s", levelString(r.Level))
	if h.colors {
		level = levelColor(r.Level) + level + colorReset
	}
	line.WriteByte(' ')
	line.WriteString(level)
	line.WriteByte(' ')
	line.WriteString(r.Message)

	if attrs := h.flatten(r); len(attrs) > 0 {
		line.WriteString(" → ")
		if encoded, err := json.Marshal(attrs); err != nil {
			line.WriteString("[json-error]")
		} else {
			line.Write(encoded)
		}
	}
	line.WriteByte('\n')

	_, err := h.output.Write(line.Bytes())
	return err
}

// writeJSON renders one record as a single JSON object with time, level, and
// msg fields plus the flattened attributes at the top level.
func (h *Handler) writeJSON(r slog.Record) error {
	data := map[string]any{
		"time":  r.Time.Format("2006-01-02T15:04:05"),
		"level": levelString(r.Level),
		"msg":   r.Message,
	}
	for key, value := range h.flatten(r) {
		data[key] = value
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = h.output.Write(append(encoded, '\n'))
	return err
}

// flatten merges the handler's stored attributes with the record's into one
// map, qualifying keys with the open group names.
func (h *Handler) flatten(r slog.Record) map[string]any {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	attrs := make(map[string]any)
	for _, attr := range h.attrs {
		attrs[prefix+attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		attrs[prefix+attr.Key] = attr.Value.Any()
		return true
	})
	return attrs
}

// levelString names a level, mapping anything below debug to TRACE.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func levelColor(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return colorGray
	case level < slog.LevelInfo:
		return colorBlue
	case level < slog.LevelWarn:
		return colorGreen
	case level < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}

// isTerminal reports whether f is a character device. Stat failures count
// as not a terminal.
func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
