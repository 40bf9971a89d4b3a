package slogobs

import (
	"os"
	"strings"
)

// Format selects how log records are rendered.
type Format string

const (
	// FormatCompact renders one line per record with attributes collected
	// into a trailing JSON object, for example:
	//
	//	2025-11-03 10:40:35  INFO request finished → {"status":200}
	//
	// This is the default.
	FormatCompact Format = "compact"

	// FormatPretty is a colorized single-line console format backed by
	// github.com/lmittmann/tint, meant for local debugging.
	FormatPretty Format = "pretty"

	// FormatJSON emits each record as one JSON object per line, the usual
	// choice for production log aggregation.
	FormatJSON Format = "json"
)

// ParseFormat maps a string to its Format, ignoring case and surrounding
// whitespace. Unknown values fall back to FormatCompact.
func ParseFormat(s string) Format {
	switch f := Format(strings.TrimSpace(strings.ToLower(s))); f {
	case FormatCompact, FormatPretty, FormatJSON:
		return f
	default:
		return FormatCompact
	}
}

// GetFormatFromEnv reads the log format from PARLEY_LOG_FORMAT, falling back
// to LOG_FORMAT. Returns FormatCompact when neither is set.
func GetFormatFromEnv() Format {
	for _, key := range []string{"PARLEY_LOG_FORMAT", "LOG_FORMAT"} {
		if v := os.Getenv(key); v != "" {
			return ParseFormat(v)
		}
	}
	return FormatCompact
}

func (f Format) String() string {
	return string(f)
}
