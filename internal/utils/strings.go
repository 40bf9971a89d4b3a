package utils

import (
	"encoding/json"
	"fmt"
)

// DefaultMaxStringLength caps how much of a string is kept when truncating
// for log output and span attributes.
const DefaultMaxStringLength = 500

// JSONToString renders object as JSON for logging. Pass indent=true for
// pretty-printed output with two-space indentation. A value that cannot be
// marshaled yields a JSON error object instead of an error return, so the
// result can always be dropped straight into a log line.
func JSONToString(object any, indent ...bool) string {
	marshal := json.Marshal
	if len(indent) > 0 && indent[0] {
		marshal = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	encoded, err := marshal(object)
	if err != nil {
		return `{"error": "failed to marshal to JSON: ` + err.Error() + `"}`
	}
	return string(encoded)
}

// ToString renders object as compact JSON. It is shorthand for
// [JSONToString] without indentation.
func ToString(object any) string {
	return JSONToString(object)
}

// TruncateString caps s at maxLen characters. Truncated output carries a
// suffix with the original length so readers know how much was cut. A maxLen
// of zero or less falls back to [DefaultMaxStringLength].
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	if len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s... (truncated, total: %d chars)", s[:maxLen], len(s))
}

// TruncateStringDefault caps s at [DefaultMaxStringLength] characters.
func TruncateStringDefault(s string) string {
	return TruncateString(s, DefaultMaxStringLength)
}
