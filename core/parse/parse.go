package parse

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs parses model-produced text into a T.
//
// Primitive targets (string, bool, int, uint, float) are converted with
// strconv; when the raw conversion fails and the content turns out to be a
// schema-style {"type": ..., "value": ...} envelope, the envelope's value is
// converted instead.
//
// Complex targets (structs, maps, slices) go through a layered recovery
// pipeline:
//
//  1. Direct JSON unmarshaling of the full content.
//  2. Extraction of balanced JSON candidates from surrounding narrative
//     prose or markdown fences, each run through repair, schema unwrapping,
//     and array wrapping for slice targets.
//  3. Repair of the full content via jsonrepair (recovers truncated output
//     whose brackets never balance) followed by the same decoding ladder.
//
// So all of these succeed:
//
//	city, err := ParseStringAs[City](`{"name":"Lyon","population":522000}`)
//	city, err := ParseStringAs[City](`{name: 'Lyon', population: 522000}`)
//	city, err := ParseStringAs[City]("Sure, here is the data:\n```json\n{\"name\":\"Lyon\"}\n```")
//	count, err := ParseStringAs[int]("42")
func ParseStringAs[T any](content string) (T, error) {
	var result T
	target := reflect.ValueOf(&result).Elem()

	switch reflect.TypeFor[T]().Kind() {
	case reflect.String:
		// JSON-looking content may be an envelope around the actual string;
		// anything else is already the value.
		if len(content) > 0 && content[0] == '{' {
			if unwrapped, err := tryUnwrapPrimitive(content); err == nil {
				target.SetString(unwrapped)
				return result, nil
			}
		}
		target.SetString(content)
		return result, nil

	case reflect.Bool:
		val, err := primitiveValue(content, strconv.ParseBool)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as bool: %w", err)
		}
		target.SetBool(val)
		return result, nil

	case reflect.Float32, reflect.Float64:
		val, err := primitiveValue(content, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as float: %w", err)
		}
		target.SetFloat(val)
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, err := primitiveValue(content, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int: %w", err)
		}
		target.SetInt(val)
		return result, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, err := primitiveValue(content, func(s string) (uint64, error) {
			return strconv.ParseUint(s, 10, 64)
		})
		if err != nil {
			return result, fmt.Errorf("failed to parse content as uint: %w", err)
		}
		target.SetUint(val)
		return result, nil

	default:
		return parseComplex[T](content)
	}
}

// primitiveValue converts content with parse, retrying on the envelope's
// value when content arrives schema-wrapped. The error of the first attempt
// is reported when neither succeeds.
func primitiveValue[V any](content string, parse func(string) (V, error)) (V, error) {
	value, err := parse(content)
	if err == nil {
		return value, nil
	}
	if unwrapped, unwrapErr := tryUnwrapPrimitive(content); unwrapErr == nil {
		if retried, retryErr := parse(unwrapped); retryErr == nil {
			return retried, nil
		}
	}
	var zero V
	return zero, err
}

// parseComplex applies the layered recovery pipeline for JSON-shaped targets.
func parseComplex[T any](content string) (T, error) {
	var result T

	directErr := json.Unmarshal([]byte(content), &result)
	if directErr == nil {
		return result, nil
	}

	// The content was not plain JSON. LLMs routinely wrap the payload in
	// narrative prose or markdown fences: extract every balanced JSON
	// candidate and run each through the decoding ladder, outermost first.
	for _, candidate := range extractJSONCandidates(content) {
		if parsed, err := decodeCandidate[T](candidate); err == nil {
			return parsed, nil
		}
	}

	// No candidate decoded. Repair the whole content; this recovers
	// truncated output whose brackets never balance.
	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return result, fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: unmarshal error: %w, repair error: %v", result, directErr, repairErr)
	}

	parsed, err := decodeCandidate[T](repaired)
	if err != nil {
		return result, fmt.Errorf("failed to unmarshal repaired JSON as %T: %w (original content: %s, repaired: %s)", result, err, content, repaired)
	}
	return parsed, nil
}

// decodeCandidate attempts to unmarshal a single JSON candidate into T,
// escalating through repair, schema unwrapping, and array wrapping for
// slice targets.
func decodeCandidate[T any](candidate string) (T, error) {
	var result T

	directErr := json.Unmarshal([]byte(candidate), &result)
	if directErr == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		repaired = candidate
	}
	if err := json.Unmarshal([]byte(repaired), &result); err == nil {
		return result, nil
	}

	// Handle schema-confused output where values arrive wrapped in
	// {"type": ..., "value": ...} envelopes instead of plain values.
	if unwrapped, unwrapErr := unwrapSchemaValues(repaired); unwrapErr == nil {
		if err := json.Unmarshal([]byte(unwrapped), &result); err == nil {
			return result, nil
		}
	}

	// A bare object where a slice was requested: wrap it in an array.
	if reflect.TypeFor[T]().Kind() == reflect.Slice {
		if err := json.Unmarshal([]byte("["+repaired+"]"), &result); err == nil {
			return result, nil
		}
	}

	var zero T
	return zero, fmt.Errorf("no decoding strategy succeeded: %w", directErr)
}

// extractJSONCandidates scans the input for balanced JSON objects and arrays
// and returns every candidate substring, ordered by starting position so that
// outer structures come before the structures nested inside them. Bracket
// matching is string-aware: brackets inside double-quoted strings, including
// ones behind escaped quotes, do not count.
func extractJSONCandidates(input string) []string {
	type span struct {
		start int
		end   int
	}

	var spans []span
	var stack []int
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, i)
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			openIndex := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			open := input[openIndex]
			// Mismatched pairs are dropped: the open bracket was part of
			// malformed content, not a JSON candidate.
			if (c == '}' && open == '{') || (c == ']' && open == '[') {
				spans = append(spans, span{start: openIndex, end: i + 1})
			}
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	candidates := make([]string, 0, len(spans))
	for _, s := range spans {
		candidates = append(candidates, input[s.start:s.end])
	}
	return candidates
}

// tryUnwrapPrimitive recovers the payload of a {"type": ..., "value": ...}
// envelope in string form, for retrying a failed primitive conversion. Any
// other shape is an error.
func tryUnwrapPrimitive(content string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return "", err
	}

	value, hasValue := data["value"]
	if _, hasType := data["type"]; !hasType || !hasValue || len(data) != 2 {
		return "", fmt.Errorf("not a schema-wrapped value")
	}

	switch v := value.(type) {
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprintf("%v", v), nil
	default:
		// Nested structures render back to JSON.
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// unwrapSchemaValues rewrites JSON whose values arrive as schema envelopes
// into plain JSON. Models sometimes echo the schema's structure instead of
// filling it in, producing
//
//	{"name": {"type": "string", "value": "John"}, "age": {"type": "integer", "value": 30}}
//
// where {"name": "John", "age": 30} was meant. Every envelope at any depth
// is replaced by its value.
func unwrapSchemaValues(jsonStr string) (string, error) {
	var data any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return "", err
	}

	result, err := json.Marshal(unwrapValues(data))
	if err != nil {
		return "", err
	}
	return string(result), nil
}

// unwrapValues walks a decoded JSON tree replacing every {"type", "value"}
// envelope with its (recursively unwrapped) value.
func unwrapValues(data any) any {
	switch v := data.(type) {
	case map[string]any:
		if value, hasValue := v["value"]; hasValue && len(v) == 2 {
			if _, hasType := v["type"]; hasType {
				return unwrapValues(value)
			}
		}
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = unwrapValues(val)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = unwrapValues(val)
		}
		return result

	default:
		return data
	}
}
