package client

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/parley-ai/parley/providers/ai"
)

// ParseResponseAs converts the text content of a response into T.
//
// Primitive targets (string, bool, int, uint, float) are converted with the
// strconv family; everything else goes through encoding/json. The conversion
// is strict: no JSON repair is attempted, so malformed model output surfaces
// as an error instead of being silently coerced. Use core/parse.ParseStringAs
// when lenient parsing is wanted.
func ParseResponseAs[T any](response *ai.ChatResponse) (T, error) {
	var result T

	if response == nil {
		return result, fmt.Errorf("response is nil")
	}

	content := response.Content

	switch reflect.TypeFor[T]().Kind() {
	case reflect.String:
		reflect.ValueOf(&result).Elem().SetString(content)
		return result, nil

	case reflect.Bool:
		val, err := strconv.ParseBool(content)
		if err != nil {
			return result, fmt.Errorf("failed to parse response as bool: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetBool(val)
		return result, nil

	case reflect.Float32, reflect.Float64:
		val, err := strconv.ParseFloat(content, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse response as float: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetFloat(val)
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val, err := strconv.ParseInt(content, 10, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse response as int: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetInt(val)
		return result, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		val, err := strconv.ParseUint(content, 10, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse response as uint: %w", err)
		}
		reflect.ValueOf(&result).Elem().SetUint(val)
		return result, nil

	default:
		if err := json.Unmarshal([]byte(content), &result); err != nil {
			return result, fmt.Errorf("failed to unmarshal response as %T: %w", result, err)
		}

		return result, nil
	}
}
