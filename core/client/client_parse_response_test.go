package client

import (
	"strings"
	"testing"

	"github.com/parley-ai/parley/providers/ai"
)

func responseWith(content string) *ai.ChatResponse {
	return &ai.ChatResponse{Content: content}
}

func TestParseResponseAs_Primitives(t *testing.T) {
	t.Run("string passes through verbatim", func(t *testing.T) {
		got, err := ParseResponseAs[string](responseWith("Hello, world!"))
		if err != nil {
			t.Fatalf("ParseResponseAs: %v", err)
		}
		if got != "Hello, world!" {
			t.Errorf("expected the raw content, got %q", got)
		}
	})

	t.Run("bool", func(t *testing.T) {
		tests := []struct {
			content string
			want    bool
			wantErr bool
		}{
			{content: "true", want: true},
			{content: "True", want: true},
			{content: "false", want: false},
			{content: "False", want: false},
			{content: "1", want: true},
			{content: "0", want: false},
			{content: "maybe", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.content, func(t *testing.T) {
				got, err := ParseResponseAs[bool](responseWith(tt.content))
				if tt.wantErr {
					if err == nil {
						t.Fatal("expected an error")
					}
					if !strings.Contains(err.Error(), "failed to parse response as bool") {
						t.Errorf("unexpected error message: %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("ParseResponseAs: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			})
		}
	})

	t.Run("int", func(t *testing.T) {
		tests := []struct {
			content string
			want    int
			wantErr bool
		}{
			{content: "42", want: 42},
			{content: "-17", want: -17},
			{content: "0", want: 0},
			{content: "not a number", wantErr: true},
			{content: "3.14", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.content, func(t *testing.T) {
				got, err := ParseResponseAs[int](responseWith(tt.content))
				if tt.wantErr {
					if err == nil {
						t.Fatal("expected an error")
					}
					if !strings.Contains(err.Error(), "failed to parse response as int") {
						t.Errorf("unexpected error message: %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("ParseResponseAs: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %d, got %d", tt.want, got)
				}
			})
		}
	})

	t.Run("int64 handles the full range", func(t *testing.T) {
		got, err := ParseResponseAs[int64](responseWith("9223372036854775807"))
		if err != nil {
			t.Fatalf("ParseResponseAs: %v", err)
		}
		if got != 9223372036854775807 {
			t.Errorf("expected max int64, got %d", got)
		}
	})

	t.Run("uint rejects negatives", func(t *testing.T) {
		tests := []struct {
			content string
			want    uint
			wantErr bool
		}{
			{content: "42", want: 42},
			{content: "0", want: 0},
			{content: "-17", wantErr: true},
			{content: "not a number", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.content, func(t *testing.T) {
				got, err := ParseResponseAs[uint](responseWith(tt.content))
				if tt.wantErr {
					if err == nil {
						t.Fatal("expected an error")
					}
					if !strings.Contains(err.Error(), "failed to parse response as uint") {
						t.Errorf("unexpected error message: %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("ParseResponseAs: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %d, got %d", tt.want, got)
				}
			})
		}
	})

	t.Run("float64", func(t *testing.T) {
		tests := []struct {
			content string
			want    float64
			wantErr bool
		}{
			{content: "3.14159", want: 3.14159},
			{content: "42", want: 42.0},
			{content: "-17.5", want: -17.5},
			{content: "1.23e10", want: 1.23e10},
			{content: "not a float", wantErr: true},
		}

		for _, tt := range tests {
			t.Run(tt.content, func(t *testing.T) {
				got, err := ParseResponseAs[float64](responseWith(tt.content))
				if tt.wantErr {
					if err == nil {
						t.Fatal("expected an error")
					}
					if !strings.Contains(err.Error(), "failed to parse response as float") {
						t.Errorf("unexpected error message: %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("ParseResponseAs: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %g, got %g", tt.want, got)
				}
			})
		}
	})
}

func TestParseResponseAs_JSONTargets(t *testing.T) {
	type verdict struct {
		Answer     string   `json:"answer"`
		Confidence float64  `json:"confidence"`
		Sources    []string `json:"sources,omitempty"`
	}

	t.Run("struct", func(t *testing.T) {
		tests := []struct {
			name    string
			content string
			want    verdict
			wantErr bool
		}{
			{
				name:    "complete payload",
				content: `{"answer":"42","confidence":0.95,"sources":["book1","book2"]}`,
				want:    verdict{Answer: "42", Confidence: 0.95, Sources: []string{"book1", "book2"}},
			},
			{
				name:    "missing optional field",
				content: `{"answer":"Yes","confidence":0.8}`,
				want:    verdict{Answer: "Yes", Confidence: 0.8},
			},
			{
				name:    "malformed JSON",
				content: `{answer: "broken json"}`,
				wantErr: true,
			},
			{
				name:    "empty content",
				content: "",
				wantErr: true,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := ParseResponseAs[verdict](responseWith(tt.content))
				if tt.wantErr {
					if err == nil {
						t.Fatal("expected an error")
					}
					return
				}
				if err != nil {
					t.Fatalf("ParseResponseAs: %v", err)
				}

				if got.Answer != tt.want.Answer {
					t.Errorf("expected answer %q, got %q", tt.want.Answer, got.Answer)
				}
				if got.Confidence != tt.want.Confidence {
					t.Errorf("expected confidence %g, got %g", tt.want.Confidence, got.Confidence)
				}
				if len(got.Sources) != len(tt.want.Sources) {
					t.Errorf("expected %d sources, got %d", len(tt.want.Sources), len(got.Sources))
				}
			})
		}
	})

	t.Run("nested struct", func(t *testing.T) {
		type address struct {
			Street string `json:"street"`
			City   string `json:"city"`
		}
		type person struct {
			Name    string  `json:"name"`
			Age     int     `json:"age"`
			Address address `json:"address"`
		}

		content := `{
			"name": "John Doe",
			"age": 30,
			"address": {"street": "123 Main St", "city": "Springfield"}
		}`

		got, err := ParseResponseAs[person](responseWith(content))
		if err != nil {
			t.Fatalf("ParseResponseAs: %v", err)
		}
		if got.Name != "John Doe" || got.Age != 30 {
			t.Errorf("unexpected person %+v", got)
		}
		if got.Address.City != "Springfield" {
			t.Errorf("unexpected city %q", got.Address.City)
		}
	})

	t.Run("map", func(t *testing.T) {
		got, err := ParseResponseAs[map[string]string](responseWith(`{"key1":"value1","key2":"value2","key3":"value3"}`))
		if err != nil {
			t.Fatalf("ParseResponseAs: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 entries, got %d", len(got))
		}
		if got["key1"] != "value1" {
			t.Errorf("expected key1=value1, got %q", got["key1"])
		}
	})

	t.Run("slice", func(t *testing.T) {
		got, err := ParseResponseAs[[]string](responseWith(`["apple","banana","cherry"]`))
		if err != nil {
			t.Fatalf("ParseResponseAs: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 items, got %d", len(got))
		}
		if got[0] != "apple" {
			t.Errorf("expected apple first, got %q", got[0])
		}
	})
}

func TestParseResponseAs_EdgeCases(t *testing.T) {
	t.Run("nil response", func(t *testing.T) {
		_, err := ParseResponseAs[string](nil)
		if err == nil {
			t.Fatal("expected an error for a nil response")
		}
		if !strings.Contains(err.Error(), "response is nil") {
			t.Errorf("unexpected error message: %v", err)
		}
	})

	t.Run("empty content is a valid string but invalid JSON", func(t *testing.T) {
		got, err := ParseResponseAs[string](responseWith(""))
		if err != nil {
			t.Errorf("empty string must parse: %v", err)
		}
		if got != "" {
			t.Errorf("expected an empty string, got %q", got)
		}

		type payload struct {
			Field string `json:"field"`
		}
		if _, err := ParseResponseAs[payload](responseWith("")); err == nil {
			t.Error("expected an error for empty JSON content")
		}
	})
}
