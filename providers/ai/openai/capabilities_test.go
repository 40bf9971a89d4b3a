package openai

import "testing"

func TestDetectCapabilities(t *testing.T) {
	tests := []struct {
		name             string
		baseURL          string
		wantToolCallMode ToolCallMode
		wantStructured   bool
		wantReasoning    bool
	}{
		{
			name:             "openai api",
			baseURL:          "https://api.openai.com/v1",
			wantToolCallMode: ToolCallModeTools,
			wantStructured:   true,
			wantReasoning:    true,
		},
		{
			name:             "azure openai",
			baseURL:          "https://myresource.openai.azure.com",
			wantToolCallMode: ToolCallModeTools,
			wantStructured:   true,
			wantReasoning:    false,
		},
		{
			name:             "ollama local",
			baseURL:          "http://localhost:11434/v1",
			wantToolCallMode: ToolCallModeBoth,
			wantStructured:   false,
			wantReasoning:    false,
		},
		{
			name:             "openrouter",
			baseURL:          "https://openrouter.ai/api/v1",
			wantToolCallMode: ToolCallModeTools,
			wantStructured:   true,
			wantReasoning:    false,
		},
		{
			name:             "unknown host gets conservative defaults",
			baseURL:          "http://127.0.0.1:8080/v1",
			wantToolCallMode: ToolCallModeTools,
			wantStructured:   false,
			wantReasoning:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := detectCapabilities(tt.baseURL)

			if caps.ToolCallMode != tt.wantToolCallMode {
				t.Errorf("ToolCallMode = %q, want %q", caps.ToolCallMode, tt.wantToolCallMode)
			}
			if caps.SupportsStructuredOutputs != tt.wantStructured {
				t.Errorf("SupportsStructuredOutputs = %v, want %v", caps.SupportsStructuredOutputs, tt.wantStructured)
			}
			if caps.SupportsReasoning != tt.wantReasoning {
				t.Errorf("SupportsReasoning = %v, want %v", caps.SupportsReasoning, tt.wantReasoning)
			}
			if !caps.SupportsStreaming {
				t.Error("expected SupportsStreaming for every detected host")
			}
		})
	}
}

func TestWithBaseURLRedetectsCapabilities(t *testing.T) {
	p := New().WithBaseURL("http://localhost:11434/v1").(*OpenAIProvider)

	if p.GetCapabilities().ToolCallMode != ToolCallModeBoth {
		t.Errorf("expected ollama detection after WithBaseURL, got %q", p.GetCapabilities().ToolCallMode)
	}

	// An explicit override wins over detection.
	p = p.WithCapabilities(Capabilities{ToolCallMode: ToolCallModeFunctions})
	if p.GetCapabilities().ToolCallMode != ToolCallModeFunctions {
		t.Errorf("expected explicit capabilities to stick, got %q", p.GetCapabilities().ToolCallMode)
	}
}
