package anthropic

import (
	"slices"
	"strings"
)

// Published anthropic-beta header values. Capabilities.BetaFeatures accepts
// these constants as well as any future beta string verbatim.
const (
	// BetaInterleavedThinking lets thinking blocks interleave with tool use.
	// Models with adaptive thinking no longer need it.
	BetaInterleavedThinking = "interleaved-thinking-2025-05-14"

	// BetaAdvancedToolUse unlocks programmatic tool calling plus tool search.
	BetaAdvancedToolUse = "advanced-tool-use-2025-11-20"

	// BetaToolExamples allows input_examples on tool definitions.
	BetaToolExamples = "tool-examples-2025-10-29"

	// BetaCodeExecution turns on the server-side code execution sandbox.
	BetaCodeExecution = "code-execution-2025-08-25"

	// BetaContextManagement turns on the memory tool.
	BetaContextManagement = "context-management-2025-06-27"

	// BetaWebFetch allows dynamic filtering for server-side web fetches.
	BetaWebFetch = "web-fetch-2026-02-09"

	// BetaContextCompaction enables server-side compaction of long histories.
	BetaContextCompaction = "context-compaction-2026-02-14"
)

// Capabilities selects optional Messages API features. Everything defaults
// to off; unlike the OpenAI adapter there is no URL-based detection because
// a single endpoint serves every model. Set them through
// [AnthropicProvider.WithCapabilities].
type Capabilities struct {
	ExtendedThinking bool     // Request thinking blocks in responses
	ThinkingBudget   int      // Manual thinking budget; 0 means adaptive
	PromptCaching    bool     // Attach cache_control to system prompt and tools
	Effort           string   // Output effort: "low", "medium", "high", "max"
	Speed            string   // "fast" opts into the fast-mode research preview
	BetaFeatures     []string // Extra anthropic-beta values to send
}

// betaHeaderValue assembles the anthropic-beta header, empty when nothing is
// configured. ExtendedThinking pulls in the interleaved-thinking beta
// automatically unless the caller already listed it.
func (capabilities Capabilities) betaHeaderValue() string {
	features := slices.Clone(capabilities.BetaFeatures)

	if capabilities.ExtendedThinking && !slices.Contains(features, BetaInterleavedThinking) {
		features = append(features, BetaInterleavedThinking)
	}

	if len(features) == 0 {
		return ""
	}
	return strings.Join(features, ",")
}
