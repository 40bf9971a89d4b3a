package client

import (
	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/internal/jsonschema"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/memory"
	"github.com/parley-ai/parley/providers/observability"
	"github.com/parley-ai/parley/providers/tool"
)

// ClientOptions collects everything configurable at client construction time.
// Use the With* functional options rather than filling this struct directly;
// the struct is exported so options can be composed and inspected in tests.
type ClientOptions struct {
	// MemoryProvider persists the conversation across calls. Without one the
	// client is stateless and ContinueConversation is unavailable.
	MemoryProvider memory.Provider

	// Observer receives traces, metrics and logs for every provider call.
	Observer observability.Provider

	// SystemPrompt is sent with every request unless overridden per call.
	SystemPrompt string

	// DefaultModel is used when a request does not name a model explicitly.
	DefaultModel string

	// Tools are registered in the client's catalog and offered to the model.
	Tools []tool.GenericTool

	// RequiredTools are registered like Tools and additionally advertised to
	// the provider as tools the model must consider calling.
	RequiredTools []tool.GenericTool

	// DefaultOutputSchema constrains the model output format on every request
	// unless overridden per call.
	DefaultOutputSchema *jsonschema.Schema

	// Executor, when set, runs tool calls through policy enforcement
	// (allow/deny lists, confirmation, sanitization, timeout) instead of
	// invoking tools directly.
	Executor *tool.Executor

	// MaxToolRoundtrips bounds how many tool-execution rounds a single
	// SendMessage may perform. Zero disables tool execution entirely. Nil
	// falls back to the Config value.
	MaxToolRoundtrips *int

	// MaxMessages bounds the total conversation length. Nil falls back to the
	// Config value.
	MaxMessages *int

	// Config supplies defaults for the limits above. Nil means config.Default().
	Config *config.Config

	// Middlewares wrap every provider call, outermost first.
	Middlewares []MiddlewareConfig

	// EnrichSystemPromptWithToolDescr appends a description of the registered
	// tools to the system prompt at construction time.
	EnrichSystemPromptWithToolDescr bool

	// EnrichSystemPromptWithOutputSchema appends the default output schema to
	// the system prompt at construction time.
	EnrichSystemPromptWithOutputSchema bool
}

// WithMemory configures the client to persist conversation history in the
// given provider. Required for ContinueConversation and
// StreamContinueConversation.
func WithMemory(provider memory.Provider) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.MemoryProvider = provider
	}
}

// WithObserver wires an observability provider into the client. Every
// provider call is traced, measured and logged through it.
func WithObserver(observer observability.Provider) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Observer = observer
	}
}

// WithSystemPrompt sets the system prompt sent with every request.
func WithSystemPrompt(prompt string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.SystemPrompt = prompt
	}
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.DefaultModel = model
	}
}

// WithTools registers tools in the client's catalog. Registered executable
// tools are called automatically when the model requests them.
func WithTools(tools ...tool.GenericTool) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithRequiredTools registers tools like WithTools and additionally marks
// them as required: the provider is told the model must consider calling at
// least one of them.
func WithRequiredTools(tools ...tool.GenericTool) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.RequiredTools = append(o.RequiredTools, tools...)
	}
}

// WithDefaultOutputSchema constrains the model output to the given JSON
// schema on every request. A per-call WithOutputSchema overrides it.
func WithDefaultOutputSchema(schema *jsonschema.Schema) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.DefaultOutputSchema = schema
	}
}

// WithExecutor routes tool calls through the given executor, applying its
// policy (allow/deny lists, confirmation hooks, argument sanitization,
// per-call timeout) to every execution.
func WithExecutor(executor *tool.Executor) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Executor = executor
	}
}

// WithMaxToolRoundtrips bounds how many tool-execution rounds a single
// SendMessage may perform before the loop stops and returns the last
// response as-is. Zero disables tool execution.
func WithMaxToolRoundtrips(n int) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.MaxToolRoundtrips = &n
	}
}

// WithMaxMessages bounds the total number of messages a conversation may
// accumulate. Exceeding the bound fails the call with a *MessageLimitError.
func WithMaxMessages(n int) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.MaxMessages = &n
	}
}

// WithConfig supplies the configuration snapshot the client takes its limit
// defaults from. Explicit WithMaxToolRoundtrips / WithMaxMessages options
// still win over the snapshot.
func WithConfig(cfg config.Config) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Config = &cfg
	}
}

// WithMiddleware appends middleware to the client's chain. Middlewares wrap
// every provider call in registration order, the first registered being
// outermost.
func WithMiddleware(configs ...MiddlewareConfig) func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.Middlewares = append(o.Middlewares, configs...)
	}
}

// WithEnrichSystemPromptWithToolsDescriptions appends a generated section
// describing the registered tools to the system prompt at construction time.
// Useful for providers or models that benefit from an explicit tool summary
// in addition to the structured tool definitions.
func WithEnrichSystemPromptWithToolsDescriptions() func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.EnrichSystemPromptWithToolDescr = true
	}
}

// WithEnrichSystemPromptWithOutputSchema appends the default output schema to
// the system prompt at construction time. Only effective when a default
// output schema is configured.
func WithEnrichSystemPromptWithOutputSchema() func(*ClientOptions) {
	return func(o *ClientOptions) {
		o.EnrichSystemPromptWithOutputSchema = true
	}
}

// sendMessageConfig collects the per-call overrides applied by
// SendMessageOption values. The zero value means "use the client defaults".
type sendMessageConfig struct {
	model                    string
	ephemeralSystemPrompt    string
	hasEphemeralSystemPrompt bool
	outputSchema             *jsonschema.Schema
	generationConfig         *ai.GenerationConfig
	toolChoice               string
	skipToolExecution        bool
	roundtripLimit           *int
	messageLimit             *int
}

// SendMessageOption customizes a single SendMessage / ContinueConversation /
// StreamMessage call without touching the client's defaults.
type SendMessageOption func(*sendMessageConfig)

// WithModel overrides the client's default model for this call.
func WithModel(model string) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.model = model
	}
}

// WithEphemeralSystemPrompt replaces the client's system prompt for this call
// only. The client's configured prompt is untouched and applies again on the
// next call. An empty string suppresses the system prompt entirely.
func WithEphemeralSystemPrompt(prompt string) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.ephemeralSystemPrompt = prompt
		c.hasEphemeralSystemPrompt = true
	}
}

// WithOutputSchema constrains the model output to the given JSON schema for
// this call, overriding any default output schema.
func WithOutputSchema(schema *jsonschema.Schema) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.outputSchema = schema
	}
}

// WithGenerationConfig sets sampling and length parameters for this call.
func WithGenerationConfig(cfg ai.GenerationConfig) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.generationConfig = &cfg
	}
}

// WithToolChoice constrains which tools the model may call for this request.
// Accepts the reserved strings "auto", "none" and "required", or the name of
// a single tool the model must call. "none" additionally disables local tool
// execution for the call.
func WithToolChoice(choice string) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.toolChoice = choice
	}
}

// WithoutToolExecution disables local tool execution for this call. Tools are
// still advertised to the provider; any tool calls in the response are
// returned to the caller unexecuted.
func WithoutToolExecution() SendMessageOption {
	return func(c *sendMessageConfig) {
		c.skipToolExecution = true
	}
}

// WithRoundtripLimit overrides the client's tool-roundtrip bound for this
// call. Zero disables tool execution for the call.
func WithRoundtripLimit(n int) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.roundtripLimit = &n
	}
}

// WithMessageLimit overrides the client's conversation length bound for this
// call.
func WithMessageLimit(n int) SendMessageOption {
	return func(c *sendMessageConfig) {
		c.messageLimit = &n
	}
}
