package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/core/overview"
	"github.com/parley-ai/parley/internal/jsonschema"
	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/memory"
	"github.com/parley-ai/parley/providers/observability"
	"github.com/parley-ai/parley/providers/tool"
)

// Client is the conversation engine. It drives the send / tool-execution loop
// against an LLM provider: each response that requests tools is executed
// locally, the results are fed back to the model, and the loop repeats until
// the model answers without tool calls or a configured bound trips.
//
// A Client is stateless unless a memory provider is configured; with one, the
// conversation accumulates across calls and can be resumed with
// ContinueConversation. All methods are safe for concurrent use as long as
// the configured providers are.
type Client struct {
	llmProvider    ai.Provider
	memoryProvider memory.Provider
	observer       observability.Provider

	systemPrompt string
	defaultModel string

	toolCatalog         *tool.Catalog
	requiredTools       []ai.ToolDescription
	defaultOutputSchema *jsonschema.Schema
	executor            *tool.Executor

	maxToolRoundtrips int
	maxMessages       int
	warnThreshold     float64

	// Middleware chains. Nil when no middleware is configured; the client
	// then calls the provider directly.
	sendChain   SendFunc
	streamChain StreamFunc
}

// New creates a Client around the given LLM provider. Options configure
// memory, observability, tools, output schemas, middleware and the loop
// bounds; see the With* functions.
func New(llmProvider ai.Provider, opts ...func(*ClientOptions)) (*Client, error) {
	if llmProvider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	options := &ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	for i, mw := range options.Middlewares {
		if mw.Send == nil {
			return nil, fmt.Errorf("middleware[%d] has a nil Send field", i)
		}
	}

	catalog := tool.NewCatalogWithTools(options.Tools...)
	catalog.AddTools(options.RequiredTools...)

	requiredTools := make([]ai.ToolDescription, 0, len(options.RequiredTools))
	for _, t := range options.RequiredTools {
		requiredTools = append(requiredTools, t.ToolInfo())
	}

	systemPrompt := options.SystemPrompt
	if options.EnrichSystemPromptWithToolDescr {
		systemPrompt = enrichSystemPromptWithTools(systemPrompt, catalog.Descriptions())
	}
	if options.EnrichSystemPromptWithOutputSchema && options.DefaultOutputSchema != nil {
		systemPrompt = enrichSystemPromptWithOutputSchema(systemPrompt, options.DefaultOutputSchema)
	}

	cfg := config.Default()
	if options.Config != nil {
		cfg = *options.Config
	}

	maxToolRoundtrips := cfg.DefaultMaxToolRoundtrips
	if options.MaxToolRoundtrips != nil {
		maxToolRoundtrips = *options.MaxToolRoundtrips
	}

	maxMessages := cfg.DefaultMaxMessages
	if options.MaxMessages != nil {
		maxMessages = *options.MaxMessages
	}

	middlewares := options.Middlewares
	if options.Observer != nil {
		// Observability wraps everything else so it sees the request exactly
		// as the provider will.
		middlewares = append([]MiddlewareConfig{NewObservabilityMiddleware(options.Observer, options.DefaultModel)}, middlewares...)
	}

	c := &Client{
		llmProvider:         llmProvider,
		memoryProvider:      options.MemoryProvider,
		observer:            options.Observer,
		systemPrompt:        systemPrompt,
		defaultModel:        options.DefaultModel,
		toolCatalog:         catalog,
		requiredTools:       requiredTools,
		defaultOutputSchema: options.DefaultOutputSchema,
		executor:            options.Executor,
		maxToolRoundtrips:   maxToolRoundtrips,
		maxMessages:         maxMessages,
		warnThreshold:       cfg.WarnThreshold,
	}

	if len(middlewares) > 0 {
		c.sendChain = newSendPipeline(llmProvider, middlewares)

		for _, mw := range middlewares {
			if mw.Stream != nil {
				c.streamChain = newStreamPipeline(llmProvider, middlewares)
				break
			}
		}
	}

	return c, nil
}

// Memory returns the configured memory provider, or nil for a stateless
// client.
func (c *Client) Memory() memory.Provider {
	return c.memoryProvider
}

// Observer returns the configured observability provider, or nil.
func (c *Client) Observer() observability.Provider {
	return c.observer
}

// ToolCatalog returns a copy of the client's tool catalog. Mutating the
// returned catalog does not affect the client.
func (c *Client) ToolCatalog() *tool.Catalog {
	return c.toolCatalog.Clone()
}

// AppendToSystemPrompt appends text to the client's system prompt. Applies to
// all subsequent calls.
func (c *Client) AppendToSystemPrompt(text string) {
	c.systemPrompt += text
}

// SetDefaultOutputSchema replaces the default output schema applied to every
// request. A per-call WithOutputSchema still overrides it.
func (c *Client) SetDefaultOutputSchema(schema *jsonschema.Schema) {
	c.defaultOutputSchema = schema
}

// SendMessage sends a user message and runs the conversation until the model
// produces a terminal response, executing requested tools along the way.
//
// With a memory provider configured, the stored history is prepended to the
// request and the user message is persisted; the model's final response is
// not auto-saved. Tool roundtrips executed during the call persist their
// intermediate assistant and tool messages so a later ContinueConversation
// sees the full exchange.
//
// The prompt must be non-empty; use ContinueConversation to run the model
// over existing history without new input.
func (c *Client) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt cannot be empty, use ContinueConversation() to run the model over the existing history")
	}

	messages, err := c.startConversation(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return c.converse(ctx, messages, applySendOptions(opts))
}

// ContinueConversation runs the model over the history stored in memory
// without adding a new user message. Useful after injecting messages into
// memory directly, or to let the model take another turn.
//
// Requires a memory provider; nothing new is persisted except intermediate
// tool-roundtrip messages.
func (c *Client) ContinueConversation(ctx context.Context, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	if c.memoryProvider == nil {
		return nil, fmt.Errorf("ContinueConversation requires a memory provider, configure one with WithMemory()")
	}

	messages, err := c.memoryProvider.AllMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages from memory: %w", err)
	}

	return c.converse(ctx, messages, applySendOptions(opts))
}

// startConversation assembles the initial message slice for a SendMessage
// call: stored history (when memory is configured) plus the new user message,
// which is also persisted.
func (c *Client) startConversation(ctx context.Context, prompt string) ([]ai.Message, error) {
	var messages []ai.Message

	if c.memoryProvider != nil {
		history, err := c.memoryProvider.AllMessages(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve messages from memory: %w", err)
		}
		messages = history
	}

	userMessage := ai.Message{Role: ai.RoleUser, Content: prompt}
	if c.memoryProvider != nil {
		c.memoryProvider.AppendMessage(ctx, &userMessage)
	}

	return append(messages, userMessage), nil
}

func applySendOptions(opts []SendMessageOption) *sendMessageConfig {
	callCfg := &sendMessageConfig{}
	for _, opt := range opts {
		opt(callCfg)
	}

	return callCfg
}

// converse is the engine loop. Each iteration checks the message bound,
// sends the conversation to the provider, and either returns the response
// (terminal) or executes the requested tools and goes around again.
//
// Usage bookkeeping: roundtrips the loop continues past accumulate into a
// running total that is folded into the terminal response's Usage, with the
// per-roundtrip history exposed as RoundtripUsage. When the roundtrip bound
// trips instead, the last response is returned exactly as the provider
// produced it: its own single-call Usage, no history, unexecuted tool calls
// intact. That keeps "model finished" and "client gave up" distinguishable
// from the outside.
func (c *Client) converse(ctx context.Context, messages []ai.Message, callCfg *sendMessageConfig) (*ai.ChatResponse, error) {
	maxToolRoundtrips := c.maxToolRoundtrips
	if callCfg.roundtripLimit != nil {
		maxToolRoundtrips = *callCfg.roundtripLimit
	}

	maxMessages := c.maxMessages
	if callCfg.messageLimit != nil {
		maxMessages = *callCfg.messageLimit
	}

	// Snapshot the catalog so tools registered or removed mid-flight on the
	// client do not affect an in-progress conversation.
	catalog := c.toolCatalog.Clone()

	executionOverview := overview.OverviewFromContext(&ctx)
	executionOverview.StartExecution()
	defer executionOverview.EndExecution()

	var accumulatedUsage ai.Usage
	var usageHistory []ai.Usage
	roundtrips := 0
	warned := false

	for {
		if len(messages) > maxMessages {
			return nil, &MessageLimitError{Count: len(messages), Limit: maxMessages, Roundtrip: roundtrips}
		}

		if !warned && c.observer != nil && float64(len(messages)) >= c.warnThreshold*float64(maxMessages) {
			c.observer.Warn(ctx, "conversation approaching message limit",
				observability.Int("message_count", len(messages)),
				observability.Int("message_limit", maxMessages),
			)
			warned = true
		}

		request := c.buildRequest(catalog, messages, callCfg)
		executionOverview.AddRequest(&request)

		response, err := c.send(ctx, request)
		if err != nil {
			return nil, err
		}

		executionOverview.AddResponse(response)
		if response.Usage != nil {
			executionOverview.IncludeUsage(response.Usage)
		}

		if c.conversationDone(catalog, callCfg, response) {
			if accumulatedUsage != (ai.Usage{}) && response.Usage != nil {
				folded := accumulatedUsage
				folded.Add(*response.Usage)
				response.Usage = &folded
				response.RoundtripUsage = usageHistory
			}

			return response, nil
		}

		roundtrips++
		if roundtrips > maxToolRoundtrips {
			return response, nil
		}

		if response.Usage != nil {
			usageHistory = append(usageHistory, *response.Usage)
			accumulatedUsage.Add(*response.Usage)
		}
		executionOverview.AddToolCalls(response.ToolCalls)

		messages = c.appendMessage(ctx, messages, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			messages = c.appendMessage(ctx, messages, ai.Message{
				Role:       ai.RoleTool,
				Content:    c.executeToolCall(ctx, catalog, call),
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
	}
}

// conversationDone reports whether the response is terminal for the loop.
// A response without tool calls always is. A response with tool calls is
// terminal when the caller disabled execution for this call, when the
// catalog has nothing executable, or when one of the called tools is
// registered declaration-only: in those cases the tool calls are handed back
// to the caller unexecuted.
func (c *Client) conversationDone(catalog *tool.Catalog, callCfg *sendMessageConfig, response *ai.ChatResponse) bool {
	if len(response.ToolCalls) == 0 {
		return true
	}

	if callCfg.skipToolExecution || callCfg.toolChoice == "none" {
		return true
	}

	if !catalog.HasExecutable() {
		return true
	}

	for _, call := range response.ToolCalls {
		if registered, ok := catalog.Get(call.Function.Name); ok && !registered.IsExecutable() {
			return true
		}
	}

	return false
}

// executeToolCall resolves and runs a single tool call, returning the text to
// feed back to the model. Failures never abort the conversation: they are
// reported to the model as "Error: ..." content so it can recover or try a
// different tool.
func (c *Client) executeToolCall(ctx context.Context, catalog *tool.Catalog, call ai.ToolCall) string {
	name := call.Function.Name

	registered, ok := catalog.Get(name)
	if !ok {
		return fmt.Sprintf("Error: tool %q not found", name)
	}

	if c.executor != nil {
		result := c.executor.Execute(ctx, registered, call)
		if !result.Success {
			return "Error: " + result.Message
		}

		if s, ok := result.Data.(string); ok {
			return s
		}

		return utils.ToString(result.Data)
	}

	output, err := registered.Call(ctx, call.Function.Arguments)
	if err != nil {
		return "Error: " + err.Error()
	}

	return output
}

// appendMessage appends a message to the working slice and, when memory is
// configured, persists it.
func (c *Client) appendMessage(ctx context.Context, messages []ai.Message, message ai.Message) []ai.Message {
	if c.memoryProvider != nil {
		c.memoryProvider.AppendMessage(ctx, &message)
	}

	return append(messages, message)
}

// buildRequest assembles the provider request from client defaults and
// per-call overrides.
func (c *Client) buildRequest(catalog *tool.Catalog, messages []ai.Message, callCfg *sendMessageConfig) ai.ChatRequest {
	request := ai.ChatRequest{
		Model:            c.defaultModel,
		Messages:         messages,
		SystemPrompt:     c.systemPrompt,
		GenerationConfig: callCfg.generationConfig,
	}

	if callCfg.model != "" {
		request.Model = callCfg.model
	}
	if callCfg.hasEphemeralSystemPrompt {
		request.SystemPrompt = callCfg.ephemeralSystemPrompt
	}

	if catalog.Size() > 0 {
		request.Tools = catalog.Descriptions()
	}

	schema := c.defaultOutputSchema
	if callCfg.outputSchema != nil {
		schema = callCfg.outputSchema
	}
	if schema != nil {
		request.ResponseFormat = &ai.ResponseFormat{
			OutputSchema: schema,
			Type:         "json_schema",
		}
	}

	if callCfg.toolChoice != "" || len(c.requiredTools) > 0 {
		request.ToolChoice = &ai.ToolChoice{
			ToolChoiceForced:   callCfg.toolChoice,
			AtLeastOneRequired: len(c.requiredTools) > 0,
			RequiredTools:      c.requiredTools,
		}
	}

	return request
}

// send routes a request through the middleware chain when one is configured,
// otherwise straight to the provider.
func (c *Client) send(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	if c.sendChain != nil {
		return c.sendChain(ctx, request)
	}

	return c.llmProvider.SendMessage(ctx, request)
}

// enrichSystemPromptWithTools appends a human-readable tool summary to the
// system prompt. With no tools the prompt is returned unchanged.
func enrichSystemPromptWithTools(basePrompt string, tools []ai.ToolDescription) string {
	if len(tools) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	if basePrompt != "" {
		b.WriteString("\n\n")
	}

	b.WriteString("## Available Tools\n\n")
	b.WriteString("You have access to the following tools via function calling:\n\n")

	for i, t := range tools {
		b.WriteString(fmt.Sprintf("%d. %s", i+1, t.Name))
		if t.Description != "" {
			b.WriteString(": " + t.Description)
		}
		b.WriteString("\n")

		if t.Parameters != nil {
			if params, err := t.Parameters.JsonString(); err == nil {
				b.WriteString("   Parameters: " + params + "\n")
			}
		}
	}

	b.WriteString("\nUse function calling to invoke a tool whenever it helps answer the request; call only tools listed above.\n")

	return b.String()
}

// enrichSystemPromptWithOutputSchema appends the output schema to the system
// prompt so models without native structured-output support still see the
// expected shape.
func enrichSystemPromptWithOutputSchema(basePrompt string, schema *jsonschema.Schema) string {
	if schema == nil {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	if basePrompt != "" {
		b.WriteString("\n\n")
	}

	b.WriteString("## Output Format\n\n")
	b.WriteString("Respond with a single JSON object matching this schema:\n\n")
	b.WriteString(schema.String())
	b.WriteString("\n")

	return b.String()
}
