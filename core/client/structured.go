package client

import (
	"context"
	"fmt"

	"github.com/parley-ai/parley/core/parse"
	"github.com/parley-ai/parley/internal/jsonschema"
	"github.com/parley-ai/parley/providers/ai"
)

// StructuredClient is a Client whose responses decode into T. The schema for
// T is generated once, attached to every request to steer the model, and the
// response content is parsed back into T.
//
// Parsing is lenient: almost-JSON output (single quotes, unquoted keys,
// trailing commas) is repaired before unmarshaling. Tool execution behaves
// exactly as on the base client; only the final response gets parsed.
//
//	type TicketTriage struct {
//	    Category string `json:"category" jsonschema:"required"`
//	    Severity int    `json:"severity" jsonschema:"required"`
//	    Summary  string `json:"summary"`
//	}
//
//	triage, _ := client.NewStructured[TicketTriage](provider, client.WithMemory(memory))
//	resp, err := triage.SendMessage(ctx, "Classify this bug report: ...")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Data.Category, resp.Data.Severity)
type StructuredClient[T any] struct {
	Client
	schema *jsonschema.Schema
}

// FromBaseClient wraps an already-configured Client for structured output of
// type T. The schema for T becomes the base client's default output schema.
// Configure memory, tools, and observers on the base client before wrapping.
func FromBaseClient[T any](base *Client) *StructuredClient[T] {
	if base == nil {
		return nil
	}

	schema := jsonschema.GenerateJSONSchema[T]()
	base.SetDefaultOutputSchema(schema)

	return &StructuredClient[T]{
		Client: *base,
		schema: schema,
	}
}

// NewStructured builds the base Client from the provider and options, then
// wraps it via [FromBaseClient]. Shorthand for the common case of one
// structured client per response type.
func NewStructured[T any](llmProvider ai.Provider, opts ...func(*ClientOptions)) (*StructuredClient[T], error) {
	base, err := New(llmProvider, opts...)
	if err != nil {
		return nil, err
	}
	return FromBaseClient[T](base), nil
}

// SendMessage sends a user message and decodes the final response into T.
// The schema for T rides along as the default output schema; per-request
// options may override it. The prompt must be non-empty; to run the model
// over existing memory without new input, use ContinueConversation.
func (sc *StructuredClient[T]) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.StructuredChatResponse[T], error) {
	resp, err := sc.Client.SendMessage(ctx, prompt, opts...)
	if err != nil {
		return nil, err
	}
	return sc.decodeResponse(resp)
}

// ContinueConversation runs the model over the messages already in memory,
// without adding user input, and decodes the result into T. Useful right
// after tool execution.
func (sc *StructuredClient[T]) ContinueConversation(ctx context.Context, opts ...SendMessageOption) (*ai.StructuredChatResponse[T], error) {
	// The schema option goes first so callers can still override it.
	opts = append([]SendMessageOption{WithOutputSchema(sc.schema)}, opts...)

	resp, err := sc.Client.ContinueConversation(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sc.decodeResponse(resp)
}

// Schema exposes the generated schema for T, mainly for debugging.
func (sc *StructuredClient[T]) Schema() *jsonschema.Schema {
	return sc.schema
}

func (sc *StructuredClient[T]) decodeResponse(resp *ai.ChatResponse) (*ai.StructuredChatResponse[T], error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}

	data, err := parse.ParseStringAs[T](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse structured output: %w", err)
	}

	return &ai.StructuredChatResponse[T]{
		ChatResponse: *resp,
		Data:         &data,
	}, nil
}
