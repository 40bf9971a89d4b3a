package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parley-ai/parley/core/parse"

	"github.com/parley-ai/parley/internal/jsonschema"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/observability"
)

// Tool binds a name and description to a strongly-typed Go function and the
// JSON schemas derived from its input type I and output type O. Build one
// with [NewTool]; store and dispatch them through [GenericTool] when the
// concrete type parameters are not known.
type Tool[I, O any] struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Output      *jsonschema.Schema
	Function    func(ctx context.Context, input I) (O, error)
	// Required marks the tool as one the model must call at least once.
	// Providers receive it through [ai.ToolChoice.RequiredTools].
	Required bool
}

// GenericTool abstracts over the type parameters of [Tool] so tools of
// different shapes can live in one catalog.
type GenericTool interface {
	// ToolInfo returns the metadata used to advertise this tool to an AI
	// provider.
	ToolInfo() ai.ToolDescription

	// Call invokes the tool with JSON-encoded input and returns its output
	// as JSON. Parsing and execution failures come back as errors.
	Call(ctx context.Context, inputJSON string) (string, error)

	// IsExecutable reports whether this tool carries an in-process handler.
	// Declaration-only tools (advertised to the model but executed by the
	// caller) return false, which stops the client's tool loop so the
	// unexecuted tool calls reach the caller.
	IsExecutable() bool
}

// toolOptions collects the optional knobs of [NewTool].
type toolOptions struct {
	description string
	required    bool
}

// Option configures a tool built by [NewTool].
type Option func(*toolOptions)

// WithDescription sets the human-readable description providers surface to
// the model when advertising the tool.
func WithDescription(description string) Option {
	return func(o *toolOptions) {
		o.description = description
	}
}

// WithRequired marks the tool as one the model must call at least once
// during the conversation.
func WithRequired() Option {
	return func(o *toolOptions) {
		o.required = true
	}
}

// NewTool builds a [Tool] around function. The parameter and output schemas
// are derived from I and O by reflection, so the handler's type signature is
// the single source of truth for what the model may pass.
//
// Example:
//
//	myTool := tool.NewTool("search", searchFunc,
//	    tool.WithDescription("Searches the web for a query."),
//	)
func NewTool[I, O any](name string, function func(ctx context.Context, input I) (O, error), options ...Option) *Tool[I, O] {
	var opts toolOptions
	for _, option := range options {
		option(&opts)
	}

	return &Tool[I, O]{
		Name:        name,
		Description: opts.description,
		Parameters:  jsonschema.GenerateJSONSchema[I](),
		Output:      jsonschema.GenerateJSONSchema[O](),
		Function:    function,
		Required:    opts.required,
	}
}

// ToolInfo returns the [ai.ToolDescription] used to advertise this tool:
// name, description, parameter schema, and the required flag.
func (t *Tool[I, O]) ToolInfo() ai.ToolDescription {
	return ai.ToolDescription{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
		Required:    t.Required,
	}
}

// recordToolError annotates the span with a failure. Safe on a nil span.
func recordToolError(span observability.Span, err error, attrs ...observability.Attribute) {
	if span == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attrs...)
}

// Call parses the JSON-encoded input into I, runs the handler, and returns
// its output marshaled back to JSON. When ctx carries an observability span,
// execution is bracketed with start and end events and annotated with the
// outcome.
func (t *Tool[I, O]) Call(ctx context.Context, inputJSON string) (string, error) {
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent(observability.EventToolExecutionStart,
			observability.String(observability.AttrToolName, t.Name),
			observability.String(observability.AttrToolInput, inputJSON),
		)
		defer span.AddEvent(observability.EventToolExecutionEnd)
	}

	start := time.Now()

	// Model-supplied argument JSON is parsed leniently, repairs included.
	input, err := parse.ParseStringAs[I](inputJSON)
	if err != nil {
		recordToolError(span, err,
			observability.String(observability.AttrToolError, err.Error()),
		)
		return "", err
	}

	output, err := t.Function(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		recordToolError(span, err,
			observability.String(observability.AttrToolError, err.Error()),
			observability.Duration(observability.AttrToolDuration, elapsed),
		)
		return "", err
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		recordToolError(span, err)
		return "", err
	}

	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrToolOutput, string(encoded)),
			observability.Duration(observability.AttrToolDuration, elapsed),
		)
	}

	return string(encoded), nil
}

// IsExecutable reports whether the tool has a handler function attached.
func (t *Tool[I, O]) IsExecutable() bool {
	return t.Function != nil
}
