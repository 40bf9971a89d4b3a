package client

import (
	"context"

	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/observability"
)

// NewObservabilityMiddleware builds the middleware pair that traces, logs,
// and measures every LLM call.
//
// The send half spans the whole provider call. The stream half opens the
// same span but keeps it alive until the returned stream is drained, errors,
// or is abandoned, so stream metrics cover consumption rather than just the
// connect.
//
// Both halves store the span and the observer in the context before calling
// next; providers pick them up via [observability.SpanFromContext] and
// [observability.ObserverFromContext].
//
// [New] prepends this middleware when [WithObserver] is set, which makes it
// the outermost wrapper: it measures the final outcome after any retry or
// timeout middleware has run. defaultModel labels the telemetry when the
// request itself does not name a model.
func NewObservabilityMiddleware(observer observability.Provider, defaultModel string) MiddlewareConfig {
	return MiddlewareConfig{
		Send:   sendWithObservability(observer, defaultModel),
		Stream: streamWithObservability(observer, defaultModel),
	}
}

// startClientSpan opens the request span, stores it and the observer in the
// context for downstream providers, and logs the entry at debug level.
func startClientSpan(ctx context.Context, observer observability.Provider, model, entry string, messageCount int) (context.Context, observability.Span) {
	ctx, span := observer.StartSpan(ctx, observability.SpanClientSendMessage,
		observability.String(observability.AttrLLMModel, model),
	)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, observer)

	observer.Debug(ctx, entry,
		observability.String(observability.AttrLLMModel, model),
		observability.Int(observability.AttrRequestMessagesCount, messageCount),
	)

	return ctx, span
}

func sendWithObservability(observer observability.Provider, defaultModel string) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			model := effectiveModel(request.Model, defaultModel)
			ctx, span := startClientSpan(ctx, observer, model, "llm send", len(request.Messages))

			timer := utils.NewTimer()
			response, err := next(ctx, request)
			if err != nil {
				recordFailure(ctx, span, observer, err, timer, model, "llm send failed")
				return nil, err
			}

			recordSuccess(ctx, span, observer, response, timer, model)
			return response, nil
		}
	}
}

func streamWithObservability(observer observability.Provider, defaultModel string) StreamMiddleware {
	return func(next StreamFunc) StreamFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
			model := effectiveModel(request.Model, defaultModel)
			ctx, span := startClientSpan(ctx, observer, model, "llm stream", len(request.Messages))

			// The timer covers consumption, not just the connect; the
			// wrapped iterator stops it when the stream ends.
			timer := utils.NewTimer()
			stream, err := next(ctx, request)
			if err != nil {
				recordFailure(ctx, span, observer, err, timer, model, "llm stream failed")
				return nil, err
			}

			return observeStream(ctx, stream, span, observer, timer, model), nil
		}
	}
}

// observeStream re-yields every event untouched while watching for the three
// terminal outcomes: a clean done event, a mid-stream error, or the consumer
// breaking early. Each closes the span exactly once.
func observeStream(
	ctx context.Context,
	stream *ai.ChatStream,
	span observability.Span,
	observer observability.Provider,
	timer *utils.Timer,
	model string,
) *ai.ChatStream {
	relay := func(yield func(ai.StreamEvent, error) bool) {
		var usage *ai.Usage
		var finishReason string

		for event, err := range stream.Iter() {
			if err != nil {
				recordFailure(ctx, span, observer, err, timer, model, "llm stream failed")
				yield(event, err)
				return
			}

			// Remember the trailing metadata for the completion record.
			switch event.Type {
			case ai.StreamEventUsage:
				if event.Usage != nil {
					usage = event.Usage
				}
			case ai.StreamEventDone:
				finishReason = event.FinishReason
			}

			if !yield(event, nil) {
				timer.Stop()
				span.SetStatus(observability.StatusOK, "llm stream abandoned")
				span.End()

				observer.Info(ctx, "llm stream abandoned",
					observability.String(observability.AttrLLMModel, model),
					observability.Duration(observability.AttrDuration, timer.GetDuration()),
				)
				return
			}

			if event.Type == ai.StreamEventDone {
				break
			}
		}

		// Fold what the stream reported into a response shape so the success
		// telemetry is shared with the send path.
		recordSuccess(ctx, span, observer, &ai.ChatResponse{
			Model:        model,
			FinishReason: finishReason,
			Usage:        usage,
		}, timer, model)
	}

	return ai.NewChatStream(relay)
}

// recordFailure stops the timer, closes the span as failed, and emits the
// error log plus the error-status request counter. Every failing path in
// this file funnels through here.
func recordFailure(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	err error,
	timer *utils.Timer,
	model, what string,
) {
	timer.Stop()

	span.RecordError(err)
	span.SetStatus(observability.StatusError, what)
	span.End()

	observer.Error(ctx, what,
		observability.Error(err),
		observability.Duration(observability.AttrDuration, timer.GetDuration()),
		observability.String(observability.AttrLLMModel, model),
	)

	observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "error"),
		observability.String(observability.AttrLLMModel, model),
	)
}

// recordSuccess emits the full success telemetry: duration histogram,
// request and token counters, token span attributes, and one INFO line
// summarising the response. It ends the span.
func recordSuccess(
	ctx context.Context,
	span observability.Span,
	observer observability.Provider,
	response *ai.ChatResponse,
	timer *utils.Timer,
	model string,
) {
	timer.Stop()
	elapsed := timer.GetDuration()

	observer.Histogram(observability.MetricClientRequestDuration).Record(ctx, elapsed.Seconds(),
		observability.String(observability.AttrLLMModel, model),
	)
	observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "success"),
		observability.String(observability.AttrLLMModel, model),
	)

	attrs := []observability.Attribute{
		observability.String(observability.AttrLLMModel, model),
		observability.String(observability.AttrLLMFinishReason, response.FinishReason),
		observability.Duration(observability.AttrDuration, elapsed),
		observability.Int(observability.AttrClientToolCalls, len(response.ToolCalls)),
	}

	if usage := response.Usage; usage != nil {
		modelAttr := observability.String(observability.AttrLLMModel, model)
		observer.Counter(observability.MetricClientTokensTotal).Add(ctx, int64(usage.TotalTokens), modelAttr)
		observer.Counter(observability.MetricClientTokensPrompt).Add(ctx, int64(usage.PromptTokens), modelAttr)
		observer.Counter(observability.MetricClientTokensCompletion).Add(ctx, int64(usage.CompletionTokens), modelAttr)

		span.SetAttributes(
			observability.Int(observability.AttrLLMTokensTotal, usage.TotalTokens),
			observability.Int(observability.AttrLLMTokensPrompt, usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, usage.CompletionTokens),
		)

		attrs = append(attrs,
			observability.Int(observability.AttrLLMTokensPrompt, usage.PromptTokens),
			observability.Int(observability.AttrLLMTokensCompletion, usage.CompletionTokens),
			observability.Int(observability.AttrLLMTokensTotal, usage.TotalTokens),
		)
	}

	if len(response.ToolCalls) > 0 {
		names := make([]string, len(response.ToolCalls))
		for i, call := range response.ToolCalls {
			names[i] = call.Function.Name
		}
		attrs = append(attrs, observability.StringSlice("tool_calls", names))
	}

	if response.Content != "" {
		attrs = append(attrs, observability.String("response", utils.TruncateString(response.Content, 100)))
	}

	observer.Info(ctx, "llm send completed", attrs...)

	span.SetStatus(observability.StatusOK, "success")
	span.End()
}

// effectiveModel prefers the request's model over the client default. Both
// empty is fine; the provider then picks.
func effectiveModel(requestModel, defaultModel string) string {
	if requestModel != "" {
		return requestModel
	}
	return defaultModel
}
