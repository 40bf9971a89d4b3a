package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/parley-ai/parley/core/client"
	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/ai"
)

// LogLevel selects how much of each request the logging middleware records.
type LogLevel int

const (
	// LogLevelMinimal records the model, the duration, and token counts.
	LogLevelMinimal LogLevel = iota

	// LogLevelStandard adds the message count and finish reason on top of
	// Minimal. The sensible default.
	LogLevelStandard

	// LogLevelVerbose additionally records the first message and the
	// response content, each truncated to 500 characters.
	//
	// Verbose output contains raw prompt and response text, which may carry
	// user data or secrets. Keep it out of production.
	LogLevelVerbose
)

// truncateLen caps content length in verbose log output.
const truncateLen = 500

// NewLoggingMiddleware returns a MiddlewareConfig that writes a structured
// slog entry before and after every provider call. Streams log their
// completion entry once the iterator finishes, not when the stream opens.
//
// logger must not be nil; pass slog.Default() if nothing else is configured.
func NewLoggingMiddleware(logger *slog.Logger, level LogLevel) client.MiddlewareConfig {
	rl := requestLogger{logger: logger, level: level}
	return client.MiddlewareConfig{
		Send:   rl.send,
		Stream: rl.stream,
	}
}

// requestLogger holds the logger and verbosity shared by the send and stream
// halves of the middleware.
type requestLogger struct {
	logger *slog.Logger
	level  LogLevel
}

func (rl requestLogger) send(next client.SendFunc) client.SendFunc {
	return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
		rl.logger.InfoContext(ctx, "llm send", rl.requestAttrs(request)...)

		start := time.Now()
		response, err := next(ctx, request)
		if err != nil {
			rl.logError(ctx, "llm send failed", request.Model, time.Since(start), err)
			return nil, err
		}

		rl.logger.InfoContext(ctx, "llm send completed",
			rl.responseAttrs(response, time.Since(start))...,
		)
		return response, nil
	}
}

func (rl requestLogger) stream(next client.StreamFunc) client.StreamFunc {
	return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
		rl.logger.InfoContext(ctx, "llm stream", rl.requestAttrs(request)...)

		start := time.Now()
		stream, err := next(ctx, request)
		if err != nil {
			rl.logError(ctx, "llm stream failed", request.Model, time.Since(start), err)
			return nil, err
		}

		return rl.tailStream(ctx, stream, request.Model, start), nil
	}
}

// tailStream rewraps the stream so the closing log entry is written when the
// iterator ends: completed on a done event, failed on an error, abandoned
// when the consumer breaks out early.
func (rl requestLogger) tailStream(ctx context.Context, stream *ai.ChatStream, model string, start time.Time) *ai.ChatStream {
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		var finishReason string
		var usage *ai.Usage

		for event, err := range stream.Iter() {
			if err != nil {
				rl.logError(ctx, "llm stream failed", model, time.Since(start), err)
				yield(event, err)
				return
			}

			switch event.Type {
			case ai.StreamEventUsage:
				if event.Usage != nil {
					usage = event.Usage
				}
			case ai.StreamEventDone:
				finishReason = event.FinishReason
			}

			if !yield(event, nil) {
				rl.logger.InfoContext(ctx, "llm stream abandoned",
					slog.String("model", model),
					slog.Duration("duration", time.Since(start)),
				)
				return
			}

			if event.Type == ai.StreamEventDone {
				break
			}
		}

		attrs := []any{
			slog.String("model", model),
			slog.Duration("duration", time.Since(start)),
		}
		if rl.level >= LogLevelStandard && finishReason != "" {
			attrs = append(attrs, slog.String("finish_reason", finishReason))
		}
		if usage != nil {
			attrs = append(attrs, usageAttrs(usage)...)
		}

		rl.logger.InfoContext(ctx, "llm stream completed", attrs...)
	})
}

func (rl requestLogger) logError(ctx context.Context, msg, model string, elapsed time.Duration, err error) {
	rl.logger.ErrorContext(ctx, msg,
		slog.String("model", model),
		slog.Duration("duration", elapsed),
		slog.String("error", err.Error()),
	)
}

func (rl requestLogger) requestAttrs(request ai.ChatRequest) []any {
	attrs := []any{slog.String("model", request.Model)}

	if rl.level >= LogLevelStandard {
		attrs = append(attrs, slog.Int("message_count", len(request.Messages)))
	}

	if rl.level >= LogLevelVerbose && len(request.Messages) > 0 {
		first := request.Messages[0]
		attrs = append(attrs,
			slog.String("first_message_role", string(first.Role)),
			slog.String("first_message_content", utils.TruncateString(first.Content, truncateLen)),
		)
	}

	return attrs
}

func (rl requestLogger) responseAttrs(response *ai.ChatResponse, elapsed time.Duration) []any {
	attrs := []any{
		slog.String("model", response.Model),
		slog.Duration("duration", elapsed),
	}

	if response.Usage != nil {
		attrs = append(attrs, usageAttrs(response.Usage)...)
	}

	if rl.level >= LogLevelStandard && response.FinishReason != "" {
		attrs = append(attrs, slog.String("finish_reason", response.FinishReason))
	}

	if rl.level >= LogLevelVerbose && response.Content != "" {
		attrs = append(attrs, slog.String("response_content", utils.TruncateString(response.Content, truncateLen)))
	}

	return attrs
}

func usageAttrs(usage *ai.Usage) []any {
	return []any{
		slog.Int("prompt_tokens", usage.PromptTokens),
		slog.Int("completion_tokens", usage.CompletionTokens),
		slog.Int("total_tokens", usage.TotalTokens),
	}
}
