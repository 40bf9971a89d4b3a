// Package overview collects per-execution statistics: every request and
// response that crossed the wire, summed token usage, per-tool call counts,
// and wall clock timing. An Overview rides the context through the client's
// send loop, so a caller who seeds one can watch a whole conversation
// including its tool roundtrips.
package overview

import (
	"context"
	"time"

	"github.com/parley-ai/parley/providers/ai"
)

type overviewKey struct{}

// Overview aggregates what happened during one execution.
type Overview struct {
	LastResponse  *ai.ChatResponse   `json:"last_response,omitempty"`
	Requests      []*ai.ChatRequest  `json:"requests"`
	Responses     []*ai.ChatResponse `json:"responses"`
	TotalUsage    ai.Usage           `json:"total_usage"`
	ToolCallStats map[string]int     `json:"tool_calls,omitempty"`

	ExecutionStartTime time.Time `json:"execution_start_time,omitempty"`
	ExecutionEndTime   time.Time `json:"execution_end_time,omitempty"`
}

// OverviewFromContext returns the Overview stored in *ctx. When the context
// carries none, a fresh one is created, attached, and the context pointer is
// rewritten so the caller's ctx includes it. The result is never nil.
func OverviewFromContext(ctx *context.Context) *Overview {
	if o, ok := (*ctx).Value(overviewKey{}).(*Overview); ok {
		return o
	}

	o := &Overview{}
	*ctx = o.ToContext(*ctx)
	return o
}

// ToContext attaches the overview to ctx. A nil ctx starts from
// context.Background.
func (o *Overview) ToContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, overviewKey{}, o)
}

// IncludeUsage folds usage into the running totals. Nil is ignored.
func (o *Overview) IncludeUsage(usage *ai.Usage) {
	if usage != nil {
		o.TotalUsage.Add(*usage)
	}
}

// AddToolCalls bumps the per-tool counters for each requested call.
func (o *Overview) AddToolCalls(calls []ai.ToolCall) {
	if len(calls) == 0 {
		return
	}
	if o.ToolCallStats == nil {
		o.ToolCallStats = map[string]int{}
	}
	for _, call := range calls {
		o.ToolCallStats[call.Function.Name]++
	}
}

// AddRequest appends request to the history.
func (o *Overview) AddRequest(request *ai.ChatRequest) {
	o.Requests = append(o.Requests, request)
}

// AddResponse appends response to the history and makes it LastResponse.
func (o *Overview) AddResponse(response *ai.ChatResponse) {
	o.Responses = append(o.Responses, response)
	o.LastResponse = response
}

// StartExecution opens the measured time window. Only the first call takes
// effect, so an overview reused across requests measures from the first one.
func (o *Overview) StartExecution() {
	if o.ExecutionStartTime.IsZero() {
		o.ExecutionStartTime = time.Now()
	}
}

// EndExecution closes the measured time window. Repeated calls move the end
// forward.
func (o *Overview) EndExecution() {
	o.ExecutionEndTime = time.Now()
}

// ExecutionDuration is the width of the measured window, or 0 while either
// edge is unset.
func (o *Overview) ExecutionDuration() time.Duration {
	if o.ExecutionStartTime.IsZero() || o.ExecutionEndTime.IsZero() {
		return 0
	}
	return o.ExecutionEndTime.Sub(o.ExecutionStartTime)
}
