package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parley-ai/parley/providers/ai"
)

// Policy constrains how an [Executor] runs tools. The zero value allows
// everything: no name filtering, no confirmation, no argument rewriting,
// no timeout.
type Policy struct {
	// Allow, when non-empty, restricts execution to the listed tool names
	// (case-insensitive). Tools not on the list are rejected.
	Allow []string

	// Deny rejects the listed tool names (case-insensitive). Deny wins over
	// Allow when a name appears on both lists.
	Deny []string

	// Confirm, when set, is consulted before every execution. Returning false
	// rejects the call; returning an error rejects it with the error message.
	Confirm func(ctx context.Context, call ai.ToolCall) (bool, error)

	// SanitizeArguments, when set, may rewrite the raw argument string before
	// the tool sees it. Returning an error rejects the call.
	SanitizeArguments func(call ai.ToolCall) (string, error)

	// Timeout bounds a single tool execution. Enforced cooperatively through
	// the context passed to the tool; a tool that ignores its context is not
	// interrupted.
	Timeout time.Duration
}

// Executor runs tools under a [Policy], converting every kind of failure
// (policy rejection, handler error, panic, timeout) into a failure
// [ai.ToolResult]. It never returns an error, so a misbehaving tool cannot
// abort the conversation loop that invoked it.
type Executor struct {
	policy Policy
}

// NewExecutor creates an Executor applying the given policy.
func NewExecutor(policy Policy) *Executor {
	return &Executor{policy: policy}
}

// Execute runs a single tool call under the executor's policy.
// The returned ToolResult carries the tool's raw JSON output on success, or
// a machine-readable error code plus message on failure.
func (e *Executor) Execute(ctx context.Context, t GenericTool, call ai.ToolCall) ai.ToolResult {
	name := call.Function.Name

	if denied, reason := e.deniedByPolicy(name); denied {
		return ai.NewToolResultError("tool_denied", reason)
	}

	if e.policy.Confirm != nil {
		confirmed, err := e.policy.Confirm(ctx, call)
		if err != nil {
			return ai.NewToolResultError("tool_denied", fmt.Sprintf("confirmation failed for tool %q: %s", name, err.Error()))
		}
		if !confirmed {
			return ai.NewToolResultError("tool_denied", fmt.Sprintf("execution of tool %q was not confirmed", name))
		}
	}

	arguments := call.Function.Arguments
	if e.policy.SanitizeArguments != nil {
		sanitized, err := e.policy.SanitizeArguments(call)
		if err != nil {
			return ai.NewToolResultError("tool_denied", fmt.Sprintf("argument sanitization failed for tool %q: %s", name, err.Error()))
		}
		arguments = sanitized
	}

	if e.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.policy.Timeout)
		defer cancel()
	}

	output, err := e.invoke(ctx, t, arguments)
	if err != nil {
		if e.policy.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return ai.NewToolResultError("tool_timeout", fmt.Sprintf("tool %q exceeded its %s timeout", name, e.policy.Timeout))
		}
		return ai.NewToolResultError("tool_execution_failed", err.Error())
	}

	return ai.NewToolResultSuccess(output)
}

// invoke calls the tool, converting a panic in the handler into an error.
func (e *Executor) invoke(ctx context.Context, t GenericTool, arguments string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return t.Call(ctx, arguments)
}

// deniedByPolicy checks the allow/deny lists for the given tool name.
// Matching is case-insensitive, consistent with [Catalog] lookups.
func (e *Executor) deniedByPolicy(name string) (bool, string) {
	for _, denied := range e.policy.Deny {
		if strings.EqualFold(denied, name) {
			return true, fmt.Sprintf("tool %q is on the deny list", name)
		}
	}

	if len(e.policy.Allow) == 0 {
		return false, ""
	}
	for _, allowed := range e.policy.Allow {
		if strings.EqualFold(allowed, name) {
			return false, ""
		}
	}
	return true, fmt.Sprintf("tool %q is not on the allow list", name)
}
