package memory

import (
	"context"

	"github.com/parley-ai/parley/providers/ai"
)

// Provider stores and retrieves the message history of one conversation.
//
// AppendMessage and ClearMessages are fire-and-forget: implementations that
// can fail on write should surface those failures through their own logging
// or buffering strategy. All read methods return errors so database-backed
// implementations can report them.
type Provider interface {
	// AppendMessage adds a message to the end of the history. Nil messages
	// are ignored.
	AppendMessage(ctx context.Context, message *ai.Message)

	// AllMessages returns a copy of the full history in insertion order.
	AllMessages(ctx context.Context) ([]ai.Message, error)

	// LastMessages returns a copy of the most recent n messages in insertion
	// order. n <= 0 returns an empty slice; n larger than the history returns
	// everything.
	LastMessages(ctx context.Context, n int) ([]ai.Message, error)

	// PopLastMessage removes and returns the most recent message, or nil
	// when the history is empty.
	PopLastMessage(ctx context.Context) (*ai.Message, error)

	// Count returns the number of stored messages.
	Count(ctx context.Context) (int, error)

	// ClearMessages removes the entire history.
	ClearMessages(ctx context.Context)

	// FilterByRole returns copies of all messages with the given role, in
	// insertion order.
	FilterByRole(ctx context.Context, role ai.MessageRole) ([]ai.Message, error)
}
