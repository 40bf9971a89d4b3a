package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/parley-ai/parley/providers/ai"
	"github.com/parley-ai/parley/providers/memory"
	"github.com/parley-ai/parley/providers/observability"
)

// Store keeps a conversation's messages in a mutex-guarded slice. Reads hand
// out copies, so callers can mutate what they get back without corrupting
// the history. The zero value is usable; [New] exists for symmetry with the
// other memory providers.
type Store struct {
	mu       sync.RWMutex
	messages []ai.Message
}

var _ memory.Provider = (*Store)(nil)

// New returns an empty in-memory message store.
func New() *Store {
	return &Store{}
}

// AppendMessage adds a copy of message to the end of the history. A nil
// message is ignored. When ctx carries an observability span, the append is
// recorded as an event and the new history length is set as an attribute.
func (s *Store) AppendMessage(ctx context.Context, message *ai.Message) {
	if message == nil {
		return
	}

	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.AddEvent(observability.EventMemoryAppend,
			observability.String(observability.AttrMemoryMessageRole, string(message.Role)),
			observability.Int(observability.AttrMemoryMessageLength, len(message.Content)),
		)
	}

	s.mu.Lock()
	s.messages = append(s.messages, *message)
	total := len(s.messages)
	s.mu.Unlock()

	if span != nil {
		span.SetAttributes(observability.Int(observability.AttrMemoryTotalMessages, total))
	}
}

// Count returns the number of stored messages. The error is always nil.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages), nil
}

// AllMessages returns a copy of the full history in insertion order.
func (s *Store) AllMessages(_ context.Context) ([]ai.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return []ai.Message{}, nil
	}
	return slices.Clone(s.messages), nil
}

// LastMessages returns a copy of the most recent n messages in insertion
// order. n <= 0 yields an empty slice; n beyond the history length yields
// the whole history.
func (s *Store) LastMessages(_ context.Context, n int) ([]ai.Message, error) {
	if n <= 0 {
		return []ai.Message{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.messages) {
		n = len(s.messages)
	}
	if n == 0 {
		return []ai.Message{}, nil
	}
	return slices.Clone(s.messages[len(s.messages)-n:]), nil
}

// PopLastMessage removes the most recent message and returns it, or nil when
// the history is empty.
func (s *Store) PopLastMessage(_ context.Context) (*ai.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil, nil
	}

	last := s.messages[len(s.messages)-1]
	s.messages = s.messages[:len(s.messages)-1]
	return &last, nil
}

// ClearMessages empties the history. The underlying capacity is kept, so a
// cleared store does not reallocate on the next appends. When ctx carries an
// observability span, the clear is recorded as an event.
func (s *Store) ClearMessages(ctx context.Context) {
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventMemoryClear)
	}

	s.mu.Lock()
	s.messages = s.messages[:0]
	s.mu.Unlock()
}

// FilterByRole returns copies of all messages with the given role, in
// insertion order. The result is never nil.
func (s *Store) FilterByRole(_ context.Context, role ai.MessageRole) ([]ai.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []ai.Message{}
	for _, message := range s.messages {
		if message.Role == role {
			matched = append(matched, message)
		}
	}
	return matched, nil
}
