// Package sse implements a Server-Sent-Events parser that reconciles an
// unbounded, chunk-delivered byte stream into discrete events.
//
// The parser is deliberately transport-agnostic: it consumes any [ByteSource]
// (an [io.ReadCloser] qualifies) and yields events lazily through
// [Stream.Events]. Malformed input is handled according to the configured
// policy: lenient mode (the default) downgrades protocol violations to
// best-effort values, strict mode surfaces them as errors. Cancellation is
// cooperative via [Stream.Cancel]; callers that want context-based
// cancellation can bind it with context.AfterFunc(ctx, stream.Cancel).
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Sentinel errors returned (wrapped) by strict-mode parsing. Lenient mode
// never surfaces them.
var (
	// ErrInvalidRetry indicates a retry field whose value is not all digits.
	ErrInvalidRetry = errors.New("sse: invalid retry value")

	// ErrInvalidID indicates an id field containing a null byte.
	ErrInvalidID = errors.New("sse: id contains a null byte")

	// ErrUnterminatedStream indicates the source ended with unparsed content
	// in the buffer, i.e. the final event block was never terminated by a
	// blank line.
	ErrUnterminatedStream = errors.New("sse: stream ended without proper termination")
)

// ByteSource is the minimal contract the parser needs from its transport.
// Read may block and may return zero bytes without an error. io.ReadCloser
// satisfies it.
type ByteSource interface {
	Read(p []byte) (n int, err error)
	Close() error
}

// Event is a single reconciled Server-Sent-Event.
//
// Data holds the joined data lines as a string, or the decoded value
// (map[string]any / []any / ...) when the payload looks like JSON and
// decodes successfully. Retry is in milliseconds, zero when the server did
// not send a valid retry field.
type Event struct {
	Event string
	Data  any
	ID    string
	Retry int
}

// Stream is a single-use SSE parser over one byte source. It is not
// restartable: Events performs exactly one forward pass.
type Stream struct {
	source    ByteSource
	strict    bool
	readSize  int
	canceled  atomic.Bool
	closeOnce sync.Once
}

// Option configures a Stream.
type Option func(*Stream)

// WithStrictParsing makes protocol violations (invalid retry values, null
// bytes in ids, undecodable JSON data, unterminated final blocks) terminate
// the stream with an error instead of being silently tolerated.
func WithStrictParsing() Option {
	return func(s *Stream) {
		s.strict = true
	}
}

// NewStream wraps source in a parser. The source is owned by the stream from
// this point on: it is closed exactly once, on whichever comes first of
// natural exhaustion, a parse error, consumer abandonment or [Stream.Cancel].
func NewStream(source ByteSource, opts ...Option) *Stream {
	s := &Stream{
		source:   source,
		readSize: 4096,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Cancel requests cooperative termination. The flag is checked before each
// source read and after each yielded event; the source is closed immediately
// so a blocked Read unblocks. Events already yielded are not affected.
// Cancel is safe to call from any goroutine and more than once.
func (s *Stream) Cancel() {
	s.canceled.Store(true)
	s.close()
}

// close shuts the source down exactly once.
func (s *Stream) close() {
	s.closeOnce.Do(func() {
		_ = s.source.Close()
	})
}

// Events returns the lazy event sequence. Iteration ends on source EOF, on
// the first error (strict mode), on cancellation, or when the consumer
// breaks out. On every exit path the source ends up closed.
func (s *Stream) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer s.close()

		var buffer []byte
		chunk := make([]byte, s.readSize)

		for {
			// Drain every complete block currently in the buffer.
			for {
				idx := bytes.Index(buffer, []byte("\n\n"))
				if idx < 0 {
					break
				}

				block := string(buffer[:idx])
				buffer = buffer[idx+2:]

				event, ok, err := s.parseBlock(block)
				if err != nil {
					yield(Event{}, err)
					return
				}
				if !ok {
					continue
				}

				if !yield(event, nil) {
					return
				}

				if s.canceled.Load() {
					return
				}
			}

			if s.canceled.Load() {
				return
			}

			n, err := s.source.Read(chunk)
			if n > 0 {
				buffer = append(buffer, chunk[:n]...)
			}

			if err != nil {
				if s.canceled.Load() {
					// Cancel closed the source under us; the read error is
					// expected and not the consumer's problem.
					return
				}

				if errors.Is(err, io.EOF) {
					s.finishLeftover(buffer, yield)
					return
				}

				yield(Event{}, fmt.Errorf("sse: read failed: %w", err))
				return
			}
		}
	}
}

// finishLeftover handles unterminated buffer content after EOF. Lenient mode
// parses it as if a trailing blank line had arrived; strict mode treats any
// nonblank leftover as a protocol violation.
func (s *Stream) finishLeftover(buffer []byte, yield func(Event, error) bool) {
	leftover := string(buffer)
	if strings.TrimSpace(leftover) == "" {
		return
	}

	if s.strict {
		yield(Event{}, ErrUnterminatedStream)
		return
	}

	event, ok, err := s.parseBlock(leftover)
	if err != nil || !ok {
		return
	}

	yield(event, nil)
}

// parseBlock parses one event block (the text between two blank lines). ok is
// false when the block carried no recognized field and therefore yields no
// event. err is only ever non-nil in strict mode.
func (s *Stream) parseBlock(block string) (Event, bool, error) {
	var (
		event     Event
		dataLines []string
		sawData   bool
		sawField  bool
	)

	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			// Comment line, e.g. keep-alive pings.
			continue
		}

		field, value := splitField(line)

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			sawData = true
			sawField = true

		case "event":
			event.Event = value
			sawField = true

		case "id":
			if strings.ContainsRune(value, '\x00') {
				if s.strict {
					return Event{}, false, fmt.Errorf("%w: %q", ErrInvalidID, value)
				}
				// Lenient: drop the id, keep whatever else the block carries.
				continue
			}
			event.ID = value
			sawField = true

		case "retry":
			retry, valid := parseRetry(value)
			if !valid {
				if s.strict {
					return Event{}, false, fmt.Errorf("%w: %q", ErrInvalidRetry, value)
				}
				continue
			}
			event.Retry = retry
			sawField = true

		default:
			// Unknown fields are ignored unconditionally.
		}
	}

	if !sawField {
		return Event{}, false, nil
	}

	if sawData {
		data, err := s.decodeData(strings.Join(dataLines, "\n"))
		if err != nil {
			return Event{}, false, err
		}
		event.Data = data
	}

	return event, true, nil
}

// decodeData turns the joined data lines into the event payload. Payloads
// that look like JSON (leading '{' or '[') are decoded; in lenient mode a
// failed decode falls back to the raw string.
func (s *Stream) decodeData(joined string) (any, error) {
	if len(joined) == 0 || (joined[0] != '{' && joined[0] != '[') {
		return joined, nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(joined), &decoded); err != nil {
		if s.strict {
			return nil, fmt.Errorf("sse: invalid JSON in data field: %w", err)
		}
		return joined, nil
	}

	return decoded, nil
}

// splitField separates a field line into name and value. A line with no
// colon is a field name with an empty value; exactly one leading space after
// the colon is stripped, never more.
func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}

	field = line[:idx]
	value = line[idx+1:]
	if strings.HasPrefix(value, " ") {
		value = value[1:]
	}

	return field, value
}

// parseRetry validates the all-digit requirement and converts. Values that
// overflow int are rejected as invalid rather than truncated.
func parseRetry(value string) (int, bool) {
	if value == "" {
		return 0, false
	}

	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	retry, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}

	return retry, true
}
