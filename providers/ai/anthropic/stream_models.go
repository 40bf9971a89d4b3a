package anthropic

import "encoding/json"

/*
	MESSAGES API WIRE FORMAT - STREAMING

	Streaming responses arrive as SSE with an "event:" line naming the event
	and a "data:" line carrying JSON. The payload repeats the event name in
	its "type" field; eventTypeOf prefers the event line and falls back to
	the payload for servers that omit it.

	One message unfolds as:
	  message_start, then per block: content_block_start,
	  content_block_delta..., content_block_stop; finally message_delta and
	  message_stop. Usage splits across message_start (input side) and
	  message_delta (output side).
*/

// anthropicStreamEvent is the envelope shared by every SSE payload. Which
// optional fields are set depends on the event kind.
type anthropicStreamEvent struct {
	Type         string                `json:"type"`
	Message      *anthropicResponse    `json:"message,omitempty"`       // message_start
	Index        int                   `json:"index,omitempty"`         // content_block_*
	ContentBlock *responseContentBlock `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta          `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *anthropicUsage       `json:"usage,omitempty"`         // message_delta
	Error        *anthropicError       `json:"error,omitempty"`         // error
}

// streamDelta is the incremental payload inside a delta event. Its own Type
// field discriminates again: "text_delta" fills Text, "thinking_delta" fills
// Thinking, "input_json_delta" fills PartialJSON with a tool-argument
// fragment. On message_delta there is no Type and the stop fields are set
// instead.
type streamDelta struct {
	Type         string `json:"type,omitempty"`
	Text         string `json:"text,omitempty"`
	Thinking     string `json:"thinking,omitempty"`
	PartialJSON  string `json:"partial_json,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

// anthropicError is the body of a mid-stream "error" event, e.g. an
// overloaded_error when the service sheds load.
type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// decodeStreamEvent parses one raw SSE data payload into a typed event.
func decodeStreamEvent(payload string) (*anthropicStreamEvent, error) {
	var event anthropicStreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// streamEventFromData converts a reconciled SSE payload into a typed stream
// event. The SSE parser decodes JSON-looking payloads into generic values, so
// a payload that arrives here as a string either never looked like JSON or
// failed to decode; both go through the typed unmarshal so the caller gets a
// precise parse error.
func streamEventFromData(data any) (*anthropicStreamEvent, error) {
	if payload, ok := data.(string); ok {
		return decodeStreamEvent(payload)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return decodeStreamEvent(string(raw))
}

// eventTypeOf returns the discriminator for a parsed stream event: the SSE
// event name when the server sent one, the payload's own type field otherwise.
func eventTypeOf(sseEventName string, parsed *anthropicStreamEvent) string {
	if sseEventName != "" {
		return sseEventName
	}
	if parsed == nil {
		return ""
	}
	return parsed.Type
}
