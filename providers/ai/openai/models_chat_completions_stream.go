package openai

import "encoding/json"

/*
	CHAT COMPLETIONS WIRE FORMAT - STREAMING

	With stream=true the endpoint delivers the completion as SSE chunks.
	Each chunk carries incremental deltas: content fragments, tool call
	fragments, reasoning fragments, and (on the last chunk, when
	stream_options.include_usage is set) the usage totals.
*/

// chatCompletionStreamChunk is one decoded SSE payload from the streaming
// chat completions endpoint.
type chatCompletionStreamChunk struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"` // "chat.completion.chunk"
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	SystemFingerprint string         `json:"system_fingerprint,omitempty"`
	Choices           []streamChoice `json:"choices"`
	Usage             *chatUsage     `json:"usage,omitempty"` // Final chunk only, and only when requested
}

// streamChoice mirrors chatChoice for streaming: the message arrives as a
// delta, and the finish reason stays null until this choice's last chunk.
type streamChoice struct {
	Index        int          `json:"index"`
	Delta        streamDelta  `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
	Logprobs     *any `json:"logprobs,omitempty"`
}

// streamDelta is the incremental piece of the assistant message carried by
// one chunk. Every field is optional; chunks routinely carry just one of
// them. Content and Reasoning are pointers so an empty fragment can be told
// apart from an absent one.
type streamDelta struct {
	Role      string               `json:"role,omitempty"`
	Content   *string              `json:"content,omitempty"`
	Reasoning *string              `json:"reasoning,omitempty"`
	ToolCalls []streamToolCallPart `json:"tool_calls,omitempty"`
}

// streamToolCallPart is a fragment of a tool call. The first fragment for a
// call carries its ID and function name; the rest append to the arguments.
// Index ties fragments of the same call together.
type streamToolCallPart struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function streamFunctionPart `json:"function"`
}

// streamFunctionPart carries the function-call portion of a tool call
// fragment: a name on the first fragment, argument text on the rest.
type streamFunctionPart struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// streamOptions configures streaming behavior in the request.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// decodeStreamChunk parses one raw SSE data payload into a typed chunk.
func decodeStreamChunk(data string) (*chatCompletionStreamChunk, error) {
	var chunk chatCompletionStreamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}
