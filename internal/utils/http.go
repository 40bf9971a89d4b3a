package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/parley-ai/parley/providers/observability"
)

// maxResponseBodySize caps how much of a response body is buffered in memory
// (10 MB). Bodies are read through an io.LimitReader so a rogue endpoint
// cannot trigger unbounded allocation.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// HeaderOption is one HTTP header to set on an outgoing request. Options are
// applied after the defaults, so a provider can override Content-Type or swap
// the Authorization scheme for its own.
type HeaderOption struct {
	Key   string
	Value string
}

// CloseWithLog closes closer and logs a warning if the close fails. The error
// is swallowed on purpose: a failed body close must not shadow the primary
// error of the surrounding call.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close resource", "error", err.Error())
	}
}

// postJSON marshals body and issues the POST shared by DoPostSync and
// DoPostStream. Request lifecycle events are reported on the context span
// under eventPrefix. The response body comes back untouched; the caller
// decides whether to decode it or stream it.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body any, accept, eventPrefix string, headers []HeaderOption) (*http.Response, time.Duration, error) {
	span := observability.SpanFromContext(ctx)
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("error marshaling body: %w", err)
	}
	if span != nil {
		span.AddEvent(eventPrefix+".prepared",
			observability.String(observability.AttrHTTPMethod, http.MethodPost),
			observability.String(observability.AttrHTTPURL, url),
			observability.Int(observability.AttrHTTPRequestBodySize, len(payload)),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	// Caller-supplied headers win over the defaults above.
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	start := time.Now()
	response, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if span != nil {
			span.AddEvent(eventPrefix+".error",
				observability.Error(err),
				observability.Duration("http.request.duration", elapsed),
			)
		}
		return response, elapsed, fmt.Errorf("error sending request: %w", err)
	}
	return response, elapsed, nil
}

// DoPostSync posts body as JSON to url and decodes the response into
// OutputStruct. A nil client falls back to http.DefaultClient and a non-empty
// apiKey becomes a Bearer Authorization header. The response body is always
// drained and closed before returning; close failures are logged, never
// propagated.
//
// Non-2xx responses and undecodable payloads turn into errors carrying the
// status code and an excerpt of the body, which is usually the quickest way
// to see what a provider rejected.
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	response, elapsed, err := postJSON(ctx, client, url, apiKey, body, "", "http.request", headers)
	if err != nil {
		return response, nil, err
	}
	defer CloseWithLog(response.Body)

	respBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return response, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent("http.response.received",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration("http.request.duration", elapsed),
		)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return response, nil, fmt.Errorf("non-2xx status %d: %s", response.StatusCode, string(respBody))
	}

	var decoded OutputStruct
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return response, nil, fmt.Errorf("error unmarshaling LLM response body (status %d): %w\nResponse preview: %s",
			response.StatusCode, err, TruncateStringDefault(string(respBody)))
	}
	return response, &decoded, nil
}
