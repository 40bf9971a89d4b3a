package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/parley-ai/parley/providers/observability"
)

// DoPostStream posts body as JSON to url and hands back the raw response with
// its body left open, ready to be consumed as a Server-Sent Events stream.
// The caller owns the body and must close it when done reading.
//
// Error paths never leak the connection: on transport errors and non-2xx
// statuses the body is drained (capped at maxResponseBodySize) and closed
// before returning, with the payload included in the error so rate limits
// and auth failures stay diagnosable.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	response, elapsed, err := postJSON(ctx, client, url, apiKey, body, "text/event-stream", "http.stream_request", headers)
	if err != nil {
		return response, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return response, fmt.Errorf("non-2xx status %d (failed to read body: %v)", response.StatusCode, readErr)
		}
		return response, fmt.Errorf("non-2xx status %d: %s", response.StatusCode, string(errorBody))
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent("http.stream_response.started",
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Duration("http.request.duration", elapsed),
		)
	}

	return response, nil
}
