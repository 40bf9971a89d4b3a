package webfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/parley-ai/parley/internal/utils"
	"github.com/parley-ai/parley/providers/tool"
)

const (
	// DefaultTimeout bounds the whole request when the input does not set one.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the tool when the input does not override it.
	DefaultUserAgent = "parley-webfetch-tool/1.0"
	// MaxBodySize caps the response body at 10 MB.
	MaxBodySize = 10 * 1024 * 1024
	// DialTimeout bounds TCP connection establishment.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout bounds the wait for response headers.
	ResponseHeaderTimeout = 10 * time.Second
	// IdleConnTimeout bounds how long idle connections are kept for reuse.
	IdleConnTimeout = 90 * time.Second

	maxRedirects = 10
)

// Input holds the parameters the language model passes to the web fetch tool.
// Only URL is required; the remaining fields override package defaults.
type Input struct {
	// URL accepts full URLs and bare hosts. Bare hosts are fetched over https.
	URL string `json:"url" jsonschema:"description=The URL of the web page to fetch (supports partial URLs like 'google.com' or full URLs like 'https://google.com'),required"`

	// TimeoutSeconds overrides the default 30 second request timeout.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" jsonschema:"description=Request timeout in seconds (default: 30 max: 300),minimum=1,maximum=300"`

	// UserAgent overrides the User-Agent header sent with the request.
	UserAgent string `json:"user_agent,omitempty" jsonschema:"description=Custom User-Agent header for the HTTP request"`

	// IncludeHTML requests the raw HTML alongside the Markdown conversion.
	IncludeHTML bool `json:"include_html,omitempty" jsonschema:"description=When true includes the raw HTML content in the output (useful for logo extraction and structured data parsing)"`
}

// Output is the result [Fetch] hands back to the language model. URL reflects
// the destination after all redirects; HTML is only populated when
// [Input.IncludeHTML] was set.
type Output struct {
	// URL is the final URL after redirects and normalization.
	URL string `json:"url" jsonschema:"description=The final URL after following all redirects and normalization"`

	// Markdown is the page content converted from HTML.
	Markdown string `json:"markdown" jsonschema:"description=The web page content converted to Markdown format"`

	// HTML is the raw page content when IncludeHTML was requested.
	HTML string `json:"html,omitempty" jsonschema:"description=The raw HTML content (only populated when IncludeHTML is true in Input)"`
}

// NewWebFetchTool returns a [tool.Tool] that downloads a web page and hands
// its content to the model as Markdown. Bare hosts are normalized to https,
// redirects are followed up to a fixed limit, bodies are capped at
// [MaxBodySize], and the request honors context cancellation throughout.
//
// Example:
//
//	fetchTool := webfetch.NewWebFetchTool()
//	aiClient, _ := client.New(provider, client.WithTools(fetchTool))
func NewWebFetchTool() *tool.Tool[Input, Output] {
	return tool.NewTool[Input, Output](
		"WebFetch",
		Fetch,
		tool.WithDescription("Fetches a web page and converts its HTML content to Markdown format. Supports HTTP and HTTPS protocols. Automatically handles partial URLs by adding https:// prefix. Follows redirects and returns the final URL and clean Markdown content."),
	)
}

// Fetch retrieves the page at req.URL and converts it to Markdown.
//
// The effective timeout is req.TimeoutSeconds when positive, [DefaultTimeout]
// otherwise, and it covers connection, headers, and body read. Fetch returns
// an error for a blank URL, a non-200 status, a body at or over [MaxBodySize],
// a failed Markdown conversion, or a canceled or expired context.
func Fetch(ctx context.Context, req Input) (Output, error) {
	url, err := normalizeURL(req.URL)
	if err != nil {
		return Output{}, err
	}

	timeout := DefaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxWithTimeout, http.MethodGet, url, nil)
	if err != nil {
		return Output{}, fmt.Errorf("failed to create request: %w", err)
	}
	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := newFetchClient(timeout).Do(httpReq)
	if err != nil {
		if ctxWithTimeout.Err() != nil {
			return Output{}, fmt.Errorf("request timeout or canceled: %w", err)
		}
		return Output{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer utils.CloseWithLog(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, resp.Status)
	}

	htmlBytes, err := readBodyWithContext(ctxWithTimeout, resp.Body)
	if err != nil {
		return Output{}, err
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return Output{}, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	output := Output{
		// resp.Request points at the last request in the redirect chain.
		URL:      resp.Request.URL.String(),
		Markdown: markdown,
	}
	if req.IncludeHTML {
		output.HTML = string(htmlBytes)
	}
	return output, nil
}

// normalizeURL trims whitespace and defaults scheme-less URLs to https.
func normalizeURL(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url, nil
}

// newFetchClient builds an HTTP client with per-phase timeouts so a stalled
// server cannot hold the tool open past the overall deadline.
func newFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			IdleConnTimeout:       IdleConnTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			ForceAttemptHTTP2:     true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (>%d)", maxRedirects)
			}
			return nil
		},
	}
}

// readBodyWithContext drains body up to MaxBodySize while staying responsive
// to cancellation: the blocking read runs in a goroutine so a stalled body
// cannot outlive the context. Reaching the cap exactly is treated as an
// oversized body since the limit truncates anything beyond it.
func readBodyWithContext(ctx context.Context, body io.Reader) ([]byte, error) {
	type readResult struct {
		data []byte
		err  error
	}

	done := make(chan readResult, 1)
	go func() {
		data, err := io.ReadAll(io.LimitReader(body, MaxBodySize))
		done <- readResult{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("timeout while reading response body: %w", ctx.Err())
	case result := <-done:
		if result.err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", result.err)
		}
		if len(result.data) == MaxBodySize {
			return nil, fmt.Errorf("response body exceeds maximum size of %d bytes", MaxBodySize)
		}
		return result.data, nil
	}
}
