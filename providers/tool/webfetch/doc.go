// Package webfetch implements a built-in tool that downloads a web page and
// hands its content to the model as Markdown.
//
// [NewWebFetchTool] returns the tool ready to register on a client via
// WithTools; [Fetch] exposes the same fetch-and-convert pipeline for direct
// use. The pipeline normalizes the URL, follows redirects up to a limit, caps
// the response size, converts HTML to Markdown and honors context
// cancellation throughout.
package webfetch
