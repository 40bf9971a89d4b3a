// Package overview records what happened during one client execution: token
// usage, per-tool call statistics, timing, and the ordered request/response
// history. An [Overview] travels in the context; [OverviewFromContext] returns
// the one already there or seeds a fresh one.
package overview
