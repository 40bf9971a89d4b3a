// Package parse turns raw model text into typed Go values. Models rarely
// return clean JSON: the payload hides in narrative prose, markdown fences,
// or schema-style envelopes, and sometimes arrives truncated or subtly
// malformed. [ParseStringAs] works through those cases with balanced-candidate
// extraction, automatic repair, envelope unwrapping and array wrapping for
// slice targets, and reports a clear error when nothing decodes. One generic
// entry point covers primitives and JSON-shaped targets alike.
package parse
