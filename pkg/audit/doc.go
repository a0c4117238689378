// Package audit records one structured, privacy-scrubbed event per decision.
//
// Events are append-only: sinks expose Record and nothing else. Free-text
// fields are masked at write time; masking is one-way and the unmasked text is
// never persisted. Sink failures are an operational signal, not a request
// failure — the gateway logs and counts them without altering the decision
// already communicated to the caller.
package audit
