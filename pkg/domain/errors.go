package domain

import "errors"

// Common domain errors. Resolution failures (unknown role, unknown intent,
// policy-rule mismatch) are NOT errors; they are Decision values with a
// reason code. Errors here mark states where the pipeline cannot produce a
// decision at all.
var (
	ErrEmptyPrompt         = errors.New("empty prompt")
	ErrClassifierNotReady  = errors.New("intent classifier not ready")
	ErrPolicyNotLoaded     = errors.New("policy not loaded")
	ErrPolicyInvalid       = errors.New("invalid policy document")
	ErrUpstreamUnreachable = errors.New("upstream model unreachable")
)
