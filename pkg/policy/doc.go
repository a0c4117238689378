// Package policy loads the versioned role/intent access policy and evaluates
// allow/deny decisions against it.
//
// The policy document is parsed once into an immutable Snapshot; the Store
// swaps snapshots atomically on reload so concurrent readers never observe a
// partially-updated policy. Evaluation is a pure function with an explicit
// check order: unknown role, unknown intent, explicit deny, allow membership,
// per-intent attribute requirements, break-glass requirements. Deny always
// wins over allow.
package policy
