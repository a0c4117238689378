// Package gateway orchestrates the request pipeline: identity is resolved
// by the transport, the prompt is classified into an intent, the policy
// snapshot renders a decision, allowed requests are forwarded upstream,
// and exactly one audit event is recorded per handled request.
package gateway
