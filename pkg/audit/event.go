package audit

import (
	"time"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
)

// timestampLayout matches the audit log's historical format (second-resolution
// UTC). Offline tooling parses this exact shape; do not change it.
const timestampLayout = "2006-01-02T15:04:05Z"

// IntentRecord is the classifier verdict as persisted.
type IntentRecord struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Event is one decision record. The JSON field names are a compatibility
// contract with the offline reporting tooling that consumes the audit log.
type Event struct {
	RequestID     string            `json:"request_id"`
	Role          string            `json:"role"`
	Attrs         map[string]string `json:"attrs"`
	Intent        IntentRecord      `json:"intent"`
	Allowed       bool              `json:"allowed"`
	Reason        string            `json:"reason"`
	LatencyMS     float64           `json:"latency_ms"`
	IntentMS      float64           `json:"t_intent_ms"`
	PolicyMS      float64           `json:"t_policy_ms"`
	PromptChars   int               `json:"prompt_chars"`
	PolicyVersion string            `json:"policy_version"`
	Timestamp     string            `json:"ts"`
}

// NewTimestamp formats the current UTC time in the audit log layout.
func NewTimestamp(now time.Time) string {
	return now.UTC().Format(timestampLayout)
}

// Masked returns a copy of the event with its free-text fields scrubbed: the
// reason string and the human-entered justification attribute. Masking is
// destructive; the original values are not recoverable from the stored record.
func (e Event) Masked() Event {
	out := e
	out.Reason = Mask(e.Reason)
	if len(e.Attrs) > 0 {
		attrs := make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			attrs[k] = v
		}
		if v, ok := attrs[domain.AttrJustification]; ok {
			attrs[domain.AttrJustification] = Mask(v)
		}
		out.Attrs = attrs
	}
	return out
}
