package policy

import "github.com/arbiterai/arbiter-oss/pkg/domain"

// Decide evaluates role + intent + attributes against this snapshot.
//
// Checks run in a fixed order and short-circuit on the first failure. The
// order is part of the contract: deny is checked before allow so deny always
// wins, and attribute requirements are checked in their declaration order so
// the reported missing_attr key is deterministic.
//
// Pure and deterministic: no I/O, no side effects, safe to call from many
// request goroutines concurrently.
func (s *Snapshot) Decide(role, intent string, attrs map[string]string) domain.Decision {
	r, known := s.roles[role]
	if !known {
		return domain.Deny(domain.ReasonUnknownRole)
	}

	// Fail closed: unclassifiable input is never permitted, wildcard or not.
	if intent == domain.IntentUnknown {
		return domain.Deny(domain.ReasonUnknownIntent)
	}

	if _, denied := r.deny[intent]; denied {
		return domain.Deny(domain.ReasonExplicitDeny)
	}

	if !r.allowAll {
		if _, allowed := r.allow[intent]; !allowed {
			return domain.Deny(domain.ReasonNotInAllow)
		}
	}

	for _, req := range s.intents[intent] {
		if attrs[req.Key] != req.Value {
			return domain.Deny(domain.ReasonMissingAttr(req.Key))
		}
	}

	if intent == domain.IntentAdminOverride {
		for _, key := range r.breakGlass {
			if attrs[key] == "" {
				return domain.Deny(domain.ReasonBreakGlassMissing)
			}
		}
	}

	return domain.Allow()
}
