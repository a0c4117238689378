package domain

import "strings"

// Reason is a machine-readable code explaining a decision. Denials never carry
// free-text explanations; the code's granularity is the contract.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonUnknownRole       Reason = "unknown_role"
	ReasonUnknownIntent     Reason = "unknown_intent"
	ReasonExplicitDeny      Reason = "explicit_deny"
	ReasonNotInAllow        Reason = "not_in_allow"
	ReasonBreakGlassMissing Reason = "break_glass_missing"

	// reasonMissingAttrPrefix heads the one parameterized reason family.
	reasonMissingAttrPrefix = "missing_attr:"
)

// ReasonMissingAttr builds the deny reason for an unmet attribute requirement.
func ReasonMissingAttr(key string) Reason {
	return Reason(reasonMissingAttrPrefix + key)
}

// IsMissingAttr reports whether r belongs to the missing_attr family and, if
// so, which attribute key it names.
func (r Reason) IsMissingAttr() (string, bool) {
	s := string(r)
	if !strings.HasPrefix(s, reasonMissingAttrPrefix) {
		return "", false
	}
	return s[len(reasonMissingAttrPrefix):], true
}

// Decision is the policy engine's verdict for one request. Ephemeral.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow and Deny are the only two constructors; they keep the allowed flag and
// reason code consistent at every call site.
func Allow() Decision             { return Decision{Allowed: true, Reason: ReasonOK} }
func Deny(reason Reason) Decision { return Decision{Allowed: false, Reason: reason} }
