package domain

// IdentityContext carries the resolved caller identity for one request.
// It is created once per request from transport metadata, never persisted,
// and must not be mutated after creation.
type IdentityContext struct {
	Role       string
	Attributes map[string]string
}

// Attribute keys conventionally recognized by the policy layer. The attribute
// map is an open set; these are the keys the shipped policies reference.
const (
	AttrOrgUnit       = "org_unit"
	AttrGeo           = "geo"
	AttrTicketID      = "ticket_id"
	AttrJustification = "justification"
)

// Attr returns the attribute value and whether it is present. Absence is
// semantically different from an empty string: resolvers never store empty
// values, so presence implies non-empty.
func (ic IdentityContext) Attr(key string) (string, bool) {
	v, ok := ic.Attributes[key]
	return v, ok
}

// CloneAttributes returns a copy of the attribute map so callers can hand the
// context to other goroutines without sharing mutable state.
func (ic IdentityContext) CloneAttributes() map[string]string {
	if len(ic.Attributes) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(ic.Attributes))
	for k, v := range ic.Attributes {
		out[k] = v
	}
	return out
}
