// Package identity resolves the caller's role and attributes from transport
// metadata. Production deployments are expected to place a verified-claim
// extractor in front of this resolver; the gateway's contract only requires a
// resolved {role, attributes} pair, not the trust mechanism behind it.
package identity

import (
	"strings"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
)

// Header names carrying identity claims.
const (
	HeaderRole          = "x-user-role"
	HeaderOrgUnit       = "x-user-orgunit"
	HeaderGeo           = "x-user-geo"
	HeaderTicketID      = "x-ticket-id"
	HeaderJustification = "x-justification"
	HeaderRequestID     = "x-request-id"
)

// DefaultRole is assigned when no role header is supplied. Absence of
// identity must never default to an elevated role.
const DefaultRole = "intern"

var attrHeaders = map[string]string{
	HeaderOrgUnit:       domain.AttrOrgUnit,
	HeaderGeo:           domain.AttrGeo,
	HeaderTicketID:      domain.AttrTicketID,
	HeaderJustification: domain.AttrJustification,
}

// Resolve builds an IdentityContext from header-like metadata. Header names
// are matched case-insensitively. Attribute headers with empty values are
// omitted from the map rather than stored as empty strings. No attribute
// validation happens here; that belongs to the policy engine.
func Resolve(headers map[string]string) domain.IdentityContext {
	lowered := make(map[string]string, len(headers))
	for k, v := range headers {
		lowered[strings.ToLower(k)] = v
	}

	role := lowered[HeaderRole]
	if role == "" {
		role = DefaultRole
	}

	attrs := make(map[string]string, len(attrHeaders))
	for header, key := range attrHeaders {
		if v := lowered[header]; v != "" {
			attrs[key] = v
		}
	}

	return domain.IdentityContext{Role: role, Attributes: attrs}
}
