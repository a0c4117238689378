package domain

import "testing"

func TestReasonMissingAttr(t *testing.T) {
	r := ReasonMissingAttr("ticket_id")
	if r != "missing_attr:ticket_id" {
		t.Fatalf("unexpected reason %q", r)
	}

	key, ok := r.IsMissingAttr()
	if !ok || key != "ticket_id" {
		t.Fatalf("expected missing_attr family with key ticket_id, got %q %v", key, ok)
	}

	if _, ok := ReasonExplicitDeny.IsMissingAttr(); ok {
		t.Fatalf("explicit_deny must not parse as missing_attr")
	}
}

func TestDecisionConstructors(t *testing.T) {
	if d := Allow(); !d.Allowed || d.Reason != ReasonOK {
		t.Fatalf("Allow() produced %+v", d)
	}
	if d := Deny(ReasonUnknownRole); d.Allowed || d.Reason != ReasonUnknownRole {
		t.Fatalf("Deny() produced %+v", d)
	}
}

func TestIdentityContextAttr(t *testing.T) {
	ic := IdentityContext{Role: "admin", Attributes: map[string]string{AttrTicketID: "T1"}}

	if v, ok := ic.Attr(AttrTicketID); !ok || v != "T1" {
		t.Fatalf("expected ticket_id T1, got %q %v", v, ok)
	}
	if _, ok := ic.Attr(AttrJustification); ok {
		t.Fatalf("absent attribute must not report present")
	}

	clone := ic.CloneAttributes()
	clone[AttrGeo] = "EU"
	if _, ok := ic.Attr(AttrGeo); ok {
		t.Fatalf("clone mutation leaked into the original context")
	}
}
