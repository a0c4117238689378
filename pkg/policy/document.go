package policy

import (
	"fmt"
	"strings"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Wildcard in a role's allow list grants every intent except those in deny.
const Wildcard = "*"

// versionFallback mirrors the behaviour of documents that omit policy_version.
const versionFallback = "unversioned"

// Document is the on-disk shape of the access policy.
type Document struct {
	PolicyVersion string                `yaml:"policy_version"`
	Roles         map[string]RoleRule   `yaml:"roles"`
	Intents       map[string]IntentRule `yaml:"intents"`
}

// RoleRule declares what a role may and may not do.
type RoleRule struct {
	Allow   []string     `yaml:"allow"`
	Deny    []string     `yaml:"deny"`
	Special SpecialRules `yaml:"special"`
}

// SpecialRules holds per-role escalation requirements.
type SpecialRules struct {
	// BreakGlassRequires lists attribute keys that must be present and
	// non-empty before admin_override is granted to this role.
	BreakGlassRequires []string `yaml:"break_glass_requires"`
}

// IntentRule declares attribute requirements for an intent.
type IntentRule struct {
	// RequiresAttr entries use the form "key:value"; the caller must supply
	// that exact key with that exact value.
	RequiresAttr []string `yaml:"requires_attr"`
}

// AttrRequirement is a parsed "key:value" requirement.
type AttrRequirement struct {
	Key   string
	Value string
}

// compiledRole is the lookup-ready form of a RoleRule.
type compiledRole struct {
	allowAll   bool
	allow      map[string]struct{}
	deny       map[string]struct{}
	breakGlass []string
}

// Snapshot is an immutable, compiled policy. Safe for concurrent reads
// without synchronization.
type Snapshot struct {
	version string
	roles   map[string]compiledRole
	intents map[string][]AttrRequirement
}

// Version returns the policy_version of the loaded document.
func (s *Snapshot) Version() string { return s.version }

// Roles returns the role names present in the policy, for diagnostics.
func (s *Snapshot) Roles() []string {
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	return names
}

// Parse unmarshals and compiles a YAML policy document.
func Parse(data []byte) (*Snapshot, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPolicyInvalid, err)
	}
	return Compile(doc)
}

// Compile validates a Document and produces an immutable Snapshot.
func Compile(doc Document) (*Snapshot, error) {
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("%w: no roles defined", domain.ErrPolicyInvalid)
	}

	version := doc.PolicyVersion
	if version == "" {
		version = versionFallback
	}

	snap := &Snapshot{
		version: version,
		roles:   make(map[string]compiledRole, len(doc.Roles)),
		intents: make(map[string][]AttrRequirement, len(doc.Intents)),
	}

	for name, rule := range doc.Roles {
		compiled := compiledRole{
			allow:      make(map[string]struct{}, len(rule.Allow)),
			deny:       make(map[string]struct{}, len(rule.Deny)),
			breakGlass: append([]string(nil), rule.Special.BreakGlassRequires...),
		}
		for _, label := range rule.Allow {
			if label == Wildcard {
				compiled.allowAll = true
				continue
			}
			compiled.allow[label] = struct{}{}
		}
		for _, label := range rule.Deny {
			compiled.deny[label] = struct{}{}
		}
		snap.roles[name] = compiled
	}

	for label, rule := range doc.Intents {
		reqs := make([]AttrRequirement, 0, len(rule.RequiresAttr))
		for _, entry := range rule.RequiresAttr {
			key, value, ok := strings.Cut(entry, ":")
			if !ok || key == "" {
				return nil, fmt.Errorf("%w: intent %q has malformed requires_attr %q", domain.ErrPolicyInvalid, label, entry)
			}
			reqs = append(reqs, AttrRequirement{Key: key, Value: value})
		}
		snap.intents[label] = reqs
	}

	return snap, nil
}
