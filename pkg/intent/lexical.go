package intent

import "strings"

// The lexical stage is a deliberately blunt safety net for override attempts
// that score below the semantic threshold. False positives are acceptable:
// the policy engine still re-checks break-glass attributes before granting
// anything.
var (
	overrideTriggers = []string{
		"ignore rules",
		"override",
		"bypass",
		"elevate",
		"admin",
		"administrator",
		"root",
		"superuser",
		"break glass",
	}

	privilegedOps = []string{
		"export",
		"dump",
		"download",
		"csv",
		"payroll",
		"salary",
		"pii",
		"customer data",
	}
)

// LexicalOverride reports whether the prompt contains both an override
// trigger and a privileged-operation token. Matching is lowercase substring
// containment, nothing smarter.
func LexicalOverride(text string) bool {
	t := strings.ToLower(text)
	return containsAny(t, overrideTriggers) && containsAny(t, privilegedOps)
}

func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
