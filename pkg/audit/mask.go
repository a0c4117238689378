package audit

import "regexp"

// Placeholder tokens substituted for recognized PII. They contain no digits,
// dots or @ signs, so they are fixed points of Mask: masking twice equals
// masking once.
const (
	PlaceholderEmail = "[EMAIL]"
	PlaceholderPhone = "[PHONE]"
	PlaceholderIPv4  = "[IPV4]"
)

// Pattern-based, best-effort reduction of accidental disclosure. This is not
// a PII classifier and makes no compliance guarantee.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\b(\+?\d[\d\- ]{8,}\d)\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Mask replaces email addresses, phone-number-like digit runs and IPv4
// addresses with fixed placeholders. Substitution order matters: emails go
// first so their digit-bearing local parts cannot be half-eaten by the phone
// pattern.
func Mask(text string) string {
	if text == "" {
		return text
	}
	text = emailPattern.ReplaceAllString(text, PlaceholderEmail)
	text = phonePattern.ReplaceAllString(text, PlaceholderPhone)
	text = ipv4Pattern.ReplaceAllString(text, PlaceholderIPv4)
	return text
}
