package outreach

import "strings"

// NormalizePhone reduces a phone number to a +digits form so the same
// business discovered twice dedupes on the phone key. Bare 10-digit numbers
// are treated as US national format.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) == 10 {
		digits = "1" + digits
	}
	return "+" + digits
}

// NormalizeEmail lowercases and trims an email address for matching.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
