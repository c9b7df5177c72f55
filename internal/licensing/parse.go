package licensing

import (
	"strings"
	"time"

	"github.com/homebid/match-cli/internal/outreach"
)

// normalizeCol lowercases and trims a header cell for cross-format
// column matching.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapColumns builds a normalized column name → index map from a header row.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}

// getCol gets a column value by normalized name.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// trimQuotes removes surrounding double quotes from a roster field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// sanitizeUTF8 drops invalid byte sequences so the store never rejects
// a row over a stray Latin-1 character.
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// dateLayouts covers the formats the boards actually publish.
var dateLayouts = []string{"01/02/2006", "2006-01-02", "1/2/2006"}

// parseDate parses a roster date, returning nil for empty or
// unrecognized values.
func parseDate(s string) *time.Time {
	s = trimQuotes(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// normalizeStatus maps each board's status vocabulary onto a shared one.
// CSLB says "CLEAR", Florida says "Current,Active", TDLR says "Active";
// they all mean the same thing to the cross-referencer.
func normalizeStatus(s string) string {
	v := strings.ToLower(trimQuotes(s))
	switch {
	case v == "":
		return "unknown"
	case strings.Contains(v, "inactive"):
		return "inactive"
	case v == "clear" || strings.Contains(v, "active") || v == "current":
		return "active"
	case strings.Contains(v, "expired") || strings.Contains(v, "delinquent"):
		return "expired"
	case strings.Contains(v, "suspend"):
		return "suspended"
	case strings.Contains(v, "revoked") || strings.Contains(v, "cancel") || strings.Contains(v, "null and void"):
		return "revoked"
	default:
		return v
	}
}

// phonePtr normalizes a roster phone to the E.164-style form the
// prospect table uses, so the cross-reference join is plain equality.
// Returns nil when the field is empty or carries no digits.
func phonePtr(raw string) *string {
	p := outreach.NormalizePhone(trimQuotes(raw))
	if p == "" {
		return nil
	}
	return &p
}
