// Package strutil holds small string helpers shared by the protocol and
// aggregation layers.
package strutil

import "strings"

// NormalizeUpper trims surrounding whitespace and converts to upper case.
// Use for callsigns, tag names, and other tokens where case is not significant.
func NormalizeUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// NormalizeLower trims surrounding whitespace and converts to lower case.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// OrDefault returns the trimmed value, or fallback when it is blank.
func OrDefault(value, fallback string) string {
	if t := strings.TrimSpace(value); t != "" {
		return t
	}
	return fallback
}
