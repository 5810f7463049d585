package documents

import "unicode/utf8"

// Truncate caps s at max bytes without splitting a UTF-8 sequence.
// A max of zero or less means no limit.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
