package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims input and clips it to maxLen bytes without splitting
// a multi-byte rune. A non-positive maxLen disables clipping.
func SanitizeString(input string, maxLen int) string {
	out := strings.TrimSpace(input)
	if maxLen <= 0 || len(out) <= maxLen {
		return out
	}
	out = out[:maxLen]
	for len(out) > 0 && !utf8.ValidString(out) {
		out = out[:len(out)-1]
	}
	return out
}

// NormalizeCode upper-cases coupon and warehouse codes so lookups are
// case-insensitive.
func NormalizeCode(input string, maxLen int) string {
	return strings.ToUpper(SanitizeString(input, maxLen))
}
