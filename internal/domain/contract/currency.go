package contract

import "strings"

// NormalizeCurrency upper-cases a currency code and reports whether it is a
// 3-letter alphabetic code.
func NormalizeCurrency(code string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return c, false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return c, false
		}
	}
	return c, true
}
