package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countRe   = regexp.MustCompile(`\d{1,3}(?:[\s\x{00a0}\x{202f}.,]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?`)
)

// ParseRating reads the first decimal number in s, accepting either comma
// or dot as the decimal separator ("4,5", "Rating 4.5 out of 5").
// Non-positive values are treated as unparsed.
func ParseRating(s string) (float64, bool) {
	m := decimalRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseCount reads the first integer in s, tolerating thousands separators
// such as "1 234", "1,234" or "1.234". Decimals are skipped, so a rating
// printed ahead of the count ("4,8 (1 234 отзыва)") is not mistaken for it.
func ParseCount(s string) (int, bool) {
	for _, m := range countRe.FindAllString(s, -1) {
		if isDecimal(m) {
			continue
		}
		var b strings.Builder
		for _, r := range m {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		if n, err := strconv.Atoi(b.String()); err == nil {
			return n, true
		}
	}
	return 0, false
}

// isDecimal reports whether the digits after the last '.' or ',' are a
// fraction rather than a thousands group.
func isDecimal(m string) bool {
	i := strings.LastIndexAny(m, ".,")
	return i >= 0 && len(m)-i-1 != 3
}
