package extract

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount parses a monetary token in either the German decimal-comma
// format ("1.234,56") or the decimal-point format ("1,234.56"). The
// separator roles are decided by comparing the positions of the last comma
// and the last period in the token. A token with only a comma is read as
// decimal comma; only a period as decimal point.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("€", "", "$", "", "EUR", "", "eur", "", " ", "", " ", "").Replace(s)
	if s == "" {
		return 0, false
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56 -> period is the thousands separator
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Round2 rounds a monetary value to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
