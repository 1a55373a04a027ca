package extract

import (
	"regexp"
	"time"
)

var (
	reDateDMY = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{2}|\d{4})\b`)
	reDateISO = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
)

// ParseDateToken normalizes a day-month-year date token (with 2- or 4-digit
// year) or an ISO date to midnight UTC. Two-digit years are expanded to the
// current century; if the result lands more than 50 years in the future, a
// century is subtracted.
func ParseDateToken(s string, now time.Time) (time.Time, bool) {
	if m := reDateISO.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[3]), atoi(m[2]), atoi(m[1]), now)
	}
	if m := reDateDMY.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now)
	}
	return time.Time{}, false
}

func buildDate(day, month, year int, now time.Time) (time.Time, bool) {
	if year < 100 {
		year += (now.Year() / 100) * 100
		if year > now.Year()+50 {
			year -= 100
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject overflow like 31.02.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
