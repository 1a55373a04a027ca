package learn

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// featureDim is the size of the hand-engineered feature space all
// observations and queries are projected into.
const featureDim = 9

var (
	reFeatLegalForm = regexp.MustCompile(`(?i)\b(?:gmbh|ag|kg|ug|ohg|gbr|mbh|inc|ltd|llc)\b`)
	reFeatPostal    = regexp.MustCompile(`\b\d{5}\b`)
	reFeatTaxID     = regexp.MustCompile(`\b[A-Za-z]{2}\d{9}\b`)
	reFeatAmount    = regexp.MustCompile(`\d+[.,]\d{2}\b`)
)

// featureVector projects text into a fixed numeric vector: length, word
// count, digit/letter/punctuation ratios, and shape flags for legal forms,
// postal codes, tax ids and currency amounts.
func featureVector(text string) [featureDim]float64 {
	var digits, letters, punct float64
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		}
	}
	n := float64(len([]rune(text)))
	if n == 0 {
		n = 1
	}
	var v [featureDim]float64
	v[0] = math.Min(float64(len(text))/64, 4) // length, damped
	v[1] = float64(len(strings.Fields(text)))
	v[2] = digits / n
	v[3] = letters / n
	v[4] = punct / n
	v[5] = boolFeat(reFeatLegalForm.MatchString(text))
	v[6] = boolFeat(reFeatPostal.MatchString(text))
	v[7] = boolFeat(reFeatTaxID.MatchString(text))
	v[8] = boolFeat(reFeatAmount.MatchString(text))
	return v
}

func boolFeat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func euclidean(a, b [featureDim]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// normalizeRaw is the canonical form observations and queries are keyed by:
// trimmed, lower-cased, single-spaced.
func normalizeRaw(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
