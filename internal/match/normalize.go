package match

import (
	"regexp"
	"strings"

	"github.com/belegwerk/docpipe/internal/textutil"
)

var (
	reLegalForm = regexp.MustCompile(`(?i)\b(?:gmbh\s*&\s*co\.?\s*kg|gmbh|kgaa|ag|kg|ug|ohg|gbr|mbh|e\.\s?v\.|e\.\s?k\.|inc\.?|ltd\.?|llc)\b`)
	rePostal    = regexp.MustCompile(`\b(\d{5})\s+([\p{L}][\p{L} .-]*)`)

	streetSynonyms = strings.NewReplacer(
		"strasse", "str",
		"straße", "str",
		"str.", "str",
	)
)

// NormalizeCompanyName strips legal-form suffixes (GmbH, AG, KG, ...),
// collapses punctuation and lower-cases, so "Acme GmbH" and "ACME" compare
// equal.
func NormalizeCompanyName(s string) string {
	s = reLegalForm.ReplaceAllString(s, " ")
	return textutil.Normalize(s)
}

// NormalizeAddress lower-cases, collapses punctuation and canonicalizes
// street-suffix synonyms (straße/strasse/str.) to one token.
func NormalizeAddress(s string) string {
	s = streetSynonyms.Replace(strings.ToLower(s))
	return textutil.Normalize(s)
}

// ParsePostalCity pulls a 5-digit postal code and the following city words
// out of a free-form address.
func ParsePostalCity(address string) (postalCode, city string) {
	m := rePostal.FindStringSubmatch(address)
	if m == nil {
		return "", ""
	}
	return m[1], strings.TrimSpace(m[2])
}
