package entity

// MatchKind names the strategy that produced a vendor candidate.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchFuzzy   MatchKind = "fuzzy"
	MatchPartial MatchKind = "partial"
)

// VendorCandidate is one ranked directory match for an extracted vendor.
type VendorCandidate struct {
	Party         Party     `json:"party"`
	Confidence    float64   `json:"confidence"`
	Kind          MatchKind `json:"kind"`
	MatchedFields []string  `json:"matched_fields,omitempty"`
}

// NewPartySuggestion proposes creating a directory entry when no candidate
// is strong enough, pre-filled from extracted vendor fields.
type NewPartySuggestion struct {
	CompanyName string `json:"company_name"`
	Address     string `json:"address,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	Reason      string `json:"reason"`
}
