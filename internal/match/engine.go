// Package match reconciles extracted vendor identity against a known-party
// directory using exact, fuzzy and partial strategies. Ambiguity is never a
// hard failure: the result is a ranked candidate list plus an explicit
// create-new-party fallback.
package match

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/textutil"
)

// Config holds the matching thresholds.
type Config struct {
	FuzzyThreshold     float64 // fuzzy candidates below this are discarded, default 0.7
	PartialThreshold   float64 // partial candidates below this are discarded, default 0.6
	BestMatchThreshold float64 // FindBestMatch gate, default 0.6
	NewPartyThreshold  float64 // below this a new-party suggestion is emitted, default 0.7
}

// Engine scores extracted vendors against directory parties.
type Engine struct {
	logger *slog.Logger
	cfg    Config
}

func NewEngine(logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = 0.7
	}
	if cfg.PartialThreshold <= 0 {
		cfg.PartialThreshold = 0.6
	}
	if cfg.BestMatchThreshold <= 0 {
		cfg.BestMatchThreshold = 0.6
	}
	if cfg.NewPartyThreshold <= 0 {
		cfg.NewPartyThreshold = 0.7
	}
	return &Engine{logger: logger, cfg: cfg}
}

// FindAllMatches evaluates all tiers against the directory and returns the
// merged candidates ranked by confidence. Duplicates per party keep the
// highest-confidence entry.
func (e *Engine) FindAllMatches(vendor entity.VendorIdentity, directory []entity.Party) []entity.VendorCandidate {
	byParty := map[string]entity.VendorCandidate{}
	keep := func(c entity.VendorCandidate) {
		if prev, ok := byParty[c.Party.ID]; !ok || c.Confidence > prev.Confidence {
			byParty[c.Party.ID] = c
		}
	}

	taxID := strings.ToUpper(strings.TrimSpace(vendor.TaxID))
	normName := NormalizeCompanyName(vendor.Name)

	for _, p := range directory {
		if taxID != "" && strings.EqualFold(strings.TrimSpace(p.TaxID), taxID) {
			keep(entity.VendorCandidate{Party: p, Confidence: 1.0, Kind: entity.MatchExact, MatchedFields: []string{"tax_id"}})
			continue
		}
		if normName != "" && NormalizeCompanyName(p.CompanyName) == normName {
			keep(entity.VendorCandidate{Party: p, Confidence: 0.95, Kind: entity.MatchExact, MatchedFields: []string{"name"}})
			continue
		}
		if c, ok := e.fuzzyMatch(vendor, p); ok {
			keep(c)
		}
		if c, ok := e.partialMatch(vendor, p); ok {
			keep(c)
		}
	}

	candidates := make([]entity.VendorCandidate, 0, len(byParty))
	for _, c := range byParty {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if ki, kj := kindRank(candidates[i].Kind), kindRank(candidates[j].Kind); ki != kj {
			return ki < kj
		}
		return candidates[i].Party.ID < candidates[j].Party.ID
	})

	e.logger.Debug("match.done", "vendor", vendor.Name, "candidates", len(candidates))
	return candidates
}

// FindBestMatch returns the top candidate only if its confidence clears the
// best-match threshold.
func (e *Engine) FindBestMatch(vendor entity.VendorIdentity, directory []entity.Party) *entity.VendorCandidate {
	candidates := e.FindAllMatches(vendor, directory)
	if len(candidates) == 0 || candidates[0].Confidence < e.cfg.BestMatchThreshold {
		return nil
	}
	best := candidates[0]
	return &best
}

func kindRank(k entity.MatchKind) int {
	switch k {
	case entity.MatchExact:
		return 0
	case entity.MatchFuzzy:
		return 1
	default:
		return 2
	}
}

// fuzzy field weights: name 0.4, contact 0.2, address 0.2, street 0.1,
// city 0.1. Only fields present on both sides contribute; the score is
// renormalized over the weights actually used.
func (e *Engine) fuzzyMatch(vendor entity.VendorIdentity, p entity.Party) (entity.VendorCandidate, bool) {
	street, city := splitAddress(vendor.Address)
	fields := []struct {
		name   string
		weight float64
		a, b   string
	}{
		{"name", 0.4, NormalizeCompanyName(vendor.Name), NormalizeCompanyName(p.CompanyName)},
		{"contact", 0.2, textutil.Normalize(vendor.Contact), textutil.Normalize(p.Contact)},
		{"address", 0.2, NormalizeAddress(vendor.Address), NormalizeAddress(p.Address)},
		{"street", 0.1, NormalizeAddress(street), NormalizeAddress(p.Street)},
		{"city", 0.1, textutil.Normalize(city), textutil.Normalize(p.City)},
	}
	var score, used float64
	var matched []string
	for _, f := range fields {
		if f.a == "" || f.b == "" {
			continue
		}
		sim := textutil.TokenSimilarity(f.a, f.b)
		score += sim * f.weight
		used += f.weight
		if sim >= 0.8 {
			matched = append(matched, f.name)
		}
	}
	if used == 0 {
		return entity.VendorCandidate{}, false
	}
	score /= used
	if score < e.cfg.FuzzyThreshold {
		return entity.VendorCandidate{}, false
	}
	return entity.VendorCandidate{Party: p, Confidence: round2(score), Kind: entity.MatchFuzzy, MatchedFields: matched}, true
}

// partial match scores name (0.5), address (0.3) and extracted city (0.2)
// independently via normalized Levenshtein similarity.
func (e *Engine) partialMatch(vendor entity.VendorIdentity, p entity.Party) (entity.VendorCandidate, bool) {
	_, city := splitAddress(vendor.Address)
	fields := []struct {
		name   string
		weight float64
		a, b   string
	}{
		{"name", 0.5, NormalizeCompanyName(vendor.Name), NormalizeCompanyName(p.CompanyName)},
		{"address", 0.3, NormalizeAddress(vendor.Address), NormalizeAddress(p.Address)},
		{"city", 0.2, textutil.Normalize(city), textutil.Normalize(p.City)},
	}
	var score, used float64
	var matched []string
	for _, f := range fields {
		if f.a == "" || f.b == "" {
			continue
		}
		sim := textutil.Similarity(f.a, f.b)
		score += sim * f.weight
		used += f.weight
		if sim >= 0.8 {
			matched = append(matched, f.name)
		}
	}
	if used == 0 {
		return entity.VendorCandidate{}, false
	}
	score /= used
	if score < e.cfg.PartialThreshold {
		return entity.VendorCandidate{}, false
	}
	return entity.VendorCandidate{Party: p, Confidence: round2(score), Kind: entity.MatchPartial, MatchedFields: matched}, true
}

// SuggestNewParty proposes creating a directory entry when no candidate
// reaches the new-party threshold. Returns nil when a match is strong
// enough.
func (e *Engine) SuggestNewParty(vendor entity.VendorIdentity, candidates []entity.VendorCandidate) *entity.NewPartySuggestion {
	if len(candidates) > 0 && candidates[0].Confidence >= e.cfg.NewPartyThreshold {
		return nil
	}
	reason := "no match found in the vendor directory"
	if len(candidates) > 0 {
		reason = fmt.Sprintf("best match %q reached only %.2f confidence",
			candidates[0].Party.CompanyName, candidates[0].Confidence)
	}
	postal, city := ParsePostalCity(vendor.Address)
	return &entity.NewPartySuggestion{
		CompanyName: vendor.Name,
		Address:     vendor.Address,
		PostalCode:  postal,
		City:        city,
		TaxID:       vendor.TaxID,
		Reason:      reason,
	}
}

// splitAddress separates a combined "street, postal city" address into its
// street part and city part.
func splitAddress(address string) (street, city string) {
	_, city = ParsePostalCity(address)
	if i := strings.Index(address, ","); i >= 0 {
		street = strings.TrimSpace(address[:i])
	} else if city == "" {
		street = strings.TrimSpace(address)
	}
	return street, city
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
