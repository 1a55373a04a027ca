package entity

// Severity classifies how actionable a diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// SuggestionKind says what sort of correction a suggestion proposes.
type SuggestionKind string

const (
	SuggestReplace   SuggestionKind = "replace"
	SuggestFormat    SuggestionKind = "format"
	SuggestCalculate SuggestionKind = "calculate"
	SuggestLookup    SuggestionKind = "lookup"
	SuggestManual    SuggestionKind = "manual"
)

// CorrectionSuggestion is one concrete way to fix a flagged field.
// SuggestedValue may be empty when the fix needs user input.
type CorrectionSuggestion struct {
	Kind           SuggestionKind `json:"kind"`
	Description    string         `json:"description"`
	SuggestedValue string         `json:"suggested_value,omitempty"`
	Confidence     float64        `json:"confidence"`
	RequiresInput  bool           `json:"requires_input"`
	InputShape     string         `json:"input_shape,omitempty"`
}

// Enrichment attaches causes and ranked suggestions to a diagnostic.
// AutoFixable is true only when a suggestion carries a concrete value and
// needs no user input.
type Enrichment struct {
	PossibleCauses []string               `json:"possible_causes,omitempty"`
	Suggestions    []CorrectionSuggestion `json:"suggestions,omitempty"`
	AutoFixable    bool                   `json:"auto_fixable"`
	RelatedFields  []string               `json:"related_fields,omitempty"`
}

// ValidationDiagnostic is one validation finding. Produced fresh on every
// validation pass, never mutated.
type ValidationDiagnostic struct {
	Field      string      `json:"field"`
	Message    string      `json:"message"`
	Severity   Severity    `json:"severity"`
	Suggestion string      `json:"suggestion,omitempty"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}
