package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/extract"
)

var (
	reBareDigits9   = regexp.MustCompile(`^\d{9}$`)
	reLowerTaxID    = regexp.MustCompile(`^[a-z]{2}\d{9}$`)
	reAllDigits     = regexp.MustCompile(`^\d+$`)
	reTwoDigitYear  = regexp.MustCompile(`^\d{1,2}[./-]\d{1,2}[./-]\d{2}$`)
	reISODateRaw    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reUSDecimalsRaw = regexp.MustCompile(`\d,\d{3}\.\d{2}`)
)

// enrich recognizes known problematic field/value shapes and attaches
// causes, ranked correction suggestions and an auto-fix flag to a
// diagnostic. Auto-fixable means a suggestion carries a concrete value and
// needs no user input.
func enrich(d *entity.ValidationDiagnostic, inv *entity.ExtractedInvoice) {
	switch d.Field {
	case entity.FieldVendorTaxID:
		enrichTaxID(d, inv)
	case entity.FieldInvoiceNumber:
		enrichInvoiceNumber(d, inv)
	case entity.FieldIssueDate, entity.FieldDueDate:
		enrichDate(d, inv)
	case entity.FieldTaxAmount, entity.FieldTotal, entity.FieldSubtotal:
		enrichAmount(d, inv)
	}
	if d.Enrichment != nil {
		d.Enrichment.AutoFixable = autoFixable(d.Enrichment.Suggestions)
	}
}

func autoFixable(suggestions []entity.CorrectionSuggestion) bool {
	for _, s := range suggestions {
		if s.SuggestedValue != "" && !s.RequiresInput {
			return true
		}
	}
	return false
}

func enrichTaxID(d *entity.ValidationDiagnostic, inv *entity.ExtractedInvoice) {
	id := inv.Vendor.TaxID
	switch {
	case reBareDigits9.MatchString(id):
		d.Enrichment = &entity.Enrichment{
			PossibleCauses: []string{
				"VAT id is missing the DE country prefix",
				"recognition dropped the leading letters",
			},
			Suggestions: []entity.CorrectionSuggestion{{
				Kind:           entity.SuggestFormat,
				Description:    "prefix the 9-digit id with the country code DE",
				SuggestedValue: "DE" + id,
				Confidence:     0.9,
			}},
			RelatedFields: []string{entity.FieldVendorName},
		}
	case reLowerTaxID.MatchString(id):
		d.Enrichment = &entity.Enrichment{
			PossibleCauses: []string{"country prefix was recognized in lower case"},
			Suggestions: []entity.CorrectionSuggestion{{
				Kind:           entity.SuggestFormat,
				Description:    "upper-case the country prefix",
				SuggestedValue: strings.ToUpper(id),
				Confidence:     0.95,
			}},
		}
	case id == "":
		d.Enrichment = &entity.Enrichment{
			PossibleCauses: []string{
				"VAT id was not printed on the document",
				"recognition failed on the VAT id line",
			},
			Suggestions: []entity.CorrectionSuggestion{{
				Kind:          entity.SuggestManual,
				Description:   "enter the vendor VAT id",
				Confidence:    0.3,
				RequiresInput: true,
				InputShape:    "DE followed by 9 digits",
			}},
		}
	}
}

func enrichInvoiceNumber(d *entity.ValidationDiagnostic, inv *entity.ExtractedInvoice) {
	n := inv.InvoiceNumber
	if n == "" || !reAllDigits.MatchString(n) {
		return
	}
	d.Enrichment = &entity.Enrichment{
		PossibleCauses: []string{
			"invoice number consists only of digits; an alphabetic prefix may have been lost in recognition",
		},
		Suggestions: []entity.CorrectionSuggestion{{
			Kind:          entity.SuggestManual,
			Description:   "check the document for a prefix such as RE- or INV-",
			Confidence:    0.4,
			RequiresInput: true,
			InputShape:    "prefix + digits",
		}},
	}
}

func enrichDate(d *entity.ValidationDiagnostic, inv *entity.ExtractedInvoice) {
	raw := inv.RawFields[d.Field]
	if raw == "" {
		return
	}
	switch {
	case reTwoDigitYear.MatchString(raw):
		val := inv.IssueDate
		if d.Field == entity.FieldDueDate {
			val = inv.DueDate
		}
		// the suggested value is the century expansion already applied during
		// parsing; the user confirms it rather than the pipeline re-applying it
		d.Enrichment = &entity.Enrichment{
			PossibleCauses: []string{fmt.Sprintf("date %q uses a two-digit year, which is ambiguous", raw)},
			Suggestions: []entity.CorrectionSuggestion{{
				Kind:           entity.SuggestFormat,
				Description:    "confirm the expanded four-digit year",
				SuggestedValue: val.Format("2006-01-02"),
				Confidence:     0.8,
				RequiresInput:  true,
				InputShape:     "YYYY-MM-DD",
			}},
		}
	case reISODateRaw.MatchString(raw):
		d.Enrichment = &entity.Enrichment{
			PossibleCauses: []string{fmt.Sprintf("date %q is in ISO format where a day.month.year date was expected", raw)},
			Suggestions: []entity.CorrectionSuggestion{{
				Kind:           entity.SuggestFormat,
				Description:    "confirm day and month were not swapped",
				Confidence:     0.5,
				RequiresInput:  true,
				InputShape:     "DD.MM.YYYY",
			}},
		}
	}
}

func enrichAmount(d *entity.ValidationDiagnostic, inv *entity.ExtractedInvoice) {
	if d.Severity != entity.SeverityError {
		return
	}
	s, t := inv.Totals.Subtotal, inv.Totals.TaxAmount
	causes := []string{"amounts may have been misread or belong to different totals blocks"}
	for _, raw := range inv.RawFields {
		if reUSDecimalsRaw.MatchString(raw) {
			causes = append(causes, "an amount uses US-style thousands/decimal separators")
			break
		}
	}
	e := &entity.Enrichment{
		PossibleCauses: causes,
		RelatedFields:  []string{entity.FieldSubtotal, entity.FieldTaxAmount, entity.FieldTotal},
	}
	if d.Field == entity.FieldTaxAmount && s > 0 {
		e.Suggestions = append(e.Suggestions, entity.CorrectionSuggestion{
			Kind:           entity.SuggestCalculate,
			Description:    "recompute the tax as 19% of the subtotal",
			SuggestedValue: fmt.Sprintf("%.2f", extract.Round2(s*0.19)),
			Confidence:     0.7,
		})
	}
	if d.Field == entity.FieldTotal && s > 0 && t >= 0 {
		e.Suggestions = append(e.Suggestions, entity.CorrectionSuggestion{
			Kind:           entity.SuggestCalculate,
			Description:    "recompute the total as subtotal plus tax",
			SuggestedValue: fmt.Sprintf("%.2f", extract.Round2(s+t)),
			Confidence:     0.7,
		})
	}
	d.Enrichment = e
}

// ApplyAutoFix applies the first eligible suggestion of an enriched
// diagnostic to the record. Re-applying the same fix to already-corrected
// data never changes the value again. Returns true when a field changed.
func ApplyAutoFix(inv *entity.ExtractedInvoice, d entity.ValidationDiagnostic) bool {
	if d.Enrichment == nil || !d.Enrichment.AutoFixable {
		return false
	}
	var val string
	for _, s := range d.Enrichment.Suggestions {
		if s.SuggestedValue != "" && !s.RequiresInput {
			val = s.SuggestedValue
			break
		}
	}
	if val == "" {
		return false
	}
	switch d.Field {
	case entity.FieldVendorTaxID:
		if inv.Vendor.TaxID == val {
			return false
		}
		inv.Vendor.TaxID = val
	case entity.FieldInvoiceNumber:
		if inv.InvoiceNumber == val {
			return false
		}
		inv.InvoiceNumber = val
	case entity.FieldTaxAmount:
		if v, ok := extract.ParseAmount(val); ok && v != inv.Totals.TaxAmount {
			inv.Totals.TaxAmount = v
			return true
		}
		return false
	case entity.FieldTotal:
		if v, ok := extract.ParseAmount(val); ok && v != inv.Totals.Total {
			inv.Totals.Total = v
			return true
		}
		return false
	default:
		return false
	}
	return true
}
