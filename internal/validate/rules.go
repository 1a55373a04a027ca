package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/extract"
)

const (
	amountTolerance = 0.02
	maxInvoiceAge   = 2 * 365 * 24 * time.Hour
	maxDueDateSpan  = 90 * 24 * time.Hour
)

var (
	reInvoiceNumber = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9\-/_.]*$`)
	reFourDigits    = regexp.MustCompile(`\d{4}`)
	reGermanTaxID   = regexp.MustCompile(`^DE\d{9}$`)
)

func defaultRules(cfg Config) []Rule {
	return []Rule{
		{Name: "invoice_number_format", Check: checkInvoiceNumber},
		{Name: "vendor_tax_id", Check: checkVendorTaxID},
		{Name: "vat_arithmetic", Check: checkVATArithmetic},
		{Name: "line_item_arithmetic", Check: checkLineItems},
		{Name: "invoice_date_range", Check: checkInvoiceDate},
		{Name: "due_date_window", Check: checkDueDate},
		{Name: "total_positive", Check: checkTotalPositive},
		{Name: "vendor_complete", Check: checkVendorComplete},
		{Name: "duplicate_invoice_number", Check: checkDuplicate},
		{Name: "high_amount", Check: highAmountRule(cfg.HighAmountFlag)},
	}
}

func warn(field, msg string) []entity.ValidationDiagnostic {
	return []entity.ValidationDiagnostic{{Field: field, Message: msg, Severity: entity.SeverityWarning}}
}

func fail(field, msg string) []entity.ValidationDiagnostic {
	return []entity.ValidationDiagnostic{{Field: field, Message: msg, Severity: entity.SeverityError}}
}

func checkInvoiceNumber(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	n := inv.InvoiceNumber
	if n == "" {
		return warn(entity.FieldInvoiceNumber, "invoice number is missing")
	}
	if !reInvoiceNumber.MatchString(n) || !reFourDigits.MatchString(n) {
		return warn(entity.FieldInvoiceNumber,
			fmt.Sprintf("invoice number %q does not look like an alphanumeric prefix followed by at least 4 digits", n))
	}
	return nil
}

func checkVendorTaxID(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	id := inv.Vendor.TaxID
	if id == "" {
		return fail(entity.FieldVendorTaxID, "vendor VAT id is missing")
	}
	if !reGermanTaxID.MatchString(id) {
		return fail(entity.FieldVendorTaxID,
			fmt.Sprintf("vendor VAT id %q is not a valid German VAT id (DE followed by 9 digits)", id))
	}
	return nil
}

// checkVATArithmetic accepts the record when the tax amount matches 19% or
// 7% of the subtotal, or when gross = net + tax, each within 0.02.
func checkVATArithmetic(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	s, t, g := inv.Totals.Subtotal, inv.Totals.TaxAmount, inv.Totals.Total
	if s <= 0 {
		return nil
	}
	exp19 := extract.Round2(s * 0.19)
	exp7 := extract.Round2(s * 0.07)
	if math.Abs(t-exp19) <= amountTolerance || math.Abs(t-exp7) <= amountTolerance {
		return nil
	}
	if math.Abs(g-(s+t)) <= amountTolerance {
		return nil
	}
	d := fail(entity.FieldTaxAmount,
		fmt.Sprintf("tax amount %.2f matches neither 19%% (%.2f) nor 7%% (%.2f) of the subtotal, and gross does not equal net plus tax", t, exp19, exp7))
	d[0].Suggestion = fmt.Sprintf("expected %.2f at 19%% or %.2f at 7%%", exp19, exp7)
	return d
}

// checkLineItems verifies quantity times unit price against each line total
// within 0.02. Line items carry this as an expectation, not a construction
// constraint, so inconsistencies surface here.
func checkLineItems(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	var out []entity.ValidationDiagnostic
	for i, it := range inv.Items {
		if it.Total <= 0 {
			continue
		}
		expected := extract.Round2(it.Quantity * it.UnitPrice)
		if math.Abs(it.Total-expected) > amountTolerance {
			out = append(out, entity.ValidationDiagnostic{
				Field: entity.FieldLineItems,
				Message: fmt.Sprintf("line %d: quantity %.2f x unit price %.2f = %.2f does not match the line total %.2f",
					i+1, it.Quantity, it.UnitPrice, expected, it.Total),
				Severity:   entity.SeverityWarning,
				Suggestion: fmt.Sprintf("%.2f", expected),
			})
		}
	}
	return out
}

func checkInvoiceDate(inv *entity.ExtractedInvoice, vctx Context) []entity.ValidationDiagnostic {
	d := inv.IssueDate
	if d.IsZero() {
		return nil
	}
	if d.After(vctx.Now) {
		return warn(entity.FieldIssueDate, fmt.Sprintf("invoice date %s is in the future", d.Format("2006-01-02")))
	}
	if vctx.Now.Sub(d) > maxInvoiceAge {
		return warn(entity.FieldIssueDate, fmt.Sprintf("invoice date %s is more than 2 years old", d.Format("2006-01-02")))
	}
	return nil
}

func checkDueDate(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	due := inv.DueDate
	// the window is defined relative to the invoice date; without one there
	// is nothing to compare against
	if due.IsZero() || inv.IssueDate.IsZero() {
		return nil
	}
	if !due.After(inv.IssueDate) {
		return warn(entity.FieldDueDate, "due date is not after the invoice date")
	}
	if due.Sub(inv.IssueDate) > maxDueDateSpan {
		return warn(entity.FieldDueDate, "due date is more than 90 days after the invoice date")
	}
	return nil
}

func checkTotalPositive(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	if inv.Totals.Total < 0.01 {
		return fail(entity.FieldTotal, fmt.Sprintf("total %.2f must be at least 0.01", inv.Totals.Total))
	}
	return nil
}

func checkVendorComplete(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
	var missing []string
	if inv.Vendor.Name == "" {
		missing = append(missing, "name")
	}
	if inv.Vendor.Address == "" {
		missing = append(missing, "address")
	}
	if inv.Vendor.TaxID == "" {
		missing = append(missing, "tax id")
	}
	if len(missing) == 0 {
		return nil
	}
	return warn(entity.FieldVendorName,
		fmt.Sprintf("vendor identity is incomplete: missing %s", strings.Join(missing, ", ")))
}

func checkDuplicate(inv *entity.ExtractedInvoice, vctx Context) []entity.ValidationDiagnostic {
	if inv.InvoiceNumber == "" {
		return nil
	}
	for _, ex := range vctx.ExistingInvoices {
		if strings.EqualFold(ex.InvoiceNumber, inv.InvoiceNumber) {
			d := warn(entity.FieldInvoiceNumber,
				fmt.Sprintf("invoice number %q already exists on record %s", inv.InvoiceNumber, ex.ID))
			d[0].Suggestion = ex.ID
			return d
		}
	}
	return nil
}

func highAmountRule(threshold float64) func(*entity.ExtractedInvoice, Context) []entity.ValidationDiagnostic {
	return func(inv *entity.ExtractedInvoice, _ Context) []entity.ValidationDiagnostic {
		if inv.Totals.Total >= threshold {
			return []entity.ValidationDiagnostic{{
				Field:    entity.FieldTotal,
				Message:  fmt.Sprintf("total %.2f exceeds the plausibility threshold %.2f", inv.Totals.Total, threshold),
				Severity: entity.SeverityInfo,
			}}
		}
		return nil
	}
}
