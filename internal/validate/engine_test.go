package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/belegwerk/docpipe/internal/entity"
)

func testCtx() Context {
	return Context{Now: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
}

func validInvoice() *entity.ExtractedInvoice {
	return &entity.ExtractedInvoice{
		InvoiceNumber: "RE-2024-001",
		IssueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Vendor: entity.VendorIdentity{
			Name:    "Acme GmbH",
			Address: "Hauptstraße 12, 10115 Berlin",
			TaxID:   "DE123456789",
		},
		Totals:    entity.Totals{Subtotal: 100, TaxAmount: 19, Total: 119},
		RawFields: map[string]string{},
	}
}

func newTestEngine() *Engine {
	return NewEngine(nil, Config{Enrich: true})
}

func diagnosticsFor(diags []entity.ValidationDiagnostic, field string) []entity.ValidationDiagnostic {
	var out []entity.ValidationDiagnostic
	for _, d := range diags {
		if d.Field == field {
			out = append(out, d)
		}
	}
	return out
}

func TestValidate_CleanInvoice(t *testing.T) {
	diags := newTestEngine().Validate(validInvoice(), testCtx())
	for _, d := range diags {
		if d.Severity == entity.SeverityError {
			t.Errorf("unexpected error diagnostic: %s: %s", d.Field, d.Message)
		}
	}
	if got := diagnosticsFor(diags, entity.FieldVendorTaxID); len(got) != 0 {
		t.Errorf("tax id DE123456789 produced diagnostics: %v", got)
	}
}

func TestValidate_TaxIDMissingPrefix(t *testing.T) {
	inv := validInvoice()
	inv.Vendor.TaxID = "123456789"

	diags := newTestEngine().Validate(inv, testCtx())
	got := diagnosticsFor(diags, entity.FieldVendorTaxID)
	if len(got) == 0 {
		t.Fatal("expected a tax id diagnostic")
	}
	d := got[0]
	if d.Severity != entity.SeverityError {
		t.Errorf("severity = %s, want error", d.Severity)
	}
	if d.Enrichment == nil || !d.Enrichment.AutoFixable {
		t.Fatal("expected auto-fixable enrichment")
	}
	if v := d.Enrichment.Suggestions[0].SuggestedValue; v != "DE123456789" {
		t.Errorf("suggested value = %q, want DE123456789", v)
	}

	// applying the fix is idempotent and clears the diagnostic
	if !ApplyAutoFix(inv, d) {
		t.Fatal("ApplyAutoFix reported no change")
	}
	if inv.Vendor.TaxID != "DE123456789" {
		t.Fatalf("TaxID after fix = %q", inv.Vendor.TaxID)
	}
	if ApplyAutoFix(inv, d) {
		t.Error("second ApplyAutoFix changed the value again")
	}
	rediags := newTestEngine().Validate(inv, testCtx())
	if got := diagnosticsFor(rediags, entity.FieldVendorTaxID); len(got) != 0 {
		t.Errorf("diagnostic re-emitted after fix: %v", got)
	}
}

func TestValidate_VATArithmetic(t *testing.T) {
	tests := []struct {
		name        string
		s, tax, tot float64
		wantError   bool
	}{
		{"19 percent", 100, 19, 119, false},
		{"7 percent", 100, 7, 107, false},
		{"gross consistent", 100, 12.5, 112.5, false},
		{"inconsistent", 100, 12.5, 200, true},
		{"within tolerance", 100, 19.01, 119.01, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			inv.Totals = entity.Totals{Subtotal: tt.s, TaxAmount: tt.tax, Total: tt.tot}
			diags := newTestEngine().Validate(inv, testCtx())
			got := diagnosticsFor(diags, entity.FieldTaxAmount)
			if tt.wantError && len(got) == 0 {
				t.Fatal("expected VAT arithmetic error")
			}
			if !tt.wantError && len(got) != 0 {
				t.Fatalf("unexpected diagnostics: %v", got)
			}
			if tt.wantError {
				if !strings.Contains(got[0].Message, "19.00") || !strings.Contains(got[0].Message, "7.00") {
					t.Errorf("message should surface both expected values: %s", got[0].Message)
				}
			}
		})
	}
}

func TestValidate_LineItemArithmetic(t *testing.T) {
	inv := validInvoice()
	inv.Items = []entity.LineItem{
		{Description: "Beratung", Quantity: 2, UnitPrice: 100, TaxRate: 19, Total: 200},
	}
	diags := newTestEngine().Validate(inv, testCtx())
	if got := diagnosticsFor(diags, entity.FieldLineItems); len(got) != 0 {
		t.Errorf("consistent line item flagged: %v", got)
	}

	inv.Items = append(inv.Items, entity.LineItem{
		Description: "Fahrtkosten", Quantity: 2, UnitPrice: 100, TaxRate: 19, Total: 999.99,
	})
	diags = newTestEngine().Validate(inv, testCtx())
	got := diagnosticsFor(diags, entity.FieldLineItems)
	if len(got) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(got))
	}
	if got[0].Severity != entity.SeverityWarning {
		t.Errorf("severity = %s, want warning", got[0].Severity)
	}
	if got[0].Suggestion != "200.00" {
		t.Errorf("suggestion = %q, want 200.00", got[0].Suggestion)
	}
	if !strings.Contains(got[0].Message, "line 2") {
		t.Errorf("message should name the offending line: %s", got[0].Message)
	}
}

func TestValidate_DateRules(t *testing.T) {
	inv := validInvoice()
	inv.IssueDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) // future
	inv.DueDate = time.Time{}
	diags := newTestEngine().Validate(inv, testCtx())
	if len(diagnosticsFor(diags, entity.FieldIssueDate)) == 0 {
		t.Error("future invoice date not flagged")
	}

	inv = validInvoice()
	inv.IssueDate = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC) // too old
	inv.DueDate = time.Time{}
	diags = newTestEngine().Validate(inv, testCtx())
	if len(diagnosticsFor(diags, entity.FieldIssueDate)) == 0 {
		t.Error("stale invoice date not flagged")
	}

	inv = validInvoice()
	inv.DueDate = inv.IssueDate // not strictly after
	diags = newTestEngine().Validate(inv, testCtx())
	if len(diagnosticsFor(diags, entity.FieldDueDate)) == 0 {
		t.Error("due date equal to invoice date not flagged")
	}

	inv = validInvoice()
	inv.DueDate = inv.IssueDate.AddDate(0, 0, 120) // beyond 90 days
	diags = newTestEngine().Validate(inv, testCtx())
	if len(diagnosticsFor(diags, entity.FieldDueDate)) == 0 {
		t.Error("distant due date not flagged")
	}

	inv = validInvoice()
	inv.IssueDate = time.Time{} // due date alone carries no window
	diags = newTestEngine().Validate(inv, testCtx())
	if got := diagnosticsFor(diags, entity.FieldDueDate); len(got) != 0 {
		t.Errorf("due date without an invoice date flagged: %v", got)
	}
}

func TestValidate_TwoDigitYearDateRequiresConfirmation(t *testing.T) {
	inv := validInvoice()
	inv.IssueDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) // future
	inv.DueDate = time.Time{}
	inv.RawFields[entity.FieldIssueDate] = "01.01.25"

	diags := newTestEngine().Validate(inv, testCtx())
	got := diagnosticsFor(diags, entity.FieldIssueDate)
	if len(got) == 0 {
		t.Fatal("expected an issue date diagnostic")
	}
	d := got[0]
	if d.Enrichment == nil {
		t.Fatal("expected two-digit-year enrichment")
	}
	if d.Enrichment.AutoFixable {
		t.Error("two-digit-year expansion must not be auto-fixable")
	}
	s := d.Enrichment.Suggestions[0]
	if !s.RequiresInput || s.SuggestedValue != "2025-01-01" {
		t.Errorf("suggestion = %+v, want confirmation of 2025-01-01", s)
	}
	if ApplyAutoFix(inv, d) {
		t.Error("ApplyAutoFix changed a date field")
	}
}

func TestValidate_DuplicateAndVendorCompleteness(t *testing.T) {
	inv := validInvoice()
	vctx := testCtx()
	vctx.ExistingInvoices = []ExistingInvoice{{ID: "inv-42", InvoiceNumber: "re-2024-001"}}
	diags := newTestEngine().Validate(inv, vctx)
	got := diagnosticsFor(diags, entity.FieldInvoiceNumber)
	if len(got) == 0 {
		t.Fatal("duplicate invoice number not flagged")
	}
	if got[0].Suggestion != "inv-42" {
		t.Errorf("duplicate diagnostic should carry conflicting id, got %q", got[0].Suggestion)
	}

	inv = validInvoice()
	inv.Vendor.Address = ""
	inv.Vendor.TaxID = ""
	diags = newTestEngine().Validate(inv, testCtx())
	found := false
	for _, d := range diagnosticsFor(diags, entity.FieldVendorName) {
		if strings.Contains(d.Message, "address") && strings.Contains(d.Message, "tax id") &&
			!strings.Contains(d.Message, "missing name") {
			found = true
		}
	}
	if !found {
		t.Error("vendor completeness warning should list exactly the missing fields")
	}
}

func TestValidate_TotalAndHighAmount(t *testing.T) {
	inv := validInvoice()
	inv.Totals = entity.Totals{}
	diags := newTestEngine().Validate(inv, testCtx())
	if len(diagnosticsFor(diags, entity.FieldTotal)) == 0 {
		t.Error("zero total not flagged as error")
	}

	inv = validInvoice()
	inv.Totals = entity.Totals{Subtotal: 20000, TaxAmount: 3800, Total: 23800}
	diags = newTestEngine().Validate(inv, testCtx())
	info := false
	for _, d := range diagnosticsFor(diags, entity.FieldTotal) {
		if d.Severity == entity.SeverityInfo {
			info = true
		}
	}
	if !info {
		t.Error("high amount not flagged as info")
	}
}

func TestValidate_PanickingRuleIsIsolated(t *testing.T) {
	e := newTestEngine()
	e.Register(Rule{Name: "explodes", Check: func(*entity.ExtractedInvoice, Context) []entity.ValidationDiagnostic {
		panic("boom")
	}})
	e.Register(Rule{Name: "after", Check: func(*entity.ExtractedInvoice, Context) []entity.ValidationDiagnostic {
		return []entity.ValidationDiagnostic{{Field: "after", Message: "ran", Severity: entity.SeverityInfo}}
	}})
	diags := e.Validate(validInvoice(), testCtx())
	if len(diagnosticsFor(diags, "after")) != 1 {
		t.Error("rule after a panicking rule did not run")
	}
}
