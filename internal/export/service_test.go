package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/pipeline"
)

func TestExportResultsXLSX(t *testing.T) {
	res := &pipeline.Result{
		Invoice: &entity.ExtractedInvoice{
			InvoiceNumber: "RE-2024-001",
			IssueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Vendor:        entity.VendorIdentity{Name: "Acme GmbH", TaxID: "DE123456789"},
			Totals:        entity.Totals{Subtotal: 200, TaxAmount: 38, Total: 238},
			Confidence:    0.95,
		},
		BestMatch: &entity.VendorCandidate{
			Party:      entity.Party{ID: "p1", CompanyName: "Acme GmbH"},
			Confidence: 1.0,
			Kind:       entity.MatchExact,
		},
		Diagnostics: []entity.ValidationDiagnostic{
			{Field: entity.FieldVendorName, Message: "customer name missing", Severity: entity.SeverityWarning},
		},
	}

	b, err := NewService(nil).ExportResultsXLSX([]*pipeline.Result{res})
	if err != nil {
		t.Fatalf("ExportResultsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Invoices", "A2"); got != "RE-2024-001" {
		t.Errorf("A2 = %q, want RE-2024-001", got)
	}
	if got, _ := f.GetCellValue("Invoices", "F2"); got != "Acme GmbH" {
		t.Errorf("F2 = %q, want matched party name", got)
	}
	if got, _ := f.GetCellValue("Diagnostics", "D2"); got != "customer name missing" {
		t.Errorf("Diagnostics D2 = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 3); got != "he…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("hi", 10); got != "hi" {
		t.Errorf("truncate = %q", got)
	}
}
