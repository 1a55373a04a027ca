package extract

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/belegwerk/docpipe/internal/common"
)

func testNow() time.Time {
	return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(nil, Config{Now: testNow})
}

func TestParseDateToken(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"03.04.24", "2024-04-03", false},
		{"01.03.2024", "2024-03-01", false},
		{"2024-03-01", "2024-03-01", false},
		{"15/06/2023", "2023-06-15", false},
		{"03.04.99", "1999-04-03", false}, // >50y in the future -> previous century
		{"31.02.2024", "", true},
		{"kein datum", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDateToken(tt.in, testNow())
			if tt.wantErr {
				if ok {
					t.Fatalf("ParseDateToken(%q) = %v, want failure", tt.in, got)
				}
				return
			}
			if !ok {
				t.Fatalf("ParseDateToken(%q) failed", tt.in)
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseDateToken(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	_, err := newTestExtractor(t).Extract("   \n  ")
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestExtract_EndToEnd(t *testing.T) {
	text := `Acme GmbH
Hauptstraße 12
10115 Berlin

Rechnung RE-2024-001
Datum: 01.03.2024
USt-IdNr: DE123456789

Gesamtbetrag: 119,00 €`

	inv, err := newTestExtractor(t).Extract(text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if inv.InvoiceNumber != "RE-2024-001" {
		t.Errorf("InvoiceNumber = %q, want RE-2024-001", inv.InvoiceNumber)
	}
	if got := inv.IssueDate.Format("2006-01-02"); got != "2024-03-01" {
		t.Errorf("IssueDate = %s, want 2024-03-01", got)
	}
	if inv.Vendor.Name == "" || !containsAcme(inv.Vendor.Name) {
		t.Errorf("Vendor.Name = %q, want to contain Acme GmbH", inv.Vendor.Name)
	}
	if inv.Vendor.TaxID != "DE123456789" {
		t.Errorf("Vendor.TaxID = %q, want DE123456789", inv.Vendor.TaxID)
	}
	if inv.Totals.Total != 119.00 {
		t.Errorf("Total = %v, want 119.00", inv.Totals.Total)
	}
	if math.Abs(inv.Totals.Subtotal-100.00) > 0.01 {
		t.Errorf("Subtotal = %v, want ~100.00", inv.Totals.Subtotal)
	}
	if math.Abs(inv.Totals.TaxAmount-19.00) > 0.01 {
		t.Errorf("TaxAmount = %v, want ~19.00", inv.Totals.TaxAmount)
	}
	if inv.Vendor.Address == "" {
		t.Errorf("Vendor.Address empty, want street and city")
	}
}

func containsAcme(s string) bool {
	return len(s) >= len("Acme GmbH") && (s == "Acme GmbH" || stringsContains(s, "Acme GmbH"))
}

func stringsContains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestReconcileTotals(t *testing.T) {
	e := newTestExtractor(t)
	tests := []struct {
		name                string
		subtotal, tax, tot  float64
		wantS, wantT, wantG float64
	}{
		{"derive subtotal and tax from gross", 0, 0, 119, 100, 19, 119},
		{"derive tax from gross and net", 100, 0, 119, 100, 19, 119},
		{"derive gross from net and tax", 100, 19, 0, 100, 19, 119},
		{"all present kept", 100, 19, 119, 100, 19, 119},
		{"negative clamped", -5, -1, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.reconcileTotals(tt.subtotal, tt.tax, tt.tot)
			if math.Abs(got.Subtotal-tt.wantS) > 0.01 ||
				math.Abs(got.TaxAmount-tt.wantT) > 0.01 ||
				math.Abs(got.Total-tt.wantG) > 0.01 {
				t.Errorf("reconcileTotals = %+v, want S=%v T=%v G=%v", got, tt.wantS, tt.wantT, tt.wantG)
			}
		})
	}
}

func TestExtract_LineItems(t *testing.T) {
	text := `Rechnung Nr. 2024-100
Pos Beschreibung Menge Einzelpreis Gesamt
2 Beratungsstunden 100,00 200,00
1 Fahrtkosten 50,00 50,00
Zwischensumme: 250,00
MwSt 19%: 47,50
Gesamtbetrag: 297,50`

	inv, err := newTestExtractor(t).Extract(text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(inv.Items))
	}
	first := inv.Items[0]
	if first.Quantity != 2 {
		t.Errorf("Quantity = %v, want 2", first.Quantity)
	}
	if first.UnitPrice != 100.00 || first.Total != 200.00 {
		t.Errorf("UnitPrice/Total = %v/%v, want 100/200", first.UnitPrice, first.Total)
	}
	if first.Description != "Beratungsstunden" {
		t.Errorf("Description = %q, want Beratungsstunden", first.Description)
	}
	if inv.Totals.Subtotal != 250.00 || inv.Totals.TaxAmount != 47.50 || inv.Totals.Total != 297.50 {
		t.Errorf("Totals = %+v", inv.Totals)
	}
}

func TestExtract_LineItemQuantityColumn(t *testing.T) {
	// position number and quantity are separate columns; the count before
	// the unit price wins over the leading integer
	text := `Pos Beschreibung Menge Einzelpreis Gesamt
1 Beratungsleistung 2 100,00 200,00
2 Fahrtkosten 50,00 50,00`

	inv, err := newTestExtractor(t).Extract(text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(inv.Items))
	}
	if inv.Items[0].Quantity != 2 {
		t.Errorf("Quantity = %v, want 2 from the quantity column", inv.Items[0].Quantity)
	}
	if inv.Items[1].Quantity != 2 {
		t.Errorf("Quantity = %v, want 2 from the leading integer", inv.Items[1].Quantity)
	}
}

func TestConfidence_Weights(t *testing.T) {
	e := newTestExtractor(t)

	inv, err := e.Extract("nur unstrukturierter Text ohne Felder")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if inv.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 for fieldless text", inv.Confidence)
	}

	full := `Acme GmbH
Rechnungsnummer: RE-2024-001
Datum: 01.03.2024
USt-IdNr: DE123456789
2 Beratungsstunden 100,00 200,00
Gesamtbetrag: 238,00`
	inv, err = e.Extract(full)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if math.Abs(inv.Confidence-0.95) > 1e-9 {
		t.Errorf("confidence = %v, want 0.95 with every field present", inv.Confidence)
	}
}
