// Package export renders processed documents into XLSX workbooks for review
// and bookkeeping handoff.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/pipeline"
)

// Service produces XLSX bytes from pipeline results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportResultsXLSX returns a workbook with one Invoices sheet (one row per
// document) and one Diagnostics sheet (one row per finding).
func (s *Service) ExportResultsXLSX(results []*pipeline.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const invoiceSheet = "Invoices"
	const diagSheet = "Diagnostics"
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(diagSheet); err != nil {
		return nil, err
	}
	if idx, _ := f.GetSheetIndex(invoiceSheet); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	invoiceHeaders := []string{
		"Invoice Number",
		"Issue Date",
		"Due Date",
		"Vendor",
		"Vendor Tax ID",
		"Matched Party",
		"Match Confidence",
		"Subtotal",
		"Tax",
		"Total",
		"Extraction Confidence",
		"Needs Review",
	}
	for i, h := range invoiceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(invoiceSheet, cell, h)
	}
	diagHeaders := []string{"Invoice Number", "Field", "Severity", "Message", "Suggestion"}
	for i, h := range diagHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(diagSheet, cell, h)
	}

	var diagnostics int
	diagRow := 2
	for i, res := range results {
		inv := res.Invoice
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(invoiceSheet, cell, v)
		}

		write(1, inv.InvoiceNumber)
		write(2, formatDate(inv.IssueDate))
		write(3, formatDate(inv.DueDate))
		write(4, inv.Vendor.Name)
		write(5, inv.Vendor.TaxID)
		if res.BestMatch != nil {
			write(6, res.BestMatch.Party.CompanyName)
			write(7, res.BestMatch.Confidence)
		}
		write(8, inv.Totals.Subtotal)
		write(9, inv.Totals.TaxAmount)
		write(10, inv.Totals.Total)
		write(11, inv.Confidence)
		write(12, res.NeedsReview)

		for _, d := range res.Diagnostics {
			writeDiag := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, diagRow)
				_ = f.SetCellValue(diagSheet, cell, v)
			}
			writeDiag(1, inv.InvoiceNumber)
			writeDiag(2, d.Field)
			writeDiag(3, string(d.Severity))
			writeDiag(4, truncate(d.Message, 140))
			writeDiag(5, firstSuggestion(d))
			diagRow++
			diagnostics++
		}
	}

	_ = f.SetColWidth(invoiceSheet, "A", "A", 18)
	_ = f.SetColWidth(invoiceSheet, "B", "C", 12)
	_ = f.SetColWidth(invoiceSheet, "D", "D", 30)
	_ = f.SetColWidth(invoiceSheet, "E", "F", 22)
	_ = f.SetColWidth(invoiceSheet, "G", "L", 12)
	_ = f.SetColWidth(diagSheet, "A", "B", 18)
	_ = f.SetColWidth(diagSheet, "D", "E", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(results),
		"diagnostics", diagnostics,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func firstSuggestion(d entity.ValidationDiagnostic) string {
	if d.Enrichment != nil && len(d.Enrichment.Suggestions) > 0 {
		s := d.Enrichment.Suggestions[0]
		if s.SuggestedValue != "" {
			return fmt.Sprintf("%s: %s", s.Description, s.SuggestedValue)
		}
		return s.Description
	}
	return d.Suggestion
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
