package entity

import (
	"time"
)

// VendorIdentity holds the issuing party as extracted from document text.
type VendorIdentity struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	TaxID   string `json:"tax_id"`
	Contact string `json:"contact,omitempty"`
}

// CustomerIdentity holds the billed party as extracted from document text.
type CustomerIdentity struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// LineItem is one billed position. Quantity*UnitPrice should approximate
// Total within rounding tolerance; this is flagged by validation, not
// enforced at construction.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	Total       float64 `json:"total"`
}

// Totals carries the monetary summary. Under valid state
// Total == Subtotal + TaxAmount within 0.02.
type Totals struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
}

// ExtractedInvoice is the structured result of running the field extractor
// over one recognized-text document. Absent fields are zero values, never
// errors; Confidence reflects how much was found.
type ExtractedInvoice struct {
	InvoiceNumber string           `json:"invoice_number"`
	IssueDate     time.Time        `json:"issue_date"`
	DueDate       time.Time        `json:"due_date"`
	Vendor        VendorIdentity   `json:"vendor"`
	Customer      CustomerIdentity `json:"customer"`
	Items         []LineItem       `json:"items"`
	Totals        Totals           `json:"totals"`
	Confidence    float64          `json:"confidence"`

	// RawFields keeps the text each field was captured from, keyed by field
	// reference. Diagnostic enrichment inspects these shapes.
	RawFields map[string]string `json:"raw_fields,omitempty"`
}

// Party is a vendor or customer entry in the external directory. Read-only
// to this core; used only as a match target.
type Party struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// Field references used by diagnostics and correction suggestions.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldIssueDate     = "issue_date"
	FieldDueDate       = "due_date"
	FieldVendorName    = "vendor.name"
	FieldVendorAddress = "vendor.address"
	FieldVendorTaxID   = "vendor.tax_id"
	FieldCustomerName  = "customer.name"
	FieldLineItems     = "items"
	FieldSubtotal      = "totals.subtotal"
	FieldTaxAmount     = "totals.tax_amount"
	FieldTotal         = "totals.total"
)
