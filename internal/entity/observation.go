package entity

import (
	"time"

	"github.com/google/uuid"
)

// FieldType identifies which invoice field a learning observation or
// prediction concerns.
type FieldType string

const (
	FieldTypeInvoiceNumber FieldType = "invoice_number"
	FieldTypeInvoiceDate   FieldType = "invoice_date"
	FieldTypeVendorName    FieldType = "vendor_name"
	FieldTypeVendorTaxID   FieldType = "vendor_tax_id"
	FieldTypeAmount        FieldType = "amount"
)

// LearningObservation is one (raw text -> corrected value) pair recorded
// from human review. Observations are append-only; derived models may be
// rebuilt from them at any time but history is never rewritten.
type LearningObservation struct {
	ID             uuid.UUID `json:"id"`
	FieldType      FieldType `json:"field_type"`
	RawText        string    `json:"raw_text"`
	CorrectedValue string    `json:"corrected_value"`
	UserID         string    `json:"user_id"`
	Confidence     float64   `json:"confidence"`
	RecordedAt     time.Time `json:"recorded_at"`
}
