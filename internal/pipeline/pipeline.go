// Package pipeline wires extraction, validation, vendor matching and the
// adaptive correction engine into one document flow.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/belegwerk/docpipe/internal/entity"
	"github.com/belegwerk/docpipe/internal/extract"
	"github.com/belegwerk/docpipe/internal/learn"
	"github.com/belegwerk/docpipe/internal/match"
	"github.com/belegwerk/docpipe/internal/validate"
)

// Config holds thresholds and behavior flags for the document flow.
type Config struct {
	MinConfidence float64 // below this the invoice is flagged for review, default 0.60
	AutoFix       bool    // apply auto-fixable suggestions and re-validate
}

// Predictor is the slice of the correction engine the pipeline consumes.
type Predictor interface {
	Predict(fieldType entity.FieldType, rawText string) learn.Prediction
	RecordCorrection(ctx context.Context, fieldType entity.FieldType, rawText, correctedValue, userID string) error
}

// Result is the full outcome for one document.
type Result struct {
	Invoice     *entity.ExtractedInvoice
	Diagnostics []entity.ValidationDiagnostic
	Candidates  []entity.VendorCandidate
	BestMatch   *entity.VendorCandidate
	NewParty    *entity.NewPartySuggestion
	// Suggested carries learned predictions keyed by field type, for
	// reviewers to accept or reject.
	Suggested   map[entity.FieldType]learn.Prediction
	AppliedFix  []string // fields whose values were auto-fixed
	NeedsReview bool
}

type Pipeline struct {
	Logger    *slog.Logger
	Cfg       Config
	Extractor *extract.Extractor
	Validator *validate.Engine
	Matcher   *match.Engine
	Learner   Predictor
}

func NewPipeline(logger *slog.Logger, cfg Config, ex *extract.Extractor, va *validate.Engine, ma *match.Engine, le Predictor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.60
	}
	return &Pipeline{
		Logger:    logger,
		Cfg:       cfg,
		Extractor: ex,
		Validator: va,
		Matcher:   ma,
		Learner:   le,
	}
}

// Run processes one document's OCR text end to end: extract fields, validate
// against the rule set, reconcile the vendor against the directory and
// attach learned correction suggestions.
func (p *Pipeline) Run(ctx context.Context, text string, directory []entity.Party, vctx validate.Context) (*Result, error) {
	inv, err := p.Extractor.Extract(text)
	if err != nil {
		return nil, fmt.Errorf("extract fields: %w", err)
	}
	p.Logger.Info("pipeline.extracted",
		"invoice_number", inv.InvoiceNumber,
		"vendor", inv.Vendor.Name,
		"total", inv.Totals.Total,
		"confidence", inv.Confidence,
	)

	res := &Result{Invoice: inv}

	diags := p.Validator.Validate(inv, vctx)
	if p.Cfg.AutoFix {
		var fixed bool
		for _, d := range diags {
			if validate.ApplyAutoFix(inv, d) {
				res.AppliedFix = append(res.AppliedFix, d.Field)
				fixed = true
			}
		}
		if fixed {
			p.Logger.Info("pipeline.autofix", "fields", res.AppliedFix)
			diags = p.Validator.Validate(inv, vctx)
		}
	}
	res.Diagnostics = diags

	res.Candidates = p.Matcher.FindAllMatches(inv.Vendor, directory)
	res.BestMatch = p.Matcher.FindBestMatch(inv.Vendor, directory)
	res.NewParty = p.Matcher.SuggestNewParty(inv.Vendor, res.Candidates)

	if p.Learner != nil {
		res.Suggested = p.suggestions(inv)
	}

	res.NeedsReview = p.needsReview(inv, diags)
	p.Logger.Info("pipeline.done",
		"diagnostics", len(diags),
		"candidates", len(res.Candidates),
		"needs_review", res.NeedsReview,
	)
	return res, nil
}

// RecordCorrection feeds a human fix back into the correction engine, keyed
// by the raw text the extractor originally produced.
func (p *Pipeline) RecordCorrection(ctx context.Context, inv *entity.ExtractedInvoice, field, correctedValue, userID string) error {
	if p.Learner == nil {
		return nil
	}
	ft, ok := fieldTypeFor(field)
	if !ok {
		return fmt.Errorf("field %q has no learnable type", field)
	}
	raw := inv.RawFields[field]
	if raw == "" {
		raw = correctedValue
	}
	return p.Learner.RecordCorrection(ctx, ft, raw, correctedValue, userID)
}

// suggestions asks the correction engine about every learnable field that
// has raw text on record.
func (p *Pipeline) suggestions(inv *entity.ExtractedInvoice) map[entity.FieldType]learn.Prediction {
	out := map[entity.FieldType]learn.Prediction{}
	for _, field := range []string{
		entity.FieldInvoiceNumber,
		entity.FieldIssueDate,
		entity.FieldVendorName,
		entity.FieldVendorTaxID,
		entity.FieldTotal,
	} {
		raw := inv.RawFields[field]
		if raw == "" {
			continue
		}
		ft, ok := fieldTypeFor(field)
		if !ok {
			continue
		}
		if pred := p.Learner.Predict(ft, raw); pred.Confidence > 0 {
			out[ft] = pred
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (p *Pipeline) needsReview(inv *entity.ExtractedInvoice, diags []entity.ValidationDiagnostic) bool {
	if inv.Confidence < p.Cfg.MinConfidence {
		return true
	}
	if inv.Vendor.Name == "" || inv.InvoiceNumber == "" || inv.Totals.Total <= 0 {
		return true
	}
	for _, d := range diags {
		if d.Severity == entity.SeverityError {
			return true
		}
	}
	return false
}

func fieldTypeFor(field string) (entity.FieldType, bool) {
	switch field {
	case entity.FieldInvoiceNumber:
		return entity.FieldTypeInvoiceNumber, true
	case entity.FieldIssueDate, entity.FieldDueDate:
		return entity.FieldTypeInvoiceDate, true
	case entity.FieldVendorName:
		return entity.FieldTypeVendorName, true
	case entity.FieldVendorTaxID:
		return entity.FieldTypeVendorTaxID, true
	case entity.FieldSubtotal, entity.FieldTaxAmount, entity.FieldTotal:
		return entity.FieldTypeAmount, true
	default:
		return "", false
	}
}
