// Package validate checks an extracted invoice for legal, financial and
// business plausibility. Rules are independent pure functions evaluated in
// registration order; a failing or even panicking rule never stops the rest
// of the batch.
package validate

import (
	"log/slog"
	"time"

	"github.com/belegwerk/docpipe/internal/entity"
)

// ExistingInvoice is the minimal view of an already-booked invoice the
// duplicate check needs.
type ExistingInvoice struct {
	ID            string
	InvoiceNumber string
}

// Context carries the data rules evaluate a record against.
type Context struct {
	ExistingInvoices  []ExistingInvoice
	ExistingCustomers []string
	Now               time.Time
}

// Rule is one registered validation rule. Check returns the diagnostics for
// its concern, or nil when the record passes.
type Rule struct {
	Name  string
	Check func(inv *entity.ExtractedInvoice, vctx Context) []entity.ValidationDiagnostic
}

// Config holds validation tunables.
type Config struct {
	HighAmountFlag float64 // totals at or above this get an info diagnostic
	Enrich         bool    // attach causes/suggestions to diagnostics
}

// Engine runs the registered rule set.
type Engine struct {
	logger *slog.Logger
	cfg    Config
	rules  []Rule
}

func NewEngine(logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HighAmountFlag <= 0 {
		cfg.HighAmountFlag = 10000
	}
	e := &Engine{logger: logger, cfg: cfg}
	e.rules = defaultRules(cfg)
	return e
}

// Register appends an additional rule. Order is preserved: diagnostics come
// back in registration order on every run.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Validate runs every rule and collects all failures; it never stops early.
// A panicking rule is logged and skipped.
func (e *Engine) Validate(inv *entity.ExtractedInvoice, vctx Context) []entity.ValidationDiagnostic {
	if vctx.Now.IsZero() {
		vctx.Now = time.Now().UTC()
	}
	diags := make([]entity.ValidationDiagnostic, 0, 4)
	for _, r := range e.rules {
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("validate.rule_panic", "rule", r.Name, "panic", p)
				}
			}()
			diags = append(diags, r.Check(inv, vctx)...)
		}()
	}
	if e.cfg.Enrich {
		for i := range diags {
			enrich(&diags[i], inv)
		}
	}
	return diags
}
