// Package extract locates invoice metadata, parties, line items and totals
// inside noisy recognized text using layered pattern matching. Absence of a
// field is never an error; it only lowers the extraction confidence.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/belegwerk/docpipe/internal/common"
	"github.com/belegwerk/docpipe/internal/entity"
)

// Config holds extraction tunables.
type Config struct {
	DefaultVATRate     float64          // used when deriving missing totals, default 0.19
	DefaultLineTaxRate float64          // percent applied to items without a rate, default 19
	Now                func() time.Time // injected for deterministic date expansion
}

// Extractor turns one recognized-text document into an ExtractedInvoice.
type Extractor struct {
	logger *slog.Logger
	cfg    Config
}

func NewExtractor(logger *slog.Logger, cfg Config) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultVATRate <= 0 {
		cfg.DefaultVATRate = 0.19
	}
	if cfg.DefaultLineTaxRate <= 0 {
		cfg.DefaultLineTaxRate = 19
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Extractor{logger: logger, cfg: cfg}
}

// fieldPattern is one candidate rule in a layered pattern sequence. Patterns
// are tried in order and the first one whose capture passes the plausibility
// check wins; there is no scoring competition between patterns.
type fieldPattern struct {
	re        *regexp.Regexp
	plausible func(string) bool
	cleanup   func(string) string
}

func (e *Extractor) firstPlausible(patterns []fieldPattern, text string) string {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := strings.TrimSpace(m[len(m)-1])
		if p.cleanup != nil {
			v = p.cleanup(v)
		}
		if p.plausible != nil && !p.plausible(v) {
			continue
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// amountToken requires at least one separator so bare digit runs (tax ids,
// phone numbers) never read as money.
const amountToken = `(?:\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{2})?|\d+[.,]\d{2})`

var (
	invoiceNumberPatterns = []fieldPattern{
		{re: regexp.MustCompile(`(?i)\bRechnungs?[-\s]?(?:nr|nummer)\.?\s*:?\s*([A-Za-z0-9][A-Za-z0-9\-/_.]{2,})`), plausible: plausibleInvoiceNumber},
		{re: regexp.MustCompile(`(?i)\bRechnung\s+(?:Nr\.?\s*)?([A-Za-z]{1,5}[-/]?\d[A-Za-z0-9\-/]*)`), plausible: plausibleInvoiceNumber},
		{re: regexp.MustCompile(`(?i)\binvoice\s*(?:no|number|#)?\.?\s*:?\s*([A-Za-z0-9][A-Za-z0-9\-/]{2,})`), plausible: plausibleInvoiceNumber},
		{re: regexp.MustCompile(`\b((?:RE|RG|INV)[-/]\d[A-Za-z0-9\-/]*)\b`), plausible: plausibleInvoiceNumber},
	}

	dateToken         = `(\d{1,2}[./-]\d{1,2}[./-](?:\d{4}|\d{2})|\d{4}-\d{1,2}-\d{1,2})`
	issueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:rechnungs)?datum\s*:?\s*` + dateToken),
		regexp.MustCompile(`(?i)\b(?:invoice\s+)?date\s*:?\s*` + dateToken),
		regexp.MustCompile(dateToken),
	}
	dueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:fällig(?:keitsdatum|keit)?|zahlbar\s+bis|zahlungsziel|due\s*date)\s*:?\s*` + dateToken),
	}

	taxIDPatterns = []fieldPattern{
		{re: regexp.MustCompile(`(?i)\bUSt[-.\s]?Id(?:Nr)?\.?\s*[-.]?\s*(?:Nr\.?)?\s*:?\s*([A-Za-z]{2}\s?\d{9})`), plausible: plausibleTaxID, cleanup: cleanTaxID},
		{re: regexp.MustCompile(`(?i)\b(?:vat\s*(?:id|no|number)?|umsatzsteuer[-\s]?id\w*)\s*\.?\s*:?\s*([A-Za-z]{2}\s?\d{9})`), plausible: plausibleTaxID, cleanup: cleanTaxID},
		{re: regexp.MustCompile(`\b([A-Z]{2}\d{9})\b`), plausible: plausibleTaxID, cleanup: cleanTaxID},
		// labeled but malformed ids are still carried along so validation
		// can diagnose them instead of reporting the field as absent
		{re: regexp.MustCompile(`(?i)\bUSt[-.\s]?Id(?:Nr)?\.?\s*[-.]?\s*(?:Nr\.?)?\s*:?\s*(\d{9})\b`)},
	}

	// legal-form lines are the strongest vendor-name signal in German
	// invoices, so they are tried before generic sender labels
	vendorNamePatterns = []fieldPattern{
		{re: regexp.MustCompile(`(?m)^[ ]*([^\n]{0,60}\b(?:GmbH(?:\s*&\s*Co\.?\s*KG)?|KGaA|AG|KG|UG|OHG|GbR|mbH|e\.\s?V\.|e\.\s?K\.)\b[^\n]{0,40})$`), plausible: plausibleName},
		{re: regexp.MustCompile(`(?im)^(?:von|absender|lieferant|aussteller)\s*:?\s*(.+)$`), plausible: plausibleName},
	}

	customerNamePatterns = []fieldPattern{
		{re: regexp.MustCompile(`(?im)^(?:kunde|kundin|rechnungsempfänger|rechnung\s+an|bill(?:ed)?\s+to|empfänger)\s*:?\s*(.*)$`), plausible: plausibleName},
	}

	subtotalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:zwischensumme|nettobetrag|summe\s+netto|netto|subtotal|net\s+amount)\b[^\n%]*?(` + amountToken + `)`),
	}
	taxAmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:mehrwertsteuer|mwst\.?|umsatzsteuer|vat|tax)\s*(?:\(?\d{1,2}(?:[.,]\d{1,2})?\s*%\)?)?\s*:?\s*(?:€|EUR)?\s*(` + amountToken + `)`),
	}
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:gesamtbetrag|gesamtsumme|rechnungsbetrag|endbetrag|bruttobetrag|zu\s+zahlen(?:der\s+betrag)?|total(?:\s+amount)?|amount\s+due|gesamt|summe)\b[^\n%]*?(` + amountToken + `)`),
	}

	// street keywords are compound suffixes in German (Hauptstraße), so no
	// leading word boundary
	reStreetLine = regexp.MustCompile(`(?im)^[^\n]*(?:straße|strasse|str\.|weg|platz|allee|gasse|ring|damm)\b[^\n]*\d+[^\n]*$`)
	rePostalLine = regexp.MustCompile(`(?m)^[^\n]*\b\d{5}\s+\p{L}[^\n]*$`)

	reLineAmount  = regexp.MustCompile(amountToken)
	reHeaderWords = regexp.MustCompile(`(?i)\b(?:pos\.?|position|artikel|beschreibung|bezeichnung|menge|anzahl|einzelpreis|preis|mwst|steuer|netto|brutto|gesamt|betrag|summe|zwischensumme|description|qty|quantity|price|total|subtotal)\b`)
	reLeadingQty  = regexp.MustCompile(`^\s*(\d{1,4})\s+\D`)
	reQtyColumn   = regexp.MustCompile(`(?:^|\s)(\d{1,3})\s+` + amountToken)
	rePercent     = regexp.MustCompile(`(\d{1,2})(?:[.,]\d{1,2})?\s*%`)
)

func plausibleInvoiceNumber(s string) bool {
	return len(s) >= 4 && strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

var reTaxIDStrict = regexp.MustCompile(`^[A-Z]{2}\d{9}$`)

func plausibleTaxID(s string) bool { return reTaxIDStrict.MatchString(s) }

func cleanTaxID(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}

func plausibleName(s string) bool { return len(strings.TrimSpace(s)) >= 3 }

// Extract parses one recognized-text document. It fails only on entirely
// empty input; any missing field yields a zero value and lower confidence.
func (e *Extractor) Extract(rawText string) (*entity.ExtractedInvoice, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, common.NewAppError("EXTRACT_EMPTY", "document has no recognized text", common.ErrInvalidInput)
	}
	text := NormalizeText(rawText)
	now := e.cfg.Now()

	inv := &entity.ExtractedInvoice{RawFields: map[string]string{}}

	inv.InvoiceNumber = e.firstPlausible(invoiceNumberPatterns, text)
	if inv.InvoiceNumber != "" {
		inv.RawFields[entity.FieldInvoiceNumber] = inv.InvoiceNumber
	}

	if raw, t, ok := firstDate(issueDatePatterns, text, now); ok {
		inv.IssueDate = t
		inv.RawFields[entity.FieldIssueDate] = raw
	}
	if raw, t, ok := firstDate(dueDatePatterns, text, now); ok {
		inv.DueDate = t
		inv.RawFields[entity.FieldDueDate] = raw
	}

	inv.Vendor.TaxID = e.firstPlausible(taxIDPatterns, text)
	if inv.Vendor.TaxID != "" {
		inv.RawFields[entity.FieldVendorTaxID] = inv.Vendor.TaxID
	}
	inv.Vendor.Name = e.firstPlausible(vendorNamePatterns, text)
	if inv.Vendor.Name != "" {
		inv.RawFields[entity.FieldVendorName] = inv.Vendor.Name
	}
	inv.Vendor.Address = extractAddress(text)
	if inv.Vendor.Address != "" {
		inv.RawFields[entity.FieldVendorAddress] = inv.Vendor.Address
	}
	inv.Customer.Name = e.firstPlausible(customerNamePatterns, text)

	inv.Items = e.extractLineItems(text)

	inv.Totals = e.reconcileTotals(
		firstAmount(subtotalPatterns, text),
		firstAmount(taxAmountPatterns, text),
		firstAmount(totalPatterns, text),
	)

	inv.Confidence = confidence(inv)

	e.logger.Debug("extract.done",
		"invoice_number", inv.InvoiceNumber,
		"vendor", inv.Vendor.Name,
		"total", inv.Totals.Total,
		"items", len(inv.Items),
		"confidence", inv.Confidence,
	)
	return inv, nil
}

func firstDate(patterns []*regexp.Regexp, text string, now time.Time) (string, time.Time, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := m[len(m)-1]
		if t, ok := ParseDateToken(raw, now); ok {
			return raw, t, true
		}
	}
	return "", time.Time{}, false
}

func firstAmount(patterns []*regexp.Regexp, text string) float64 {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := ParseAmount(m[len(m)-1]); ok {
			return v
		}
	}
	return 0
}

func extractAddress(text string) string {
	var parts []string
	street := strings.TrimSpace(reStreetLine.FindString(text))
	if street != "" {
		parts = append(parts, street)
	}
	// street and postal code may share one line
	if m := strings.TrimSpace(rePostalLine.FindString(text)); m != "" && m != street {
		parts = append(parts, m)
	}
	return strings.Join(parts, ", ")
}

// extractLineItems scans for lines carrying at least two money amounts.
// Header lines (position/description/quantity/price/total keywords) are
// skipped; quantity defaults to 1 and tax rate to the configured default.
func (e *Extractor) extractLineItems(text string) []entity.LineItem {
	var items []entity.LineItem
	for i, line := range strings.Split(text, "\n") {
		amounts := reLineAmount.FindAllString(line, -1)
		if len(amounts) < 2 {
			continue
		}
		if reHeaderWords.MatchString(line) {
			continue
		}
		unit, okU := ParseAmount(amounts[len(amounts)-2])
		total, okT := ParseAmount(amounts[len(amounts)-1])
		if !okU || !okT || total <= 0 {
			continue
		}
		// a count directly before the unit price is the quantity column;
		// otherwise the leading integer doubles as quantity and position
		qty := 1.0
		if m := reQtyColumn.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				qty = float64(n)
			}
		} else if m := reLeadingQty.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				qty = float64(n)
			}
		}
		rate := e.cfg.DefaultLineTaxRate
		if m := rePercent.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				rate = float64(n)
			}
		}
		desc := stripItemTokens(line)
		if desc == "" {
			desc = fmt.Sprintf("Position %d", i+1)
		}
		items = append(items, entity.LineItem{
			Description: desc,
			Quantity:    qty,
			UnitPrice:   unit,
			TaxRate:     rate,
			Total:       total,
		})
	}
	return items
}

var (
	reItemNoise     = regexp.MustCompile(amountToken + `|[€$]|\b(?:EUR|eur)\b|\d{1,2}(?:[.,]\d{1,2})?\s*%`)
	reLeadingDigits = regexp.MustCompile(`^\d{1,4}\s+`)
)

func stripItemTokens(line string) string {
	s := reItemNoise.ReplaceAllString(line, " ")
	s = reLeadingDigits.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -:;|x*")
}

// reconcileTotals applies the deterministic back-filling rules. Let S, T, G
// be subtotal, tax and grand total:
//
//	G>0, S<=0, T<=0  ->  S = G/(1+rate), T = G-S
//	G>0, S>0,  T<=0  ->  T = G-S
//	S>0, T>0,  G<=0  ->  G = S+T
//
// anything else keeps the extracted values, clamped to >= 0. All derived
// values round to 2 decimals.
func (e *Extractor) reconcileTotals(subtotal, tax, total float64) entity.Totals {
	rate := e.cfg.DefaultVATRate
	switch {
	case total > 0 && subtotal <= 0 && tax <= 0:
		subtotal = Round2(total / (1 + rate))
		tax = Round2(total - subtotal)
	case total > 0 && subtotal > 0 && tax <= 0:
		tax = Round2(total - subtotal)
	case subtotal > 0 && tax > 0 && total <= 0:
		total = Round2(subtotal + tax)
	}
	return entity.Totals{
		Subtotal:  clampMoney(subtotal),
		TaxAmount: clampMoney(tax),
		Total:     clampMoney(total),
	}
}

func clampMoney(v float64) float64 {
	if v < 0 {
		return 0
	}
	return Round2(v)
}

// confidence is a fixed weighted sum over field presence, normalized to
// [0, 0.95]; extraction never claims full certainty.
func confidence(inv *entity.ExtractedInvoice) float64 {
	score := 0
	if inv.InvoiceNumber != "" {
		score += 20
	}
	if !inv.IssueDate.IsZero() {
		score += 15
	}
	if inv.Vendor.Name != "" {
		score += 15
	}
	if inv.Totals.Total > 0 {
		score += 25
	}
	if len(inv.Items) > 0 {
		score += 15
	}
	if inv.Vendor.TaxID != "" {
		score += 10
	}
	return float64(score) / 100 * 0.95
}
