// Package learn implements the adaptive correction engine: user corrections
// are recorded as observations and replayed through an ensemble of
// prediction strategies so recurring OCR mistakes get fixed automatically.
package learn

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/belegwerk/docpipe/internal/common"
	"github.com/belegwerk/docpipe/internal/entity"
)

// Config tunes the ensemble.
type Config struct {
	MinObservations  int     // below this Predict returns zero confidence, default 3
	RetrainEvery     int     // corrections between automatic retrains, default 5
	FrequencyWeight  float64 // default 0.4
	ClassifierWeight float64 // default 0.3
	NeighborWeight   float64 // default 0.3
}

func (c Config) withDefaults() Config {
	if c.MinObservations <= 0 {
		c.MinObservations = 3
	}
	if c.RetrainEvery <= 0 {
		c.RetrainEvery = 5
	}
	if c.FrequencyWeight <= 0 {
		c.FrequencyWeight = 0.4
	}
	if c.ClassifierWeight <= 0 {
		c.ClassifierWeight = 0.3
	}
	if c.NeighborWeight <= 0 {
		c.NeighborWeight = 0.3
	}
	return c
}

// Prediction is the engine's answer for a raw text query.
type Prediction struct {
	Value      string
	Confidence float64
	Source     string // name of the strategy that carried the vote
}

// fieldModels are the trained per-field-type derived structures.
type fieldModels struct {
	samples    []sample
	frequency  *frequencyModel
	classifier *classifierModel
}

// Engine records corrections and predicts corrected values. All methods are
// safe for concurrent use; writes are serialized.
type Engine struct {
	logger *slog.Logger
	cfg    Config
	store  ObservationStore

	mu       sync.RWMutex
	models   map[entity.FieldType]*fieldModels
	recorded int // corrections since the last retrain
}

// NewEngine builds an engine over the given store. A nil store falls back to
// an in-memory one.
func NewEngine(ctx context.Context, logger *slog.Logger, cfg Config, store ObservationStore) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	e := &Engine{
		logger: logger,
		cfg:    cfg.withDefaults(),
		store:  store,
		models: map[entity.FieldType]*fieldModels{},
	}
	if err := e.Retrain(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordCorrection stores one user correction and retrains once enough new
// corrections have accumulated.
func (e *Engine) RecordCorrection(ctx context.Context, fieldType entity.FieldType, rawText, correctedValue, userID string) error {
	if fieldType == "" || rawText == "" || correctedValue == "" {
		return common.NewAppError("LEARN_INVALID", "field type, raw text and corrected value are required", common.ErrInvalidInput)
	}
	obs := entity.LearningObservation{
		ID:             uuid.New(),
		FieldType:      fieldType,
		RawText:        rawText,
		CorrectedValue: correctedValue,
		UserID:         userID,
		Confidence:     1, // direct human corrections are fully trusted
		RecordedAt:     time.Now().UTC(),
	}
	if err := e.store.Append(ctx, obs); err != nil {
		return err
	}

	e.mu.Lock()
	e.recorded++
	due := e.recorded >= e.cfg.RetrainEvery
	e.mu.Unlock()

	e.logger.Debug("learn.correction_recorded", "field_type", fieldType, "retrain_due", due)
	if due {
		return e.Retrain(ctx)
	}
	return nil
}

// Retrain rebuilds every per-field-type model from the store.
func (e *Engine) Retrain(ctx context.Context) error {
	all, err := e.store.All(ctx)
	if err != nil {
		return err
	}
	grouped := map[entity.FieldType][]sample{}
	for _, o := range all {
		grouped[o.FieldType] = append(grouped[o.FieldType], sample{
			raw:   normalizeRaw(o.RawText),
			value: o.CorrectedValue,
			feats: featureVector(o.RawText),
		})
	}
	models := make(map[entity.FieldType]*fieldModels, len(grouped))
	for fieldType, samples := range grouped {
		models[fieldType] = &fieldModels{
			samples:    samples,
			frequency:  newFrequencyModel(samples),
			classifier: newClassifierModel(samples),
		}
	}

	e.mu.Lock()
	e.models = models
	e.recorded = 0
	e.mu.Unlock()

	e.logger.Info("learn.retrained", "observations", len(all), "field_types", len(models))
	return nil
}

// Predict proposes a corrected value for raw text seen under the given field
// type. Confidence is zero until the field type has MinObservations
// corrections on record.
func (e *Engine) Predict(fieldType entity.FieldType, rawText string) Prediction {
	e.mu.RLock()
	m := e.models[fieldType]
	e.mu.RUnlock()

	if m == nil || len(m.samples) < e.cfg.MinObservations {
		return Prediction{}
	}

	raw := normalizeRaw(rawText)
	feats := featureVector(rawText)
	results := []strategyResult{
		e.runStrategy(strategyFrequency, func() strategyResult { return m.frequency.predict(raw) }),
		e.runStrategy(strategyClassify, func() strategyResult { return m.classifier.predict(feats) }),
		e.runStrategy(strategyNeighbor, func() strategyResult { return nearestNeighbors(m.samples, feats) }),
	}
	weights := map[string]float64{
		strategyFrequency: e.cfg.FrequencyWeight,
		strategyClassify:  e.cfg.ClassifierWeight,
		strategyNeighbor:  e.cfg.NeighborWeight,
	}

	// weighted vote over strategy outputs; low-confidence votes abstain
	votes := map[string]float64{}
	source := map[string]string{}
	var total float64
	for _, r := range results {
		if r.prediction == "" || r.confidence <= 0.1 {
			continue
		}
		w := weights[r.kind]
		votes[r.prediction] += w
		total += w
		if _, ok := source[r.prediction]; !ok {
			source[r.prediction] = r.kind
		}
	}
	if total == 0 {
		return Prediction{}
	}
	var bestValue string
	var bestWeight float64
	for value, w := range votes {
		if w > bestWeight || (w == bestWeight && value < bestValue) {
			bestValue, bestWeight = value, w
		}
	}
	return Prediction{
		Value:      bestValue,
		Confidence: math.Min(bestWeight/total, 0.9),
		Source:     source[bestValue],
	}
}

// runStrategy shields the ensemble from a misbehaving strategy: a panic
// becomes a zero-confidence abstention.
func (e *Engine) runStrategy(kind string, fn func() strategyResult) (res strategyResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("learn.strategy_panic", "strategy", kind, "panic", r)
			res = strategyResult{kind: kind}
		}
	}()
	return fn()
}

// ObservationCount reports how many corrections are on record for a field
// type.
func (e *Engine) ObservationCount(fieldType entity.FieldType) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if m := e.models[fieldType]; m != nil {
		return len(m.samples)
	}
	return 0
}

// Clear drops all observations and trained models.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.models = map[entity.FieldType]*fieldModels{}
	e.recorded = 0
	e.mu.Unlock()
	e.logger.Info("learn.cleared")
	return nil
}
