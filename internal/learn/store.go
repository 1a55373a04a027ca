package learn

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/belegwerk/docpipe/internal/common"
	"github.com/belegwerk/docpipe/internal/entity"
)

// storeErr tags persistence failures so callers can test for
// common.ErrStore regardless of the backing driver.
func storeErr(code, message string, cause error) error {
	return common.NewAppError(code, message, errors.Join(common.ErrStore, cause))
}

// ObservationStore persists user corrections. Implementations must be safe
// for concurrent use.
type ObservationStore interface {
	// Append records one correction.
	Append(ctx context.Context, obs entity.LearningObservation) error
	// List returns all observations for one field type, oldest first.
	List(ctx context.Context, fieldType entity.FieldType) ([]entity.LearningObservation, error)
	// All returns every observation, oldest first.
	All(ctx context.Context) ([]entity.LearningObservation, error)
	// Clear removes all observations.
	Clear(ctx context.Context) error
}

// MemoryStore is the in-process ObservationStore used by default and in
// tests.
type MemoryStore struct {
	mu  sync.RWMutex
	obs []entity.LearningObservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, obs entity.LearningObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, obs)
	return nil
}

func (s *MemoryStore) List(_ context.Context, fieldType entity.FieldType) ([]entity.LearningObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.LearningObservation
	for _, o := range s.obs {
		if o.FieldType == fieldType {
			out = append(out, o)
		}
	}
	sortByRecordedAt(out)
	return out, nil
}

func (s *MemoryStore) All(_ context.Context) ([]entity.LearningObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.LearningObservation, len(s.obs))
	copy(out, s.obs)
	sortByRecordedAt(out)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = nil
	return nil
}

func sortByRecordedAt(obs []entity.LearningObservation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].RecordedAt.Before(obs[j].RecordedAt)
	})
}
