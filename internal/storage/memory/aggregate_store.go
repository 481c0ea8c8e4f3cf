package memory

import (
	"context"
	"sort"
	"sync"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// AggregateStore is an in-memory implementation of storage.AggregateStore.
type AggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StrategyAggregate // keyed by plan_id|model_id
}

// NewAggregateStore creates a new in-memory aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		data: make(map[string]*domain.StrategyAggregate),
	}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

func aggregateKey(planID, modelID string) string {
	return planID + "|" + modelID
}

// Insert adds a new aggregate. Returns ErrDuplicateKey if the key exists.
func (s *AggregateStore) Insert(_ context.Context, a *domain.StrategyAggregate) error {
	if a == nil || a.PlanID == "" || a.ModelID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := aggregateKey(a.PlanID, a.ModelID)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *a
	s.data[key] = &cp
	return nil
}

// GetByKey retrieves an aggregate by its composite key.
func (s *AggregateStore) GetByKey(_ context.Context, planID, modelID string) (*domain.StrategyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[aggregateKey(planID, modelID)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAll retrieves all aggregates, ordered by (plan_id, model_id).
func (s *AggregateStore) GetAll(_ context.Context) ([]*domain.StrategyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.StrategyAggregate, 0, len(s.data))
	for _, a := range s.data {
		cp := *a
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PlanID != result[j].PlanID {
			return result[i].PlanID < result[j].PlanID
		}
		return result[i].ModelID < result[j].ModelID
	})
	return result, nil
}
