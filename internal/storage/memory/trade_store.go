package memory

import (
	"context"
	"sort"
	"sync"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.TradeID] = &cp
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[t.TradeID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		cp := *t
		s.data[t.TradeID] = &cp
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// GetByToken retrieves all trades for a token, ordered by entry_ts ASC.
func (s *TradeStore) GetByToken(_ context.Context, token string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Token == token {
			cp := *t
			result = append(result, &cp)
		}
	}
	sortTrades(result)
	return result, nil
}

// GetByPlanModel retrieves all trades for a (plan, execution model)
// combination, ordered by entry_ts ASC.
func (s *TradeStore) GetByPlanModel(_ context.Context, planID, modelID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.PlanID == planID && t.ModelID == modelID {
			cp := *t
			result = append(result, &cp)
		}
	}
	sortTrades(result)
	return result, nil
}

// sortTrades orders by entry_ts with trade_id as a deterministic tie-break.
func sortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].EntryTs != trades[j].EntryTs {
			return trades[i].EntryTs < trades[j].EntryTs
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}
