// Package memory provides in-memory store implementations for tests and
// ad-hoc runs. All stores are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Candle // keyed by token|resolution, sorted by timestamp
	keys map[string]struct{}        // token|resolution|timestamp_ms, for duplicate detection
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string][]domain.Candle),
		keys: make(map[string]struct{}),
	}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

func seriesKey(token string, resolution domain.Resolution) string {
	return token + "|" + string(resolution)
}

func candleKey(token string, resolution domain.Resolution, ts int64) string {
	return fmt.Sprintf("%s|%s|%d", token, resolution, ts)
}

// InsertBulk adds candles for a token/resolution pair. Fails the entire batch
// on any duplicate timestamp.
func (s *CandleStore) InsertBulk(_ context.Context, token string, resolution domain.Resolution, candles []domain.Candle) error {
	if token == "" || resolution == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(candles))
	for _, c := range candles {
		key := candleKey(token, resolution, c.TimestampMs)
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	sk := seriesKey(token, resolution)
	s.data[sk] = append(s.data[sk], candles...)
	sort.Slice(s.data[sk], func(i, j int) bool {
		return s.data[sk][i].TimestampMs < s.data[sk][j].TimestampMs
	})
	for key := range batchKeys {
		s.keys[key] = struct{}{}
	}
	return nil
}

// GetByToken retrieves all candles for a token/resolution pair, ordered by
// timestamp ASC.
func (s *CandleStore) GetByToken(_ context.Context, token string, resolution domain.Resolution) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[seriesKey(token, resolution)]
	result := make([]domain.Candle, len(series))
	copy(result, series)
	return result, nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered
// by timestamp ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, token string, resolution domain.Resolution, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for _, c := range s.data[seriesKey(token, resolution)] {
		if c.TimestampMs >= start && c.TimestampMs <= end {
			result = append(result, c)
		}
	}
	return result, nil
}
