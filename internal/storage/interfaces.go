// Package storage defines the persistence interfaces of the replay lab.
// Candle history lives in ClickHouse (bulk timeseries), trades and
// aggregates in PostgreSQL; in-memory implementations back tests and
// ad-hoc runs. All stores are append-only.
package storage

import (
	"context"

	"token-replay-lab/internal/domain"
)

// CandleStore provides access to candle history keyed by (token, resolution).
type CandleStore interface {
	// InsertBulk adds candles for a token/resolution pair. Fails the entire
	// batch on a duplicate (token, resolution, timestamp_ms).
	InsertBulk(ctx context.Context, token string, resolution domain.Resolution, candles []domain.Candle) error

	// GetByToken retrieves all candles for a token/resolution pair, ordered
	// by timestamp ASC.
	GetByToken(ctx context.Context, token string, resolution domain.Resolution) ([]domain.Candle, error)

	// GetByTimeRange retrieves candles within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, token string, resolution domain.Resolution, start, end int64) ([]domain.Candle, error)
}

// TradeStore provides access to finalized trades.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByToken retrieves all trades for a token, ordered by entry_ts ASC.
	GetByToken(ctx context.Context, token string) ([]*domain.Trade, error)

	// GetByPlanModel retrieves all trades for a (plan, execution model)
	// combination, ordered by entry_ts ASC.
	GetByPlanModel(ctx context.Context, planID, modelID string) ([]*domain.Trade, error)
}

// AggregateStore provides access to cross-run strategy aggregates.
type AggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if (plan_id, model_id) exists.
	Insert(ctx context.Context, a *domain.StrategyAggregate) error

	// GetByKey retrieves an aggregate by its composite key. Returns
	// ErrNotFound if not exists.
	GetByKey(ctx context.Context, planID, modelID string) (*domain.StrategyAggregate, error)

	// GetAll retrieves all aggregates, ordered by (plan_id, model_id).
	GetAll(ctx context.Context) ([]*domain.StrategyAggregate, error)
}
