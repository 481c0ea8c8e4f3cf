package metrics

import (
	"context"
	"errors"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes and persists strategy aggregates from stored trades.
type Aggregator struct {
	tradeStore storage.TradeStore
	aggStore   storage.AggregateStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeStore, aggStore storage.AggregateStore) *Aggregator {
	return &Aggregator{
		tradeStore: tradeStore,
		aggStore:   aggStore,
	}
}

// ComputeAggregate loads all trades for a (plan, model) combination and
// computes its aggregate. Returns ErrNoTrades when nothing matches.
func (a *Aggregator) ComputeAggregate(ctx context.Context, planID, modelID string) (*domain.StrategyAggregate, error) {
	trades, err := a.tradeStore.GetByPlanModel(ctx, planID, modelID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	agg := computeFromTrades(trades)
	agg.PlanID = planID
	agg.ModelID = modelID
	return agg, nil
}

// ComputeAndStore computes the aggregate and persists it.
func (a *Aggregator) ComputeAndStore(ctx context.Context, planID, modelID string) (*domain.StrategyAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, planID, modelID)
	if err != nil {
		return nil, err
	}
	if err := a.aggStore.Insert(ctx, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

// ComputeFromTrades computes an aggregate directly from an in-memory trade
// slice, for callers that have not persisted yet.
func ComputeFromTrades(planID, modelID string, trades []*domain.Trade) *domain.StrategyAggregate {
	agg := computeFromTrades(trades)
	agg.PlanID = planID
	agg.ModelID = modelID
	return agg
}
