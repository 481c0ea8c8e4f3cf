package memory

import (
	"context"
	"errors"
	"testing"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

func TestAggregateStore_InsertAndGet(t *testing.T) {
	store := NewAggregateStore()
	ctx := context.Background()

	agg := &domain.StrategyAggregate{
		PlanID:      "LADDER_x2@0.5",
		ModelID:     "FIXED_SLIPPAGE_10bps_fee30bps",
		TotalTrades: 100,
		Wins:        60,
		Losses:      40,
		WinRate:     0.6,
		PnlMedian:   5,
	}
	if err := store.Insert(ctx, agg); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByKey(ctx, agg.PlanID, agg.ModelID)
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.WinRate != 0.6 {
		t.Errorf("WinRate mismatch: got %f, want 0.6", got.WinRate)
	}

	if _, err := store.GetByKey(ctx, agg.PlanID, "other"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAggregateStore_DuplicateKey(t *testing.T) {
	store := NewAggregateStore()
	ctx := context.Background()

	agg := &domain.StrategyAggregate{PlanID: "p", ModelID: "m"}
	if err := store.Insert(ctx, agg); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, agg); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestAggregateStore_GetAllOrdered(t *testing.T) {
	store := NewAggregateStore()
	ctx := context.Background()

	for _, key := range [][2]string{{"b", "m1"}, {"a", "m2"}, {"a", "m1"}} {
		if err := store.Insert(ctx, &domain.StrategyAggregate{PlanID: key[0], ModelID: key[1]}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d aggregates, want 3", len(got))
	}
	if got[0].PlanID != "a" || got[0].ModelID != "m1" || got[2].PlanID != "b" {
		t.Errorf("aggregates not ordered: %+v", got)
	}
}
