package memory

import (
	"context"
	"errors"
	"testing"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

func testTrade(id string, entryTs int64) *domain.Trade {
	return &domain.Trade{
		TradeID:    id,
		Token:      testToken,
		PlanID:     "LADDER_x2@0.5",
		ModelID:    "PERFECT_FILL_fee0bps",
		EntryTs:    entryTs,
		ExitTs:     entryTs + 60_000,
		EntryPrice: 100,
		ExitPrice:  120,
		PnlPct:     20,
		NetPnlPct:  19.4,
		ExitReason: domain.ExitReasonLadderTarget,
	}
}

func TestTradeStore_InsertAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrade("t1", 0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PnlPct != 20 || got.Token != testToken {
		t.Errorf("unexpected trade: %+v", got)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrade("t1", 0)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, testTrade("t1", 0)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_InsertBulkAtomicity(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testTrade("t1", 0)); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t2", 60_000),
		testTrade("t1", 0), // duplicate against existing
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "t2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("failed batch partially applied: %v", err)
	}
}

func TestTradeStore_GetByPlanModelOrdering(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t2", 120_000),
		testTrade("t1", 0),
		testTrade("t3", 60_000),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPlanModel(ctx, "LADDER_x2@0.5", "PERFECT_FILL_fee0bps")
	if err != nil {
		t.Fatalf("GetByPlanModel failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d trades, want 3", len(got))
	}
	if got[0].TradeID != "t1" || got[1].TradeID != "t3" || got[2].TradeID != "t2" {
		t.Errorf("trades not ordered by entry_ts: %s %s %s", got[0].TradeID, got[1].TradeID, got[2].TradeID)
	}

	other, err := store.GetByPlanModel(ctx, "LADDER_x2@0.5", "FIXED_SLIPPAGE_10bps_fee30bps")
	if err != nil {
		t.Fatalf("GetByPlanModel failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unexpected trades for other model: %d", len(other))
	}
}
