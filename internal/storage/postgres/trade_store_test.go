package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

const testToken = "So11111111111111111111111111111111111111112"

func testTrade(id string, entryTs int64) *domain.Trade {
	return &domain.Trade{
		TradeID:        id,
		Token:          testToken,
		PlanID:         "LADDER_x2@0.5__MAXHOLD_3600000ms",
		ModelID:        "FIXED_SLIPPAGE_10bps_fee30bps",
		EntryTs:        entryTs,
		ExitTs:         entryTs + 300_000,
		EntryPrice:     100.1,
		ExitPrice:      199.9,
		PnlPct:         99.7,
		NetPnlPct:      99.1,
		FeesPaid:       9.0,
		ExitReason:     domain.ExitReasonLadderTarget,
		SizePctInitial: 1,
		HoldDurationMs: 300_000,
	}
}

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	want := testTrade("t1", 0)
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testTrade("t1", 0)))
	err := store.Insert(ctx, testTrade("t1", 0))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeStore_InsertBulkAtomicity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testTrade("t1", 0)))

	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t2", 60_000),
		testTrade("t1", 0), // duplicate fails the whole batch
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "t2")
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed batch must not be partially applied")
}

func TestTradeStore_QueriesOrderByEntryTs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Trade{
		testTrade("t2", 120_000),
		testTrade("t1", 0),
		testTrade("t3", 60_000),
	}))

	byToken, err := store.GetByToken(ctx, testToken)
	require.NoError(t, err)
	require.Len(t, byToken, 3)
	assert.Equal(t, "t1", byToken[0].TradeID)
	assert.Equal(t, "t3", byToken[1].TradeID)
	assert.Equal(t, "t2", byToken[2].TradeID)

	byPlan, err := store.GetByPlanModel(ctx, byToken[0].PlanID, byToken[0].ModelID)
	require.NoError(t, err)
	assert.Len(t, byPlan, 3)

	other, err := store.GetByPlanModel(ctx, byToken[0].PlanID, "PERFECT_FILL_fee0bps")
	require.NoError(t, err)
	assert.Empty(t, other)
}
