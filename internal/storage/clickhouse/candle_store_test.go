package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

const testToken = "So11111111111111111111111111111111111111112"

func minuteCandle(ts int64, close float64) domain.Candle {
	return domain.Candle{TimestampMs: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 10}
}

func TestCandleStore_InsertAndGetByToken(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	candles := []domain.Candle{
		minuteCandle(0, 100),
		minuteCandle(60_000, 101),
		minuteCandle(120_000, 102),
	}
	require.NoError(t, store.InsertBulk(ctx, testToken, domain.ResolutionMinute, candles))

	got, err := store.GetByToken(ctx, testToken, domain.ResolutionMinute)
	require.NoError(t, err)
	assert.Equal(t, candles, got)

	// A different resolution is a separate series.
	other, err := store.GetByToken(ctx, testToken, domain.ResolutionSecond)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCandleStore_DuplicateDetection(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{minuteCandle(0, 100)}))

	err := store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{minuteCandle(0, 105)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{
		minuteCandle(60_000, 101),
		minuteCandle(60_000, 102),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey, "intra-batch duplicate")
}

func TestCandleStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{
		minuteCandle(0, 100),
		minuteCandle(60_000, 101),
		minuteCandle(120_000, 102),
		minuteCandle(180_000, 103),
	}))

	got, err := store.GetByTimeRange(ctx, testToken, domain.ResolutionMinute, 60_000, 120_000)
	require.NoError(t, err)
	require.Len(t, got, 2, "range is inclusive on both ends")
	assert.Equal(t, int64(60_000), got[0].TimestampMs)
	assert.Equal(t, int64(120_000), got[1].TimestampMs)
}
