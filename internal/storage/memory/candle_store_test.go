package memory

import (
	"context"
	"errors"
	"testing"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

const testToken = "So11111111111111111111111111111111111111112"

func minuteCandle(ts int64, close float64) domain.Candle {
	return domain.Candle{TimestampMs: ts, Open: close, High: close + 1, Low: close - 1, Close: close, Volume: 1}
}

func TestCandleStore_InsertAndGet(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		minuteCandle(60_000, 101),
		minuteCandle(0, 100),
		minuteCandle(120_000, 102),
	}
	if err := store.InsertBulk(ctx, testToken, domain.ResolutionMinute, candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByToken(ctx, testToken, domain.ResolutionMinute)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candles, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TimestampMs <= got[i-1].TimestampMs {
			t.Fatalf("candles not ordered: %d after %d", got[i].TimestampMs, got[i-1].TimestampMs)
		}
	}
}

func TestCandleStore_ResolutionsAreSeparateSeries(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{minuteCandle(0, 100)}); err != nil {
		t.Fatalf("InsertBulk minute failed: %v", err)
	}
	// Same timestamp at a different resolution is not a duplicate.
	if err := store.InsertBulk(ctx, testToken, domain.ResolutionSecond, []domain.Candle{minuteCandle(0, 100)}); err != nil {
		t.Fatalf("InsertBulk second failed: %v", err)
	}

	got, err := store.GetByToken(ctx, testToken, domain.ResolutionSecond)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candles, want 1", len(got))
	}
}

func TestCandleStore_DuplicateTimestamp(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{minuteCandle(0, 100)}); err != nil {
		t.Fatalf("first InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{minuteCandle(0, 105)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate also fails the whole batch.
	err = store.InsertBulk(ctx, testToken, domain.ResolutionMinute, []domain.Candle{
		minuteCandle(60_000, 101),
		minuteCandle(60_000, 102),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}
	got, _ := store.GetByToken(ctx, testToken, domain.ResolutionMinute)
	if len(got) != 1 {
		t.Errorf("failed batch partially applied: %d candles", len(got))
	}
}

func TestCandleStore_GetByTimeRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		minuteCandle(0, 100),
		minuteCandle(60_000, 101),
		minuteCandle(120_000, 102),
		minuteCandle(180_000, 103),
	}
	if err := store.InsertBulk(ctx, testToken, domain.ResolutionMinute, candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, testToken, domain.ResolutionMinute, 60_000, 120_000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candles, want 2 (range inclusive)", len(got))
	}
	if got[0].TimestampMs != 60_000 || got[1].TimestampMs != 120_000 {
		t.Errorf("unexpected range contents: %v", got)
	}
}

func TestCandleStore_InvalidInput(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, "", domain.ResolutionMinute, []domain.Candle{minuteCandle(0, 100)})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
