package metrics

import (
	"context"
	"errors"
	"math"
	"testing"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage/memory"
)

func trade(id, token string, entryTs int64, netPnl float64) *domain.Trade {
	return &domain.Trade{
		TradeID:   id,
		Token:     token,
		PlanID:    "plan",
		ModelID:   "model",
		EntryTs:   entryTs,
		NetPnlPct: netPnl,
		PnlPct:    netPnl,
	}
}

func TestComputeFromTradesCounts(t *testing.T) {
	trades := []*domain.Trade{
		trade("t1", "tokA", 0, 10),
		trade("t2", "tokA", 1, -5),
		trade("t3", "tokB", 2, 20),
		trade("t4", "tokC", 3, -8),
	}

	agg := computeFromTrades(trades)
	if agg.TotalTrades != 4 || agg.Wins != 2 || agg.Losses != 2 {
		t.Fatalf("counts: %+v", agg)
	}
	if agg.WinRate != 0.5 {
		t.Errorf("win rate = %v", agg.WinRate)
	}
	if agg.TotalTokens != 3 {
		t.Errorf("total tokens = %d", agg.TotalTokens)
	}
	// tokA mean 2.5 > 0, tokB 20 > 0, tokC -8: two of three tokens win.
	if math.Abs(agg.TokenWinRate-2.0/3.0) > 1e-12 {
		t.Errorf("token win rate = %v", agg.TokenWinRate)
	}
	if agg.PnlMin != -8 || agg.PnlMax != 20 {
		t.Errorf("min/max: %v/%v", agg.PnlMin, agg.PnlMax)
	}
}

func TestComputeFromTradesEmpty(t *testing.T) {
	agg := computeFromTrades(nil)
	if agg.TotalTrades != 0 || agg.WinRate != 0 {
		t.Fatalf("empty aggregate: %+v", agg)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	if got := computePercentile(sorted, 0.50); got != 25 {
		t.Errorf("median = %v, want 25", got)
	}
	if got := computePercentile(sorted, 0); got != 10 {
		t.Errorf("p0 = %v, want 10", got)
	}
	if got := computePercentile(sorted, 1); got != 40 {
		t.Errorf("p100 = %v, want 40", got)
	}
	if got := computePercentile([]float64{7}, 0.9); got != 7 {
		t.Errorf("single sample = %v, want 7", got)
	}
}

func TestStddevSampleFormula(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(values)
	got := computeStddev(values, mean)
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("stddev = %v, want %v", got, want)
	}
	if computeStddev([]float64{5}, 5) != 0 {
		t.Error("single sample stddev must be 0")
	}
}

func TestMaxDrawdownTracksCumulativeCurve(t *testing.T) {
	// Cumulative: 10, 30, 10, -10, 0. Peak 30, trough -10.
	pnls := []float64{10, 20, -20, -20, 10}
	if got := computeMaxDrawdown(pnls); got != -40 {
		t.Errorf("max drawdown = %v, want -40", got)
	}
	if got := computeMaxDrawdown([]float64{5, 5, 5}); got != 0 {
		t.Errorf("monotonic curve drawdown = %v, want 0", got)
	}
}

func TestMaxConsecutiveLosses(t *testing.T) {
	pnls := []float64{-1, -2, 3, -1, -1, -1, 4}
	if got := computeMaxConsecutiveLosses(pnls); got != 3 {
		t.Errorf("streak = %v, want 3", got)
	}
	// Zero counts as a loss.
	if got := computeMaxConsecutiveLosses([]float64{0, 0}); got != 2 {
		t.Errorf("zero pnl streak = %v, want 2", got)
	}
}

func TestOrderIndependence(t *testing.T) {
	a := []*domain.Trade{
		trade("t1", "tokA", 0, 10),
		trade("t2", "tokA", 1, -20),
		trade("t3", "tokB", 2, 5),
	}
	b := []*domain.Trade{a[2], a[0], a[1]}

	aggA := computeFromTrades(a)
	aggB := computeFromTrades(b)
	if aggA.MaxDrawdown != aggB.MaxDrawdown || aggA.MaxConsecutiveLosses != aggB.MaxConsecutiveLosses {
		t.Fatalf("order-dependent metrics differ: %+v vs %+v", aggA, aggB)
	}
}

func TestAggregatorComputeAndStore(t *testing.T) {
	ctx := context.Background()
	tradeStore := memory.NewTradeStore()
	aggStore := memory.NewAggregateStore()

	for _, tr := range []*domain.Trade{
		trade("t1", "tokA", 0, 10),
		trade("t2", "tokB", 1, -5),
	} {
		if err := tradeStore.Insert(ctx, tr); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}

	agg := NewAggregator(tradeStore, aggStore)
	got, err := agg.ComputeAndStore(ctx, "plan", "model")
	if err != nil {
		t.Fatalf("ComputeAndStore: %v", err)
	}
	if got.TotalTrades != 2 || got.PlanID != "plan" || got.ModelID != "model" {
		t.Fatalf("unexpected aggregate: %+v", got)
	}

	stored, err := aggStore.GetByKey(ctx, "plan", "model")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if stored.TotalTrades != 2 {
		t.Fatalf("stored aggregate: %+v", stored)
	}

	if _, err := agg.ComputeAggregate(ctx, "plan", "other"); !errors.Is(err, ErrNoTrades) {
		t.Fatalf("expected ErrNoTrades, got %v", err)
	}
}
