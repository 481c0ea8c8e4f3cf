package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage/memory"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func agg(planID, modelID string, median float64) *domain.StrategyAggregate {
	return &domain.StrategyAggregate{
		PlanID:       planID,
		ModelID:      modelID,
		TotalTrades:  2,
		TotalTokens:  2,
		Wins:         1,
		Losses:       1,
		WinRate:      0.5,
		TokenWinRate: 0.5,
		PnlMean:      median,
		PnlMedian:    median,
		PnlStddev:    1.5,
	}
}

func trade(id, token, planID, modelID string, entryTs, exitTs int64, netPnl float64) *domain.Trade {
	return &domain.Trade{
		TradeID:        id,
		Token:          token,
		PlanID:         planID,
		ModelID:        modelID,
		EntryTs:        entryTs,
		ExitTs:         exitTs,
		EntryPrice:     100,
		ExitPrice:      100 * (1 + netPnl/100),
		PnlPct:         netPnl,
		NetPnlPct:      netPnl,
		ExitReason:     domain.ExitReasonLadderTarget,
		SizePctInitial: 1,
		HoldDurationMs: exitTs - entryTs,
	}
}

// setupStores seeds two plans across two models: PLAN_A has trades under
// both models, PLAN_B only under one.
func setupStores(t *testing.T) (*memory.TradeStore, *memory.AggregateStore) {
	t.Helper()
	ctx := context.Background()

	trades := memory.NewTradeStore()
	aggs := memory.NewAggregateStore()

	fixtures := []*domain.Trade{
		trade("t1", "tokA", "PLAN_A", "MODEL_PERFECT", 1_000, 2_000, 40),
		trade("t2", "tokB", "PLAN_A", "MODEL_PERFECT", 3_000, 5_000, -10),
		trade("t3", "tokA", "PLAN_A", "MODEL_SLIPPAGE", 1_000, 2_000, 35),
		trade("t4", "tokB", "PLAN_A", "MODEL_SLIPPAGE", 3_000, 6_000, -15),
		trade("t5", "tokC", "PLAN_B", "MODEL_PERFECT", 500, 4_000, 12),
	}
	if err := trades.InsertBulk(ctx, fixtures); err != nil {
		t.Fatalf("seed trades: %v", err)
	}

	for _, a := range []*domain.StrategyAggregate{
		agg("PLAN_B", "MODEL_PERFECT", 12),
		agg("PLAN_A", "MODEL_SLIPPAGE", 10),
		agg("PLAN_A", "MODEL_PERFECT", 15),
	} {
		if err := aggs.Insert(ctx, a); err != nil {
			t.Fatalf("seed aggregate %s/%s: %v", a.PlanID, a.ModelID, err)
		}
	}

	return trades, aggs
}

func TestGenerateCountsAndOrdering(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if report.PlanCount != 2 {
		t.Errorf("plan count = %d, want 2", report.PlanCount)
	}
	if report.ModelCount != 2 {
		t.Errorf("model count = %d, want 2", report.ModelCount)
	}
	if !report.GeneratedAt.Equal(fixedClock()) {
		t.Errorf("generated at = %v, want fixed clock", report.GeneratedAt)
	}

	if len(report.StrategyMetrics) != 3 {
		t.Fatalf("metrics rows = %d, want 3", len(report.StrategyMetrics))
	}
	wantOrder := [][2]string{
		{"PLAN_A", "MODEL_PERFECT"},
		{"PLAN_A", "MODEL_SLIPPAGE"},
		{"PLAN_B", "MODEL_PERFECT"},
	}
	for i, want := range wantOrder {
		got := report.StrategyMetrics[i]
		if got.PlanID != want[0] || got.ModelID != want[1] {
			t.Errorf("metrics[%d] = %s/%s, want %s/%s", i, got.PlanID, got.ModelID, want[0], want[1])
		}
	}
}

func TestGenerateDataSummary(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ds := report.DataSummary
	if ds.TotalTrades != 5 {
		t.Errorf("total trades = %d, want 5", ds.TotalTrades)
	}
	if ds.TotalTokens != 3 {
		t.Errorf("total tokens = %d, want 3", ds.TotalTokens)
	}
	if ds.DateRangeStart != 500 {
		t.Errorf("date range start = %d, want 500", ds.DateRangeStart)
	}
	if ds.DateRangeEnd != 6_000 {
		t.Errorf("date range end = %d, want 6000", ds.DateRangeEnd)
	}
}

func TestGenerateModelSensitivity(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// PLAN_B has a single model and cannot be compared.
	if len(report.ModelSensitivity) != 1 {
		t.Fatalf("sensitivity rows = %d, want 1", len(report.ModelSensitivity))
	}
	row := report.ModelSensitivity[0]
	if row.PlanID != "PLAN_A" {
		t.Errorf("plan = %s, want PLAN_A", row.PlanID)
	}
	if row.BestModelID != "MODEL_PERFECT" || row.BestMedian != 15 {
		t.Errorf("best = %s/%v, want MODEL_PERFECT/15", row.BestModelID, row.BestMedian)
	}
	if row.WorstModelID != "MODEL_SLIPPAGE" || row.WorstMedian != 10 {
		t.Errorf("worst = %s/%v, want MODEL_SLIPPAGE/10", row.WorstModelID, row.WorstMedian)
	}
	wantSpread := (15.0 - 10.0) / 15.0 * 100
	if math.Abs(row.SpreadPct-wantSpread) > 1e-9 {
		t.Errorf("spread = %v, want %v", row.SpreadPct, wantSpread)
	}
}

func TestGenerateTradeReferencesSorted(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(report.TradeReferences) != 5 {
		t.Fatalf("trade references = %d, want 5", len(report.TradeReferences))
	}
	wantIDs := []string{"t1", "t2", "t3", "t4", "t5"}
	for i, want := range wantIDs {
		if report.TradeReferences[i].TradeID != want {
			t.Errorf("refs[%d] = %s, want %s", i, report.TradeReferences[i].TradeID, want)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	first, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if RenderMarkdown(first) != RenderMarkdown(second) {
		t.Error("two generations over the same stores rendered differently")
	}
	if RenderCSV(first.StrategyMetrics) != RenderCSV(second.StrategyMetrics) {
		t.Error("two generations produced different CSV")
	}
}

func TestRenderCSV(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	csv := RenderCSV(report.StrategyMetrics)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("csv lines = %d, want 4 (header + 3 rows)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "plan_id,model_id,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "PLAN_A,MODEL_PERFECT,2,2,1,1,0.500000") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
}

func TestRenderMarkdownSections(t *testing.T) {
	trades, aggs := setupStores(t)
	gen := NewGenerator(trades, aggs).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Replay Lab Report",
		"## Data Summary",
		"## Strategy Metrics",
		"## Execution Model Sensitivity",
		"## Trade References",
		"| PLAN_A | MODEL_PERFECT |",
		"2026-03-01T12:00:00Z",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRenderMarkdownEmptyReport(t *testing.T) {
	gen := NewGenerator(memory.NewTradeStore(), memory.NewAggregateStore()).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"No strategy metrics available.",
		"No cross-model comparison available.",
		"No trade references available.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}
