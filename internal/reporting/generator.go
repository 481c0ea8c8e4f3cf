package reporting

import (
	"context"
	"sort"
	"time"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// Generator produces reports from stored trades and aggregates.
type Generator struct {
	tradeStore     storage.TradeStore
	aggregateStore storage.AggregateStore
	now            func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator over the given stores.
func NewGenerator(tradeStore storage.TradeStore, aggStore storage.AggregateStore) *Generator {
	return &Generator{
		tradeStore:     tradeStore,
		aggregateStore: aggStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report from all stored aggregates.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	aggs, err := g.aggregateStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	summary, refs, err := g.summarizeTrades(ctx, aggs)
	if err != nil {
		return nil, err
	}

	planSet := make(map[string]struct{})
	modelSet := make(map[string]struct{})
	for _, agg := range aggs {
		planSet[agg.PlanID] = struct{}{}
		modelSet[agg.ModelID] = struct{}{}
	}

	return &Report{
		GeneratedAt:      g.now(),
		PlanCount:        len(planSet),
		ModelCount:       len(modelSet),
		DataSummary:      *summary,
		StrategyMetrics:  buildStrategyMetrics(aggs),
		ModelSensitivity: buildModelSensitivity(aggs),
		TradeReferences:  refs,
	}, nil
}

// summarizeTrades walks every aggregate's trades once, producing both the
// data summary and the trade reference table.
func (g *Generator) summarizeTrades(ctx context.Context, aggs []*domain.StrategyAggregate) (*DataSummary, []TradeReferenceRow, error) {
	summary := &DataSummary{}
	tokens := make(map[string]struct{})
	var refs []TradeReferenceRow

	for _, agg := range aggs {
		trades, err := g.tradeStore.GetByPlanModel(ctx, agg.PlanID, agg.ModelID)
		if err != nil {
			return nil, nil, err
		}

		for _, t := range trades {
			summary.TotalTrades++
			tokens[t.Token] = struct{}{}

			if summary.DateRangeStart == 0 || t.EntryTs < summary.DateRangeStart {
				summary.DateRangeStart = t.EntryTs
			}
			if t.ExitTs > summary.DateRangeEnd {
				summary.DateRangeEnd = t.ExitTs
			}

			refs = append(refs, TradeReferenceRow{
				PlanID:  agg.PlanID,
				ModelID: agg.ModelID,
				TradeID: t.TradeID,
			})
		}
	}

	summary.TotalTokens = len(tokens)

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].PlanID != refs[j].PlanID {
			return refs[i].PlanID < refs[j].PlanID
		}
		if refs[i].ModelID != refs[j].ModelID {
			return refs[i].ModelID < refs[j].ModelID
		}
		return refs[i].TradeID < refs[j].TradeID
	})

	return summary, refs, nil
}

func buildStrategyMetrics(aggs []*domain.StrategyAggregate) []StrategyMetricRow {
	rows := make([]StrategyMetricRow, len(aggs))
	for i, agg := range aggs {
		rows[i] = StrategyMetricRow{
			PlanID:               agg.PlanID,
			ModelID:              agg.ModelID,
			TotalTrades:          agg.TotalTrades,
			TotalTokens:          agg.TotalTokens,
			Wins:                 agg.Wins,
			Losses:               agg.Losses,
			WinRate:              agg.WinRate,
			TokenWinRate:         agg.TokenWinRate,
			PnlMean:              agg.PnlMean,
			PnlMedian:            agg.PnlMedian,
			PnlP10:               agg.PnlP10,
			PnlP25:               agg.PnlP25,
			PnlP75:               agg.PnlP75,
			PnlP90:               agg.PnlP90,
			PnlMin:               agg.PnlMin,
			PnlMax:               agg.PnlMax,
			PnlStddev:            agg.PnlStddev,
			MaxDrawdown:          agg.MaxDrawdown,
			MaxConsecutiveLosses: agg.MaxConsecutiveLosses,
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PlanID != rows[j].PlanID {
			return rows[i].PlanID < rows[j].PlanID
		}
		return rows[i].ModelID < rows[j].ModelID
	})
	return rows
}

// buildModelSensitivity groups aggregates by plan and reports the median net
// pnl spread across execution models. Plans seen under a single model are
// skipped: there is nothing to compare.
func buildModelSensitivity(aggs []*domain.StrategyAggregate) []ModelSensitivityRow {
	groups := make(map[string][]*domain.StrategyAggregate)
	for _, agg := range aggs {
		groups[agg.PlanID] = append(groups[agg.PlanID], agg)
	}

	var rows []ModelSensitivityRow
	for planID, group := range groups {
		if len(group) < 2 {
			continue
		}

		// Model ID order breaks median ties, keeping the row deterministic.
		sort.Slice(group, func(i, j int) bool {
			if group[i].PnlMedian != group[j].PnlMedian {
				return group[i].PnlMedian > group[j].PnlMedian
			}
			return group[i].ModelID < group[j].ModelID
		})

		best := group[0]
		worst := group[len(group)-1]
		row := ModelSensitivityRow{
			PlanID:       planID,
			BestModelID:  best.ModelID,
			BestMedian:   best.PnlMedian,
			WorstModelID: worst.ModelID,
			WorstMedian:  worst.PnlMedian,
		}
		if best.PnlMedian != 0 {
			row.SpreadPct = (best.PnlMedian - worst.PnlMedian) / abs(best.PnlMedian) * 100
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].PlanID < rows[j].PlanID
	})
	return rows
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
