// Package metrics computes cross-run strategy aggregates from finalized
// trades. All statistics run on net (after-fee) pnl percentages.
package metrics

import (
	"math"
	"sort"

	"token-replay-lab/internal/domain"
)

// computeFromTrades calculates all metrics for one (plan, model) combination.
// Trades are sorted by EntryTs ASC, TradeID ASC before the order-dependent
// metrics (MaxDrawdown, MaxConsecutiveLosses) so results do not depend on
// caller ordering.
func computeFromTrades(trades []*domain.Trade) *domain.StrategyAggregate {
	n := len(trades)
	if n == 0 {
		return &domain.StrategyAggregate{}
	}

	sorted := make([]*domain.Trade, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EntryTs != sorted[j].EntryTs {
			return sorted[i].EntryTs < sorted[j].EntryTs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	wins := 0
	for _, t := range sorted {
		if t.OutcomeClass() == domain.OutcomeClassWin {
			wins++
		}
	}

	// Net pnl in chronological order for the order-dependent metrics.
	pnls := make([]float64, n)
	for i, t := range sorted {
		pnls[i] = t.NetPnlPct
	}

	sortedPnls := make([]float64, n)
	copy(sortedPnls, pnls)
	sort.Float64s(sortedPnls)

	mean := computeMean(pnls)
	totalTokens, tokenWinRate := computeTokenWinRate(sorted)

	return &domain.StrategyAggregate{
		TotalTrades:  n,
		TotalTokens:  totalTokens,
		Wins:         wins,
		Losses:       n - wins,
		WinRate:      float64(wins) / float64(n),
		TokenWinRate: tokenWinRate,

		PnlMean:   mean,
		PnlMedian: computePercentile(sortedPnls, 0.50),
		PnlP10:    computePercentile(sortedPnls, 0.10),
		PnlP25:    computePercentile(sortedPnls, 0.25),
		PnlP75:    computePercentile(sortedPnls, 0.75),
		PnlP90:    computePercentile(sortedPnls, 0.90),
		PnlMin:    sortedPnls[0],
		PnlMax:    sortedPnls[n-1],
		PnlStddev: computeStddev(pnls, mean),

		MaxDrawdown:          computeMaxDrawdown(pnls),
		MaxConsecutiveLosses: computeMaxConsecutiveLosses(pnls),
	}
}

// computeTokenWinRate groups trades by token; a token wins when its mean net
// pnl is positive.
func computeTokenWinRate(trades []*domain.Trade) (int, float64) {
	if len(trades) == 0 {
		return 0, 0
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, t := range trades {
		sums[t.Token] += t.NetPnlPct
		counts[t.Token]++
	}

	totalTokens := len(sums)
	winners := 0
	for token, sum := range sums {
		if sum/float64(counts[token]) > 0 {
			winners++
		}
	}
	return totalTokens, float64(winners) / float64(totalTokens)
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation over a pre-sorted slice.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates the worst peak-to-trough of the cumulative
// net pnl, in chronological order. Returned as a negative number (0 when the
// curve never declines).
func computeMaxDrawdown(pnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, p := range pnls {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := cumulative - peak; dd < maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of net pnl <= 0, in
// chronological order.
func computeMaxConsecutiveLosses(pnls []float64) int {
	maxStreak := 0
	streak := 0
	for _, p := range pnls {
		if p <= 0 {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}
