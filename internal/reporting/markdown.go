package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Replay Lab Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Exit plans: %d | Execution models: %d\n\n", r.PlanCount, r.ModelCount))

	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Tokens | %d |\n", r.DataSummary.TotalTokens))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.DataSummary.DateRangeStart))
	sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.DataSummary.DateRangeEnd))
	sb.WriteString("\n")

	sb.WriteString("## Strategy Metrics\n\n")
	if len(r.StrategyMetrics) > 0 {
		sb.WriteString("| Plan | Model | Trades | Tokens | WinRate | TokenWinRate | Mean | Median | P10 | P90 | Stddev | MaxDD | MaxLoss |\n")
		sb.WriteString("|------|-------|--------|--------|---------|--------------|------|--------|-----|-----|--------|-------|--------|\n")
		for _, m := range r.StrategyMetrics {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d |\n",
				m.PlanID, m.ModelID,
				m.TotalTrades, m.TotalTokens, m.WinRate, m.TokenWinRate,
				m.PnlMean, m.PnlMedian, m.PnlP10, m.PnlP90, m.PnlStddev,
				m.MaxDrawdown, m.MaxConsecutiveLosses))
		}
	} else {
		sb.WriteString("No strategy metrics available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Execution Model Sensitivity\n\n")
	if len(r.ModelSensitivity) > 0 {
		sb.WriteString("| Plan | Best Model | Best Median | Worst Model | Worst Median | Spread% |\n")
		sb.WriteString("|------|------------|-------------|-------------|--------------|--------|\n")
		for _, s := range r.ModelSensitivity {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %s | %.4f | %.2f |\n",
				s.PlanID, s.BestModelID, s.BestMedian,
				s.WorstModelID, s.WorstMedian, s.SpreadPct))
		}
	} else {
		sb.WriteString("No cross-model comparison available.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Trade References\n\n")
	if len(r.TradeReferences) > 0 {
		sb.WriteString("| Plan | Model | Trade |\n")
		sb.WriteString("|------|-------|-------|\n")
		for _, ref := range r.TradeReferences {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				ref.PlanID, ref.ModelID, ref.TradeID))
		}
	} else {
		sb.WriteString("No trade references available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
