package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders strategy metric rows as a CSV string.
func RenderCSV(metrics []StrategyMetricRow) string {
	var sb strings.Builder

	sb.WriteString("plan_id,model_id,total_trades,total_tokens,wins,losses,win_rate,token_win_rate,")
	sb.WriteString("pnl_mean,pnl_median,pnl_p10,pnl_p25,pnl_p75,pnl_p90,pnl_min,pnl_max,pnl_stddev,")
	sb.WriteString("max_drawdown,max_consecutive_losses\n")

	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d\n",
			m.PlanID,
			m.ModelID,
			m.TotalTrades,
			m.TotalTokens,
			m.Wins,
			m.Losses,
			m.WinRate,
			m.TokenWinRate,
			m.PnlMean,
			m.PnlMedian,
			m.PnlP10,
			m.PnlP25,
			m.PnlP75,
			m.PnlP90,
			m.PnlMin,
			m.PnlMax,
			m.PnlStddev,
			m.MaxDrawdown,
			m.MaxConsecutiveLosses,
		))
	}

	return sb.String()
}
