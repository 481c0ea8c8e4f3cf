// Package reporting renders stored strategy aggregates into human-readable
// summaries. Rendering is pure string building over already-computed data;
// all ordering is deterministic so two generations over the same stores
// produce identical output.
package reporting

import "time"

// Report is the full research summary for one batch of simulations.
type Report struct {
	GeneratedAt time.Time
	PlanCount   int
	ModelCount  int

	DataSummary DataSummary

	// StrategyMetrics is sorted by (plan_id, model_id).
	StrategyMetrics []StrategyMetricRow

	// ModelSensitivity compares how execution model choice moves each plan's
	// outcome, sorted by plan_id.
	ModelSensitivity []ModelSensitivityRow

	// TradeReferences lists the trade IDs behind each aggregate, sorted by
	// (plan_id, model_id, trade_id). These feed the verification CLI.
	TradeReferences []TradeReferenceRow
}

// DataSummary describes the data the report covers.
type DataSummary struct {
	TotalTokens    int
	TotalTrades    int
	DateRangeStart int64 // Unix ms, earliest trade entry
	DateRangeEnd   int64 // Unix ms, latest trade exit
}

// StrategyMetricRow is one row of the strategy metrics table, one per
// (plan, execution model) aggregate.
type StrategyMetricRow struct {
	PlanID  string
	ModelID string

	TotalTrades  int
	TotalTokens  int
	Wins         int
	Losses       int
	WinRate      float64
	TokenWinRate float64

	PnlMean   float64
	PnlMedian float64
	PnlP10    float64
	PnlP25    float64
	PnlP75    float64
	PnlP90    float64
	PnlMin    float64
	PnlMax    float64
	PnlStddev float64

	MaxDrawdown          float64
	MaxConsecutiveLosses int
}

// ModelSensitivityRow shows, for one plan, the spread between the best and
// worst execution model by median net pnl. A wide spread means the plan's
// edge depends on execution costs rather than price movement.
type ModelSensitivityRow struct {
	PlanID      string
	BestModelID string
	BestMedian  float64

	WorstModelID string
	WorstMedian  float64

	// SpreadPct is (best - worst) / |best| * 100, 0 when best is 0.
	SpreadPct float64
}

// TradeReferenceRow identifies one stored trade for replay verification.
type TradeReferenceRow struct {
	PlanID  string
	ModelID string
	TradeID string
}
