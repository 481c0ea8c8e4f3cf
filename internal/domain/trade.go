package domain

// Exit reason codes, as recorded on trades and terminal events.
const (
	ExitReasonHardStop        = "hard_stop"
	ExitReasonTrailingStop    = "trailing_stop"
	ExitReasonLadderTarget    = "ladder_target"
	ExitReasonIndicatorExit   = "indicator_exit"
	ExitReasonMaxHoldExceeded = "max_hold_exceeded"
	ExitReasonEndOfData       = "end_of_data"
)

// Outcome class constants.
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)

// Trade is the finalized record created when a position fully closes. The
// exit price is the weighted average across all partial fills; PnlPct is
// computed from executed entry vs. weighted exit prices.
type Trade struct {
	TradeID string `json:"trade_id"` // deterministic hash
	Token   string `json:"token"`
	PlanID  string `json:"plan_id"`
	ModelID string `json:"model_id"`

	EntryTs    int64   `json:"entry_ts"`
	ExitTs     int64   `json:"exit_ts"`
	EntryPrice float64 `json:"entry_price"` // executed
	ExitPrice  float64 `json:"exit_price"`  // quantity-weighted across fills

	PnlPct         float64 `json:"pnl_pct"`     // gross, from executed prices
	NetPnlPct      float64 `json:"net_pnl_pct"` // after fees
	FeesPaid       float64 `json:"fees_paid"`
	ExitReason     string  `json:"exit_reason"`
	SizePctInitial float64 `json:"size_pct_initial"`
	HoldDurationMs int64   `json:"hold_duration_ms"`
}

// OutcomeClass classifies the trade by net result.
func (t *Trade) OutcomeClass() string {
	if t.NetPnlPct > 0 {
		return OutcomeClassWin
	}
	return OutcomeClassLoss
}

// StrategyAggregate holds cross-run aggregate metrics for one
// (plan, execution model) combination.
type StrategyAggregate struct {
	PlanID  string
	ModelID string

	TotalTrades  int
	TotalTokens  int // unique token count
	Wins         int
	Losses       int
	WinRate      float64 // wins / total trades
	TokenWinRate float64 // tokens with positive mean net pnl / total tokens

	PnlMean   float64
	PnlMedian float64
	PnlP10    float64
	PnlP25    float64
	PnlP75    float64
	PnlP90    float64
	PnlMin    float64
	PnlMax    float64
	PnlStddev float64

	MaxDrawdown          float64 // worst peak-to-trough of cumulative net pnl
	MaxConsecutiveLosses int
}
