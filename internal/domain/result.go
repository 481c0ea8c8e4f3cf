package domain

// ReplayFrame is a per-candle snapshot: the candle, the events generated
// while processing it, and the position state after processing. Frames allow
// UI/debug replay without re-running the simulation.
type ReplayFrame struct {
	Seq      int              `json:"seq"`
	Candle   Candle           `json:"candle"`
	Events   []Event          `json:"events,omitempty"`
	Position PositionSnapshot `json:"position"`
}

// SimulationSummary condenses a run's outcome.
type SimulationSummary struct {
	Token     string  `json:"token"`
	Trades    int     `json:"trades"`
	WinRate   float64 `json:"win_rate"`
	AvgPnlPct float64 `json:"avg_pnl_pct"`
}

// SimulationResult is the sole output of a run. All fields are plain
// serializable data, safe to persist or transmit.
type SimulationResult struct {
	Summary SimulationSummary `json:"summary"`
	Trades  []Trade           `json:"trades"`
	Events  []Event           `json:"events"`
	Frames  []ReplayFrame     `json:"frames"`
}
