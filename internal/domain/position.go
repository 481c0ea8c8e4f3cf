package domain

// PositionState is the lifecycle state of the single position a run owns.
type PositionState string

// Position lifecycle: Flat → Open → Closed (terminal).
const (
	PositionFlat   PositionState = "FLAT"
	PositionOpen   PositionState = "OPEN"
	PositionClosed PositionState = "CLOSED"
)

// Position is the mutable position owned by one simulation run. It is mutated
// exclusively by the position state machine and destroyed when the run ends.
type Position struct {
	State         PositionState
	SizeFraction  float64 // open share of the original entry size, in [0, 1]
	EntryQuantity float64 // base units filled at entry
	AvgEntryPrice float64 // executed entry price
	StopPrice     *float64
	TrailingArmed bool
	PeakPrice     float64 // highest favorable price seen while open
	LadderFired   []bool  // rung index → fired this lifetime

	EntryTimestampMs int64
	EntryCandleIndex int
}

// PositionSnapshot is the read-only view of a position embedded in replay
// frames.
type PositionSnapshot struct {
	State         PositionState `json:"state"`
	SizeFraction  float64       `json:"size_fraction"`
	AvgEntryPrice float64       `json:"avg_entry_price,omitempty"`
	StopPrice     *float64      `json:"stop_price,omitempty"`
	LadderFired   []int         `json:"ladder_fired,omitempty"` // fired rung indices, ascending
}

// Snapshot captures the position for a replay frame.
func (p *Position) Snapshot() PositionSnapshot {
	s := PositionSnapshot{
		State:         p.State,
		SizeFraction:  p.SizeFraction,
		AvgEntryPrice: p.AvgEntryPrice,
	}
	if p.StopPrice != nil {
		v := *p.StopPrice
		s.StopPrice = &v
	}
	for i, fired := range p.LadderFired {
		if fired {
			s.LadderFired = append(s.LadderFired, i)
		}
	}
	return s
}
