package domain

// EventType identifies a domain event in the replay log.
type EventType string

// Event type constants.
const (
	EventEntrySignalTrue EventType = "ENTRY_SIGNAL_TRUE"
	EventEntryFilled     EventType = "ENTRY_FILLED"
	EventTargetHit       EventType = "TARGET_HIT"
	EventPartialExit     EventType = "PARTIAL_EXIT"
	EventStopSet         EventType = "STOP_SET"
	EventStopMoved       EventType = "STOP_MOVED"
	EventStopHit         EventType = "STOP_HIT"
	EventExitFull        EventType = "EXIT_FULL"
	EventInfo            EventType = "INFO"
)

// EventData carries typed event payload fields. Only fields relevant to the
// event type are set; the struct stays plain data so the whole log is
// serializable and byte-reproducible.
type EventData struct {
	Reason      string   `json:"reason,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Quantity    float64  `json:"quantity,omitempty"`
	Fraction    float64  `json:"fraction,omitempty"`
	Fees        float64  `json:"fees,omitempty"`
	SlippageBps float64  `json:"slippage_bps,omitempty"`
	RungIndex   *int     `json:"rung_index,omitempty"`
	StopPrice   *float64 `json:"stop_price,omitempty"`
	Rules       []string `json:"rules,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// Event is one entry in the append-only replay log. Ordering is the total
// order of generation, which is also timestamp order.
type Event struct {
	TimestampMs int64     `json:"timestamp_ms"`
	CandleIndex int       `json:"candle_index"`
	Type        EventType `json:"type"`
	Data        EventData `json:"data"`
}
