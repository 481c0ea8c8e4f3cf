package exitplan

// TriggerKind distinguishes partial take-profit exits from terminal full
// exits.
type TriggerKind string

// Trigger kinds.
const (
	TriggerPartialExit TriggerKind = "PARTIAL_EXIT"
	TriggerFullExit    TriggerKind = "FULL_EXIT"
)

// Trigger is one exit instruction produced by the evaluator for the current
// candle. Partial triggers carry the fraction of the *original* entry size to
// close; full triggers close whatever remains open.
type Trigger struct {
	Kind      TriggerKind
	Reason    string
	Fraction  float64  // of original entry size; ignored for full exits
	Price     float64  // intended fill price
	RungIndex int      // ladder rung index, -1 otherwise
	Rules     []string // satisfying indicator rules, for auditability
}

// StopUpdate is a proposed protective-stop move. Initial marks the first stop
// ever set for the position (STOP_SET vs STOP_MOVED).
type StopUpdate struct {
	Price   float64
	Initial bool
}

// Evaluation is the evaluator's full output for one candle: an optional
// trailing arm transition, an optional stop tighten, and zero or more exit
// triggers in priority order.
type Evaluation struct {
	Arm        bool
	StopUpdate *StopUpdate
	Triggers   []Trigger
}

// Terminal reports whether the evaluation contains a full-exit trigger.
func (e Evaluation) Terminal() bool {
	for _, t := range e.Triggers {
		if t.Kind == TriggerFullExit {
			return true
		}
	}
	return false
}
