// Package exitplan evaluates an exit plan against the open position, one
// candle at a time. Evaluation carries no side effects: the evaluator reads
// position state and emits triggers and stop updates for the state machine
// to apply.
package exitplan

import (
	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/indicator"
)

// Evaluator holds the compiled exit plan for one run. Indicator rule state is
// per-run; Observe must be called once per candle in stream order, including
// while the position is flat, so the series have history before entry.
type Evaluator struct {
	plan   *domain.ExitPlan
	rules  []indicator.Rule
	policy domain.IntrabarPolicy
}

// New compiles a validated exit plan into an evaluator.
func New(plan *domain.ExitPlan) (*Evaluator, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		plan:   plan,
		policy: domain.IntrabarStopFirst,
	}
	if plan.Trailing != nil && plan.Trailing.IntrabarPolicy != "" {
		e.policy = plan.Trailing.IntrabarPolicy
	}
	if plan.Indicator != nil {
		e.rules = indicator.CompileRules(plan.Indicator)
	}
	return e, nil
}

// PlanID returns the compiled plan's identifier.
func (e *Evaluator) PlanID() string { return e.plan.ID() }

// NumRungs returns the ladder length, used to size position bookkeeping.
func (e *Evaluator) NumRungs() int { return len(e.plan.Ladder) }

// InitialStop returns the static stop price implied by hard_stop_bps for a
// given entry price, or nil when no hard stop is configured.
func (e *Evaluator) InitialStop(entryPrice float64) *float64 {
	if e.plan.Trailing == nil || e.plan.Trailing.HardStopBps == nil {
		return nil
	}
	stop := entryPrice * (1 - *e.plan.Trailing.HardStopBps/10000)
	return &stop
}

// Observe advances indicator state by one candle.
func (e *Evaluator) Observe(c domain.Candle) {
	for _, r := range e.rules {
		r.Observe(c)
	}
}

// stopBreachPrice is the price a stop is checked against under the active
// intrabar policy: the candle low under STOP_FIRST (pessimistic path
// assumption for a long), the close under CLOSE_ONLY.
func (e *Evaluator) stopBreachPrice(c domain.Candle) float64 {
	if e.policy == domain.IntrabarCloseOnly {
		return c.Close
	}
	return c.Low
}

// Evaluate runs the fixed-priority rule order for one candle while the
// position is open:
//
//  1. breach of the existing stop (stop-first intrabar tie-break)
//  2. ladder targets, ascending
//  3. trailing-stop arm/tighten, then breach of the updated stop
//  4. indicator exits, gated by the minimum hold
//  5. max-hold timeout
//
// Once a full exit is produced the remaining rules are skipped for this
// candle.
func (e *Evaluator) Evaluate(pos *domain.Position, c domain.Candle, candleIndex int) Evaluation {
	var ev Evaluation

	// 1. Existing stop breach. Conservative ordering: we cannot know whether
	// stop or target was touched first within the candle.
	if pos.StopPrice != nil && e.stopBreachPrice(c) <= *pos.StopPrice {
		ev.Triggers = append(ev.Triggers, Trigger{
			Kind:      TriggerFullExit,
			Reason:    e.stopReason(pos),
			Price:     *pos.StopPrice,
			RungIndex: -1,
		})
		return ev
	}

	// 2. Ladder targets. Fractions are of the original entry size; each rung
	// fires at most once per position lifetime.
	for i, rung := range e.plan.Ladder {
		if i < len(pos.LadderFired) && pos.LadderFired[i] {
			continue
		}
		target := rung.TargetPrice(pos.AvgEntryPrice)
		if target >= c.Low && target <= c.High {
			ev.Triggers = append(ev.Triggers, Trigger{
				Kind:      TriggerPartialExit,
				Reason:    domain.ExitReasonLadderTarget,
				Fraction:  rung.Fraction,
				Price:     target,
				RungIndex: i,
			})
		}
	}

	// 3. Trailing stop: arm at the activation multiple, tighten from the peak
	// favorable price, then check the updated stop.
	if t := e.plan.Trailing; t != nil {
		armed := pos.TrailingArmed
		if !armed && c.High >= pos.AvgEntryPrice*t.ActivationMultiple {
			armed = true
			ev.Arm = true
		}

		effective := pos.StopPrice
		if armed {
			candidate := pos.PeakPrice * (1 - t.TrailBps/10000)
			if effective == nil || candidate > *effective {
				ev.StopUpdate = &StopUpdate{
					Price:   candidate,
					Initial: effective == nil,
				}
				effective = &candidate
			}
		}

		if effective != nil && e.stopBreachPrice(c) <= *effective {
			reason := domain.ExitReasonHardStop
			if armed {
				reason = domain.ExitReasonTrailingStop
			}
			ev.Triggers = append(ev.Triggers, Trigger{
				Kind:      TriggerFullExit,
				Reason:    reason,
				Price:     *effective,
				RungIndex: -1,
			})
			return ev
		}
	}

	// 4. Indicator exits, suppressed for the first
	// min_hold_candles_for_indicator candles after entry.
	if ind := e.plan.Indicator; ind != nil {
		elapsedCandles := candleIndex - pos.EntryCandleIndex
		if elapsedCandles >= e.plan.MinHoldCandlesForIndicator {
			if satisfied, ok := e.indicatorQuorum(ind.Mode); ok {
				ev.Triggers = append(ev.Triggers, Trigger{
					Kind:      TriggerFullExit,
					Reason:    domain.ExitReasonIndicatorExit,
					Price:     c.Close,
					RungIndex: -1,
					Rules:     satisfied,
				})
				return ev
			}
		}
	}

	// 5. Max-hold timeout.
	if e.plan.MaxHoldMs != nil && c.TimestampMs-pos.EntryTimestampMs >= *e.plan.MaxHoldMs {
		ev.Triggers = append(ev.Triggers, Trigger{
			Kind:      TriggerFullExit,
			Reason:    domain.ExitReasonMaxHoldExceeded,
			Price:     c.Close,
			RungIndex: -1,
		})
	}

	return ev
}

// stopReason attributes a stop breach: once trailing has armed, the stop
// belongs to the trailing policy (it can only have tightened from the static
// hard stop).
func (e *Evaluator) stopReason(pos *domain.Position) string {
	if pos.TrailingArmed {
		return domain.ExitReasonTrailingStop
	}
	return domain.ExitReasonHardStop
}

// indicatorQuorum checks the rule quorum for the last observed candle and
// returns the satisfying rule names.
func (e *Evaluator) indicatorQuorum(mode domain.IndicatorMode) ([]string, bool) {
	var satisfied []string
	for _, r := range e.rules {
		if r.Signal() {
			satisfied = append(satisfied, r.Name())
		}
	}

	switch mode {
	case domain.IndicatorModeAll:
		if len(satisfied) == len(e.rules) && len(e.rules) > 0 {
			return satisfied, true
		}
	default: // ANY
		if len(satisfied) > 0 {
			return satisfied, true
		}
	}
	return nil, false
}
