// Package position owns the mutable position of one simulation run and
// applies evaluator triggers to it. Every transition routes its implied trade
// request through the execution model first; state only changes on a
// successful fill. Invariant violations are returned as errors, never
// clamped, so evaluator bugs surface during testing.
package position

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/execmodel"
	"token-replay-lab/internal/exitplan"
	"token-replay-lab/internal/idhash"
)

// State machine errors.
var (
	ErrInvariantViolation = errors.New("position invariant violation")
	ErrNotOpen            = errors.New("position is not open")
	ErrNotFlat            = errors.New("position is not flat")
	ErrNotClosed          = errors.New("position is not closed")
)

// sizeEpsilon absorbs float error when deciding whether a position has fully
// closed.
const sizeEpsilon = 1e-12

// Machine drives Flat → Open → Closed for a single position.
type Machine struct {
	pos   domain.Position
	model execmodel.Model
	rng   *rand.Rand

	token  string
	planID string
	seed   int64

	// Exit accumulation for the finalized trade.
	exitNotional float64
	exitQuantity float64
	feesPaid     float64
	exitReason   string
	exitTs       int64
}

// NewMachine creates a flat position machine. numRungs sizes the ladder
// fire-once bookkeeping.
func NewMachine(model execmodel.Model, rng *rand.Rand, token, planID string, seed int64, numRungs int) *Machine {
	return &Machine{
		pos: domain.Position{
			State:       domain.PositionFlat,
			LadderFired: make([]bool, numRungs),
		},
		model:  model,
		rng:    rng,
		token:  token,
		planID: planID,
		seed:   seed,
	}
}

// Position exposes the current position for the evaluator and for frame
// snapshots. Callers must not mutate it.
func (m *Machine) Position() *domain.Position { return &m.pos }

// State returns the current lifecycle state.
func (m *Machine) State() domain.PositionState { return m.pos.State }

// ObservePrice updates the peak favorable price while open. Called once per
// candle before evaluation.
func (m *Machine) ObservePrice(c domain.Candle) {
	if m.pos.State == domain.PositionOpen && c.High > m.pos.PeakPrice {
		m.pos.PeakPrice = c.High
	}
}

// OpenAttempt routes an entry buy at the candle close through the execution
// model. On success the position opens and ENTRY_FILLED is emitted, plus
// STOP_SET when stopAt derives a static hard stop from the executed entry
// price. On rejection the position stays flat and an INFO event records the
// attempt.
func (m *Machine) OpenAttempt(c domain.Candle, candleIndex int, quantity float64, stopAt func(entryPrice float64) *float64) ([]domain.Event, error) {
	if m.pos.State != domain.PositionFlat {
		return nil, fmt.Errorf("%w: state=%s", ErrNotFlat, m.pos.State)
	}

	req := domain.TradeRequest{Side: domain.SideBuy, Price: c.Close, Quantity: quantity}
	res := m.model.Execute(req, m.rng)
	if !res.Success {
		return []domain.Event{infoEvent(c, candleIndex, "entry rejected: "+res.Reason)}, nil
	}

	m.pos.State = domain.PositionOpen
	m.pos.SizeFraction = 1
	m.pos.EntryQuantity = res.ExecutedQuantity
	m.pos.AvgEntryPrice = res.ExecutedPrice
	m.pos.PeakPrice = res.ExecutedPrice
	m.pos.EntryTimestampMs = c.TimestampMs
	m.pos.EntryCandleIndex = candleIndex
	m.feesPaid += res.Fees

	events := []domain.Event{{
		TimestampMs: c.TimestampMs,
		CandleIndex: candleIndex,
		Type:        domain.EventEntryFilled,
		Data: domain.EventData{
			Price:       res.ExecutedPrice,
			Quantity:    res.ExecutedQuantity,
			Fees:        res.Fees,
			SlippageBps: res.SlippageBps,
		},
	}}

	if stopAt != nil {
		if initial := stopAt(res.ExecutedPrice); initial != nil {
			stop := *initial
			m.pos.StopPrice = &stop
			events = append(events, domain.Event{
				TimestampMs: c.TimestampMs,
				CandleIndex: candleIndex,
				Type:        domain.EventStopSet,
				Data:        domain.EventData{StopPrice: &stop},
			})
		}
	}

	return events, nil
}

// Arm records trailing-stop activation.
func (m *Machine) Arm() {
	m.pos.TrailingArmed = true
}

// ApplyStopUpdate tightens the protective stop. A proposal that would loosen
// the stop is an invariant violation.
func (m *Machine) ApplyStopUpdate(u *exitplan.StopUpdate, c domain.Candle, candleIndex int) ([]domain.Event, error) {
	if m.pos.State != domain.PositionOpen {
		return nil, fmt.Errorf("%w: state=%s", ErrNotOpen, m.pos.State)
	}
	if m.pos.StopPrice != nil && u.Price < *m.pos.StopPrice {
		return nil, fmt.Errorf("%w: stop would loosen from %v to %v",
			ErrInvariantViolation, *m.pos.StopPrice, u.Price)
	}

	stop := u.Price
	m.pos.StopPrice = &stop

	evType := domain.EventStopMoved
	if u.Initial {
		evType = domain.EventStopSet
	}
	return []domain.Event{{
		TimestampMs: c.TimestampMs,
		CandleIndex: candleIndex,
		Type:        evType,
		Data:        domain.EventData{StopPrice: &stop},
	}}, nil
}

// ApplyTrigger routes one evaluator trigger through the execution model and
// applies the resulting fill.
func (m *Machine) ApplyTrigger(tr exitplan.Trigger, c domain.Candle, candleIndex int) ([]domain.Event, error) {
	if m.pos.State != domain.PositionOpen {
		return nil, fmt.Errorf("%w: state=%s", ErrNotOpen, m.pos.State)
	}

	switch tr.Kind {
	case exitplan.TriggerPartialExit:
		return m.applyPartial(tr, c, candleIndex)
	default:
		return m.applyFull(tr, c, candleIndex)
	}
}

// applyPartial fires a ladder rung. The rung is marked fired regardless of
// fill outcome so a rejecting execution model cannot cause infinite re-fire
// attempts.
func (m *Machine) applyPartial(tr exitplan.Trigger, c domain.Candle, candleIndex int) ([]domain.Event, error) {
	if tr.Fraction > m.pos.SizeFraction+sizeEpsilon {
		return nil, fmt.Errorf("%w: partial exit fraction %v exceeds open fraction %v",
			ErrInvariantViolation, tr.Fraction, m.pos.SizeFraction)
	}
	if tr.RungIndex >= 0 && tr.RungIndex < len(m.pos.LadderFired) {
		if m.pos.LadderFired[tr.RungIndex] {
			return nil, fmt.Errorf("%w: ladder rung %d fired twice", ErrInvariantViolation, tr.RungIndex)
		}
		m.pos.LadderFired[tr.RungIndex] = true
	}

	rung := tr.RungIndex
	events := []domain.Event{{
		TimestampMs: c.TimestampMs,
		CandleIndex: candleIndex,
		Type:        domain.EventTargetHit,
		Data:        domain.EventData{Price: tr.Price, RungIndex: &rung},
	}}

	req := domain.TradeRequest{
		Side:     domain.SideSell,
		Price:    tr.Price,
		Quantity: tr.Fraction * m.pos.EntryQuantity,
	}
	res := m.model.Execute(req, m.rng)
	if !res.Success {
		return append(events, infoEvent(c, candleIndex,
			fmt.Sprintf("partial exit rejected at rung %d: %s", tr.RungIndex, res.Reason))), nil
	}

	m.pos.SizeFraction -= tr.Fraction
	if m.pos.SizeFraction < -sizeEpsilon {
		return nil, fmt.Errorf("%w: size fraction went negative: %v",
			ErrInvariantViolation, m.pos.SizeFraction)
	}
	m.accumulateExit(res, tr.Reason, c.TimestampMs)

	events = append(events, domain.Event{
		TimestampMs: c.TimestampMs,
		CandleIndex: candleIndex,
		Type:        domain.EventPartialExit,
		Data: domain.EventData{
			Reason:      tr.Reason,
			Price:       res.ExecutedPrice,
			Quantity:    res.ExecutedQuantity,
			Fraction:    tr.Fraction,
			Fees:        res.Fees,
			SlippageBps: res.SlippageBps,
			RungIndex:   &rung,
		},
	})

	// The final rung can take the position to zero; that closes it without a
	// separate synthetic fill.
	if m.pos.SizeFraction <= sizeEpsilon {
		m.pos.SizeFraction = 0
		m.pos.State = domain.PositionClosed
	}
	return events, nil
}

// applyFull closes the remaining open fraction. On rejection the state is
// unchanged; the evaluator re-offers the trigger next candle if conditions
// still hold.
func (m *Machine) applyFull(tr exitplan.Trigger, c domain.Candle, candleIndex int) ([]domain.Event, error) {
	req := domain.TradeRequest{
		Side:     domain.SideSell,
		Price:    tr.Price,
		Quantity: m.pos.SizeFraction * m.pos.EntryQuantity,
	}
	res := m.model.Execute(req, m.rng)
	if !res.Success {
		return []domain.Event{infoEvent(c, candleIndex,
			fmt.Sprintf("full exit (%s) rejected: %s", tr.Reason, res.Reason))}, nil
	}

	m.accumulateExit(res, tr.Reason, c.TimestampMs)
	m.pos.SizeFraction = 0
	m.pos.State = domain.PositionClosed

	var events []domain.Event
	if tr.Reason == domain.ExitReasonHardStop || tr.Reason == domain.ExitReasonTrailingStop {
		stop := tr.Price
		events = append(events, domain.Event{
			TimestampMs: c.TimestampMs,
			CandleIndex: candleIndex,
			Type:        domain.EventStopHit,
			Data:        domain.EventData{Reason: tr.Reason, StopPrice: &stop},
		})
	}
	events = append(events, domain.Event{
		TimestampMs: c.TimestampMs,
		CandleIndex: candleIndex,
		Type:        domain.EventExitFull,
		Data: domain.EventData{
			Reason:      tr.Reason,
			Price:       res.ExecutedPrice,
			Quantity:    res.ExecutedQuantity,
			Fees:        res.Fees,
			SlippageBps: res.SlippageBps,
			Rules:       tr.Rules,
		},
	})
	return events, nil
}

func (m *Machine) accumulateExit(res domain.ExecutionResult, reason string, ts int64) {
	m.exitNotional += res.ExecutedPrice * res.ExecutedQuantity
	m.exitQuantity += res.ExecutedQuantity
	m.feesPaid += res.Fees
	m.exitReason = reason
	m.exitTs = ts
}

// ExitedQuantity returns the total quantity filled by exits so far. Summed
// across a position's lifetime it equals the entry quantity.
func (m *Machine) ExitedQuantity() float64 { return m.exitQuantity }

// FinalizeTrade builds the trade record once the position is closed.
func (m *Machine) FinalizeTrade(modelID string) (*domain.Trade, error) {
	if m.pos.State != domain.PositionClosed {
		return nil, fmt.Errorf("%w: state=%s", ErrNotClosed, m.pos.State)
	}
	if diff := math.Abs(m.exitQuantity - m.pos.EntryQuantity); diff > 1e-9 {
		return nil, fmt.Errorf("%w: exit quantity %v does not conserve entry quantity %v",
			ErrInvariantViolation, m.exitQuantity, m.pos.EntryQuantity)
	}

	exitPrice := m.exitNotional / m.exitQuantity
	entryNotional := m.pos.AvgEntryPrice * m.pos.EntryQuantity
	pnlPct := (exitPrice - m.pos.AvgEntryPrice) / m.pos.AvgEntryPrice * 100
	netPnlPct := pnlPct - m.feesPaid/entryNotional*100

	return &domain.Trade{
		TradeID:        idhash.ComputeTradeID(m.token, m.planID, modelID, m.seed, m.pos.EntryTimestampMs),
		Token:          m.token,
		PlanID:         m.planID,
		ModelID:        modelID,
		EntryTs:        m.pos.EntryTimestampMs,
		ExitTs:         m.exitTs,
		EntryPrice:     m.pos.AvgEntryPrice,
		ExitPrice:      exitPrice,
		PnlPct:         pnlPct,
		NetPnlPct:      netPnlPct,
		FeesPaid:       m.feesPaid,
		ExitReason:     m.exitReason,
		SizePctInitial: 1,
		HoldDurationMs: m.exitTs - m.pos.EntryTimestampMs,
	}, nil
}

func infoEvent(c domain.Candle, candleIndex int, msg string) domain.Event {
	return domain.Event{
		TimestampMs: c.TimestampMs,
		CandleIndex: candleIndex,
		Type:        domain.EventInfo,
		Data:        domain.EventData{Message: msg},
	}
}
