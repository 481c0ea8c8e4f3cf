// Package replay runs the deterministic candle-by-candle simulation loop:
// one token, one exit plan, one execution model, one position. Everything
// the run produces (trades, events, frames, summary) is derived solely
// from the inputs and the seed, so identical inputs reproduce identical
// output byte for byte.
package replay

import (
	"context"
	"fmt"
	"math/rand"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/execmodel"
	"token-replay-lab/internal/exitplan"
	"token-replay-lab/internal/position"
)

// Options configures one simulation run.
type Options struct {
	Token         string
	Candles       []domain.Candle
	Plan          *domain.ExitPlan
	Model         execmodel.Model // nil selects the perfect-fill default
	Signal        SignalSource    // nil enters at the first candle
	EntryQuantity float64         // base units to buy at entry
	Seed          int64

	// SkipFrames drops per-candle frames from the result. Batch sweeps set
	// this; frames exist for single-run inspection and UI replay.
	SkipFrames bool
}

// Engine executes one replay run. Engines are single-use: the compiled
// evaluator carries per-run indicator state.
type Engine struct {
	opts   Options
	eval   *exitplan.Evaluator
	model  execmodel.Model
	signal SignalSource
}

// NewEngine validates the options and compiles the exit plan. All input
// validation happens here; Run starts from a known-good configuration.
func NewEngine(opts Options) (*Engine, error) {
	if err := domain.ValidateTokenMint(opts.Token); err != nil {
		return nil, err
	}
	if err := domain.ValidateCandleStream(opts.Candles); err != nil {
		return nil, err
	}
	if opts.Plan == nil {
		return nil, ErrNilExitPlan
	}
	if opts.EntryQuantity <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrEntryQuantity, opts.EntryQuantity)
	}

	eval, err := exitplan.New(opts.Plan)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:   opts,
		eval:   eval,
		model:  opts.Model,
		signal: opts.Signal,
	}
	if e.model == nil {
		e.model = execmodel.Default()
	}
	if e.signal == nil {
		e.signal = EnterAtFirstCandle()
	}
	return e, nil
}

// Run executes the candle loop and returns the complete simulation result.
func (e *Engine) Run(ctx context.Context) (*domain.SimulationResult, error) {
	rng := rand.New(rand.NewSource(e.opts.Seed))
	machine := position.NewMachine(e.model, rng, e.opts.Token, e.eval.PlanID(), e.opts.Seed, e.eval.NumRungs())

	result := &domain.SimulationResult{
		Summary: domain.SimulationSummary{Token: e.opts.Token},
	}
	if !e.opts.SkipFrames {
		result.Frames = make([]domain.ReplayFrame, 0, len(e.opts.Candles))
	}

	for i, c := range e.opts.Candles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		events, err := e.step(machine, c, i, result)
		if err != nil {
			return nil, err
		}

		result.Events = append(result.Events, events...)
		if !e.opts.SkipFrames {
			result.Frames = append(result.Frames, domain.ReplayFrame{
				Seq:      i,
				Candle:   c,
				Events:   events,
				Position: machine.Position().Snapshot(),
			})
		}
	}

	if machine.State() == domain.PositionOpen {
		if err := e.closeAtEnd(machine, result); err != nil {
			return nil, err
		}
	}

	summarize(result)
	return result, nil
}

// step processes one candle: indicator observation, entry while flat,
// evaluation and trigger application while open. A closed position keeps
// producing frames but no further activity.
func (e *Engine) step(machine *position.Machine, c domain.Candle, i int, result *domain.SimulationResult) ([]domain.Event, error) {
	e.eval.Observe(c)
	machine.ObservePrice(c)

	switch machine.State() {
	case domain.PositionFlat:
		if !e.signal.ShouldEnter(c, i) {
			return nil, nil
		}
		events := []domain.Event{{
			TimestampMs: c.TimestampMs,
			CandleIndex: i,
			Type:        domain.EventEntrySignalTrue,
			Data:        domain.EventData{Message: e.signal.Name()},
		}}
		fillEvents, err := machine.OpenAttempt(c, i, e.opts.EntryQuantity, e.eval.InitialStop)
		if err != nil {
			return nil, err
		}
		return append(events, fillEvents...), nil

	case domain.PositionOpen:
		return e.applyEvaluation(machine, c, i, result)

	default: // Closed: terminal, frames continue
		return nil, nil
	}
}

// applyEvaluation feeds the evaluator's output through the state machine in
// the order it was produced.
func (e *Engine) applyEvaluation(machine *position.Machine, c domain.Candle, i int, result *domain.SimulationResult) ([]domain.Event, error) {
	ev := e.eval.Evaluate(machine.Position(), c, i)

	var events []domain.Event
	if ev.Arm {
		machine.Arm()
	}
	if ev.StopUpdate != nil {
		stopEvents, err := machine.ApplyStopUpdate(ev.StopUpdate, c, i)
		if err != nil {
			return nil, err
		}
		events = append(events, stopEvents...)
	}

	for _, tr := range ev.Triggers {
		if machine.State() != domain.PositionOpen {
			break
		}
		trEvents, err := machine.ApplyTrigger(tr, c, i)
		if err != nil {
			return nil, err
		}
		events = append(events, trEvents...)
	}

	if machine.State() == domain.PositionClosed {
		if err := finalize(machine, e.model.ID(), result); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// closeAtEnd force-closes a still-open position at the last candle's close.
// This keeps every run's accounting complete; the resulting trade carries the
// end_of_data exit reason.
func (e *Engine) closeAtEnd(machine *position.Machine, result *domain.SimulationResult) error {
	last := len(e.opts.Candles) - 1
	c := e.opts.Candles[last]

	events, err := machine.ApplyTrigger(exitplan.Trigger{
		Kind:      exitplan.TriggerFullExit,
		Reason:    domain.ExitReasonEndOfData,
		Price:     c.Close,
		RungIndex: -1,
	}, c, last)
	if err != nil {
		return err
	}
	if machine.State() != domain.PositionClosed {
		return fmt.Errorf("%w: final close rejected", ErrIncompleteReplay)
	}

	result.Events = append(result.Events, events...)
	if !e.opts.SkipFrames && len(result.Frames) > 0 {
		frame := &result.Frames[last]
		frame.Events = append(frame.Events, events...)
		frame.Position = machine.Position().Snapshot()
	}
	return finalize(machine, e.model.ID(), result)
}

func finalize(machine *position.Machine, modelID string, result *domain.SimulationResult) error {
	trade, err := machine.FinalizeTrade(modelID)
	if err != nil {
		return err
	}
	result.Trades = append(result.Trades, *trade)
	return nil
}

// summarize fills the result summary from the finalized trades. Win rate and
// average pnl are computed on net (after-fee) percentages.
func summarize(result *domain.SimulationResult) {
	result.Summary.Trades = len(result.Trades)
	if len(result.Trades) == 0 {
		return
	}

	wins := 0
	sum := 0.0
	for i := range result.Trades {
		if result.Trades[i].OutcomeClass() == domain.OutcomeClassWin {
			wins++
		}
		sum += result.Trades[i].NetPnlPct
	}
	result.Summary.WinRate = float64(wins) / float64(len(result.Trades))
	result.Summary.AvgPnlPct = sum / float64(len(result.Trades))
}
