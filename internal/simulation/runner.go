// Package simulation wires configs, stores, and the replay engine into
// executable runs. The runner owns everything around a run (loading candles,
// persisting trades, metrics); the engine itself stays pure.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-replay-lab/internal/config"
	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/execmodel"
	"token-replay-lab/internal/metrics"
	"token-replay-lab/internal/observability"
	"token-replay-lab/internal/replay"
	"token-replay-lab/internal/storage"
)

// ErrNoCandles indicates the candle store has no history for a token.
var ErrNoCandles = errors.New("no candle history for token")

// Runner executes configured simulation runs against the candle store.
type Runner struct {
	candleStore    storage.CandleStore
	tradeStore     storage.TradeStore     // nil disables trade persistence
	aggregateStore storage.AggregateStore // nil disables aggregate persistence
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	CandleStore    storage.CandleStore
	TradeStore     storage.TradeStore
	AggregateStore storage.AggregateStore
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		candleStore:    opts.CandleStore,
		tradeStore:     opts.TradeStore,
		aggregateStore: opts.AggregateStore,
	}
}

// BatchResult is the outcome of a multi-token batch run.
type BatchResult struct {
	Results   []*domain.SimulationResult
	Aggregate *domain.StrategyAggregate
}

// Run executes the config against a single token:
//  1. Build the execution model from config
//  2. Load candle history for the token
//  3. Run the replay engine
//  4. Persist the produced trades
func (r *Runner) Run(ctx context.Context, cfg *config.RunConfig, token string) (*domain.SimulationResult, error) {
	start := time.Now()
	result, err := r.run(ctx, cfg, token)
	if err != nil {
		observability.RecordSimulation("error", time.Since(start).Seconds())
		return nil, err
	}

	observability.RecordSimulation("ok", time.Since(start).Seconds())
	observability.RecordTrades(len(result.Trades))
	observability.RecordFillRejections(countFillRejections(result.Events))
	return result, nil
}

func (r *Runner) run(ctx context.Context, cfg *config.RunConfig, token string) (*domain.SimulationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model, err := execmodel.FromConfig(cfg.ExecutionModel)
	if err != nil {
		return nil, err
	}

	candles, err := r.candleStore.GetByToken(ctx, token, cfg.ParsedResolution())
	if err != nil {
		return nil, fmt.Errorf("load candles for %s: %w", token, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCandles, token)
	}

	engine, err := replay.NewEngine(replay.Options{
		Token:         token,
		Candles:       candles,
		Plan:          cfg.ExitPlan,
		Model:         model,
		Signal:        signalFromConfig(cfg.Entry),
		EntryQuantity: cfg.EntryQuantity,
		Seed:          cfg.Seed,
		SkipFrames:    cfg.SkipFrames,
	})
	if err != nil {
		return nil, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}
	observability.RecordCandlesReplayed(len(candles))

	if r.tradeStore != nil && len(result.Trades) > 0 {
		trades := make([]*domain.Trade, len(result.Trades))
		for i := range result.Trades {
			trades[i] = &result.Trades[i]
		}
		if err := r.tradeStore.InsertBulk(ctx, trades); err != nil {
			return nil, fmt.Errorf("persist trades for %s: %w", token, err)
		}
	}

	return result, nil
}

// RunBatch executes the config sequentially across all its tokens and
// aggregates the produced trades into one strategy aggregate. Token order
// follows the config, keeping batch output deterministic.
func (r *Runner) RunBatch(ctx context.Context, cfg *config.RunConfig) (*BatchResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	var trades []*domain.Trade

	for _, token := range cfg.TokenList() {
		result, err := r.Run(ctx, cfg, token)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", token, err)
		}
		batch.Results = append(batch.Results, result)
		for i := range result.Trades {
			trades = append(trades, &result.Trades[i])
		}
	}

	if len(trades) > 0 {
		// Every trade in a batch carries the same plan and model.
		agg := metrics.ComputeFromTrades(trades[0].PlanID, trades[0].ModelID, trades)
		batch.Aggregate = agg
		observability.DefaultMetrics.AggregatesComputed.Inc()

		if r.aggregateStore != nil {
			if err := r.aggregateStore.Insert(ctx, agg); err != nil {
				return nil, fmt.Errorf("persist aggregate %s/%s: %w", agg.PlanID, agg.ModelID, err)
			}
		}
	}

	return batch, nil
}

// signalFromConfig maps the entry section to an engine signal source.
func signalFromConfig(entry config.EntryConfig) replay.SignalSource {
	if entry.Mode == config.EntryAtTimestamp {
		return replay.EnterAtTimestamp(entry.TimestampMs)
	}
	return replay.EnterAtFirstCandle()
}

// countFillRejections counts rejected-fill log entries. The state machine
// emits INFO events only for execution rejections.
func countFillRejections(events []domain.Event) int {
	n := 0
	for _, e := range events {
		if e.Type == domain.EventInfo {
			n++
		}
	}
	return n
}
