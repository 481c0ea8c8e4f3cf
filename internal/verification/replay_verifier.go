package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/execmodel"
	"token-replay-lab/internal/replay"
	"token-replay-lab/internal/storage"
)

var (
	// ErrPlanNotRegistered indicates a stored trade references an exit plan
	// the verifier has no configuration for.
	ErrPlanNotRegistered = errors.New("exit plan not registered with verifier")

	// ErrModelNotRegistered indicates a stored trade references an execution
	// model the verifier has no configuration for.
	ErrModelNotRegistered = errors.New("execution model not registered with verifier")

	// ErrNoReplayTrade indicates the re-run produced no trade to compare.
	ErrNoReplayTrade = errors.New("replay produced no trade")
)

// Options configures a ReplayVerifier.
type Options struct {
	TradeStore  storage.TradeStore
	CandleStore storage.CandleStore
	Resolution  domain.Resolution

	// Plans and Models map the IDs recorded on stored trades back to the
	// configurations that produced them. Verification requires both sides:
	// a trade whose plan or model is missing cannot be replayed.
	Plans  map[string]*domain.ExitPlan
	Models map[string]execmodel.Model

	Seed          int64
	EntryQuantity float64
}

// ReplayVerifier verifies stored trades by re-running the simulation from the
// same candle history, plan, model, and seed, then comparing the results
// field by field.
type ReplayVerifier struct {
	trades  storage.TradeStore
	candles storage.CandleStore

	resolution domain.Resolution
	plans      map[string]*domain.ExitPlan
	models     map[string]execmodel.Model

	seed     int64
	quantity float64
}

var _ Verifier = (*ReplayVerifier)(nil)

// NewReplayVerifier creates a verifier from the given options.
func NewReplayVerifier(opts Options) *ReplayVerifier {
	return &ReplayVerifier{
		trades:     opts.TradeStore,
		candles:    opts.CandleStore,
		resolution: opts.Resolution,
		plans:      opts.Plans,
		models:     opts.Models,
		seed:       opts.Seed,
		quantity:   opts.EntryQuantity,
	}
}

// VerifyTrade re-runs the simulation behind a stored trade and compares the
// outcome against the stored record.
func (v *ReplayVerifier) VerifyTrade(ctx context.Context, tradeID string) (*VerificationResult, error) {
	stored, err := v.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("load trade %s: %w", tradeID, err)
	}

	replayed, err := v.replayTrade(ctx, stored)
	if err != nil {
		return nil, err
	}

	divergences := CompareTrades(stored, replayed)
	return &VerificationResult{
		TradeID:        stored.TradeID,
		Match:          len(divergences) == 0,
		Divergences:    divergences,
		StoredNetPnl:   stored.NetPnlPct,
		ReplayedNetPnl: replayed.NetPnlPct,
	}, nil
}

// VerifyAll verifies every stored trade across the registered plan/model
// combinations. Replay errors are recorded as divergences rather than
// aborting the batch, so one broken trade does not hide the rest.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	report := &VerificationReport{}

	for _, planID := range sortedKeys(v.plans) {
		for _, modelID := range sortedModelKeys(v.models) {
			trades, err := v.trades.GetByPlanModel(ctx, planID, modelID)
			if err != nil {
				return nil, fmt.Errorf("load trades for %s/%s: %w", planID, modelID, err)
			}

			for _, stored := range trades {
				report.TotalTrades++

				replayed, err := v.replayTrade(ctx, stored)
				if err != nil {
					report.DivergentTrades++
					report.Results = append(report.Results, VerificationResult{
						TradeID: stored.TradeID,
						Match:   false,
						Divergences: []FieldDivergence{{
							Field:    "Error",
							Expected: nil,
							Actual:   err.Error(),
						}},
						StoredNetPnl: stored.NetPnlPct,
					})
					continue
				}

				divergences := CompareTrades(stored, replayed)
				result := VerificationResult{
					TradeID:        stored.TradeID,
					Match:          len(divergences) == 0,
					Divergences:    divergences,
					StoredNetPnl:   stored.NetPnlPct,
					ReplayedNetPnl: replayed.NetPnlPct,
				}
				if result.Match {
					report.MatchedTrades++
				} else {
					report.DivergentTrades++
				}
				report.Results = append(report.Results, result)
			}
		}
	}

	return report, nil
}

// replayTrade re-executes the run that produced a stored trade. Entry timing
// is pinned to the stored entry timestamp, so the replay enters at the same
// candle regardless of the signal that originally fired.
func (v *ReplayVerifier) replayTrade(ctx context.Context, stored *domain.Trade) (*domain.Trade, error) {
	plan, ok := v.plans[stored.PlanID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotRegistered, stored.PlanID)
	}
	model, ok := v.models[stored.ModelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, stored.ModelID)
	}

	candles, err := v.candles.GetByToken(ctx, stored.Token, v.resolution)
	if err != nil {
		return nil, fmt.Errorf("load candles for %s: %w", stored.Token, err)
	}

	engine, err := replay.NewEngine(replay.Options{
		Token:         stored.Token,
		Candles:       candles,
		Plan:          plan,
		Model:         model,
		Signal:        replay.EnterAtTimestamp(stored.EntryTs),
		EntryQuantity: v.quantity,
		Seed:          v.seed,
		SkipFrames:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("build replay engine: %w", err)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay run: %w", err)
	}
	if len(result.Trades) == 0 {
		return nil, ErrNoReplayTrade
	}
	return &result.Trades[0], nil
}

func sortedKeys(m map[string]*domain.ExitPlan) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedModelKeys(m map[string]execmodel.Model) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
