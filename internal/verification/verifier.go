// Package verification re-runs simulations against stored trades and reports
// field-level divergences. A clean report is the determinism guarantee made
// checkable: same inputs, same trades, byte for byte within float tolerance.
package verification

import (
	"context"
	"math"

	"token-replay-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID        string
	Match          bool
	Divergences    []FieldDivergence
	StoredNetPnl   float64
	ReplayedNetPnl float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	Results         []VerificationResult
}

// Verifier re-executes simulations and compares against stored trades.
type Verifier interface {
	// VerifyTrade verifies a single trade by ID.
	VerifyTrade(ctx context.Context, tradeID string) (*VerificationResult, error)

	// VerifyAll verifies all trades for the registered plan/model combinations.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareTrades compares a stored trade against its replayed counterpart.
// Identifiers, timestamps, and the exit reason must match exactly; prices and
// pnl within FloatTolerance.
func CompareTrades(stored, replayed *domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence

	exact := []struct {
		field            string
		stored, replayed interface{}
	}{
		{"TradeID", stored.TradeID, replayed.TradeID},
		{"Token", stored.Token, replayed.Token},
		{"PlanID", stored.PlanID, replayed.PlanID},
		{"ModelID", stored.ModelID, replayed.ModelID},
		{"EntryTs", stored.EntryTs, replayed.EntryTs},
		{"ExitTs", stored.ExitTs, replayed.ExitTs},
		{"ExitReason", stored.ExitReason, replayed.ExitReason},
		{"HoldDurationMs", stored.HoldDurationMs, replayed.HoldDurationMs},
	}
	for _, c := range exact {
		if c.stored != c.replayed {
			divergences = append(divergences, FieldDivergence{
				Field:    c.field,
				Expected: c.stored,
				Actual:   c.replayed,
			})
		}
	}

	approximate := []struct {
		field            string
		stored, replayed float64
	}{
		{"EntryPrice", stored.EntryPrice, replayed.EntryPrice},
		{"ExitPrice", stored.ExitPrice, replayed.ExitPrice},
		{"PnlPct", stored.PnlPct, replayed.PnlPct},
		{"NetPnlPct", stored.NetPnlPct, replayed.NetPnlPct},
		{"FeesPaid", stored.FeesPaid, replayed.FeesPaid},
		{"SizePctInitial", stored.SizePctInitial, replayed.SizePctInitial},
	}
	for _, c := range approximate {
		if !floatEquals(c.stored, c.replayed) {
			divergences = append(divergences, FieldDivergence{
				Field:    c.field,
				Expected: c.stored,
				Actual:   c.replayed,
			})
		}
	}

	return divergences
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
