// Package execmodel turns trade intents into executed fills. Models are a
// closed set dispatched through a validating factory; every variant accepts
// the run's seeded RNG so swapping in a stochastic slippage model later
// cannot break the determinism contract at the call site.
package execmodel

import (
	"math/rand"

	"token-replay-lab/internal/domain"
)

// Defaults applied when the config leaves slippage or fees unset.
const (
	DefaultSlippageBps = 10.0 // 0.1%
	DefaultTakerFeeBps = 30.0 // 0.3%
)

// Model executes trade requests. Implementations must never panic on bad
// input: a request with non-positive price or quantity yields Success=false.
type Model interface {
	// Execute applies the model's cost structure to a trade intent.
	// Deterministic models ignore rng but must accept it.
	Execute(req domain.TradeRequest, rng *rand.Rand) domain.ExecutionResult

	// ID returns the model identifier (includes parameters).
	ID() string
}

// reject builds a failed result for an unfillable request.
func reject(reason string) domain.ExecutionResult {
	return domain.ExecutionResult{
		Success: false,
		Reason:  reason,
	}
}

// checkRequest returns a non-empty rejection reason for unfillable requests.
func checkRequest(req domain.TradeRequest) string {
	if req.Quantity <= 0 {
		return "non-positive quantity"
	}
	if req.Price <= 0 {
		return "non-positive price"
	}
	return ""
}
