package execmodel

import (
	"fmt"
	"math/rand"

	"token-replay-lab/internal/domain"
)

// PerfectFill executes at the requested price with zero slippage and zero
// latency. Fees come from config, or zero when unset. This is the default
// model when no execution model is configured, preserving idealized behavior.
type PerfectFill struct {
	TakerFeeBps float64
}

// NewPerfectFill creates a PerfectFill with the given fee (bps of notional).
func NewPerfectFill(takerFeeBps float64) *PerfectFill {
	return &PerfectFill{TakerFeeBps: takerFeeBps}
}

// ID returns the model identifier including parameters.
func (m *PerfectFill) ID() string {
	return fmt.Sprintf("PERFECT_FILL_fee%gbps", m.TakerFeeBps)
}

// Execute fills the request as intended. rng is unused.
func (m *PerfectFill) Execute(req domain.TradeRequest, _ *rand.Rand) domain.ExecutionResult {
	if reason := checkRequest(req); reason != "" {
		return reject(reason)
	}

	return domain.ExecutionResult{
		Success:          true,
		ExecutedPrice:    req.Price,
		ExecutedQuantity: req.Quantity,
		SlippageBps:      0,
		Fees:             req.Price * req.Quantity * m.TakerFeeBps / 10000,
		LatencyMs:        0,
		PartialFill:      false,
	}
}

// Ensure PerfectFill implements Model
var _ Model = (*PerfectFill)(nil)
