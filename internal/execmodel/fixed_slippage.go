package execmodel

import (
	"fmt"
	"math/rand"

	"token-replay-lab/internal/domain"
)

// FixedSlippage applies a constant basis-point price adjustment, unfavorably
// for the requester in both directions: a buyer pays price*(1+bps/10000), a
// seller receives price/(1+bps/10000). Fees are charged on executed notional.
type FixedSlippage struct {
	SlippageBps float64
	TakerFeeBps float64
}

// NewFixedSlippage creates a FixedSlippage model.
func NewFixedSlippage(slippageBps, takerFeeBps float64) *FixedSlippage {
	return &FixedSlippage{
		SlippageBps: slippageBps,
		TakerFeeBps: takerFeeBps,
	}
}

// ID returns the model identifier including parameters.
func (m *FixedSlippage) ID() string {
	return fmt.Sprintf("FIXED_SLIPPAGE_%gbps_fee%gbps", m.SlippageBps, m.TakerFeeBps)
}

// Execute applies slippage against the requested price. rng is unused; the
// adjustment is constant.
func (m *FixedSlippage) Execute(req domain.TradeRequest, _ *rand.Rand) domain.ExecutionResult {
	if reason := checkRequest(req); reason != "" {
		return reject(reason)
	}

	mult := 1 + m.SlippageBps/10000
	var executed float64
	switch req.Side {
	case domain.SideBuy:
		executed = req.Price * mult
	default: // sell
		executed = req.Price / mult
	}

	return domain.ExecutionResult{
		Success:          true,
		ExecutedPrice:    executed,
		ExecutedQuantity: req.Quantity,
		SlippageBps:      m.SlippageBps,
		Fees:             executed * req.Quantity * m.TakerFeeBps / 10000,
		LatencyMs:        0,
		PartialFill:      false,
	}
}

// Ensure FixedSlippage implements Model
var _ Model = (*FixedSlippage)(nil)
