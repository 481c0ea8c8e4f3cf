package execmodel

import (
	"token-replay-lab/internal/domain"
)

// Default returns the model used when no execution model is configured:
// a perfect fill with zero fees.
func Default() Model {
	return NewPerfectFill(0)
}

// FromConfig builds a Model from a validated config. Validation happens here,
// once, at construction: malformed config fails immediately with an error
// naming the offending field, never lazily on first use.
//
// Slippage resolution order for FIXED_SLIPPAGE: the config's fixed-type entry
// slippage when present, otherwise DefaultSlippageBps. Fee resolution: the
// config's taker fee when present, otherwise DefaultTakerFeeBps (zero for
// PERFECT_FILL).
func FromConfig(cfg *domain.ExecutionModelConfig) (Model, error) {
	if cfg == nil {
		return Default(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Model {
	case domain.ModelPerfectFill:
		fee := 0.0
		if cfg.Costs.TakerFeeBps != nil {
			fee = *cfg.Costs.TakerFeeBps
		}
		return NewPerfectFill(fee), nil

	default: // domain.ModelFixedSlippage, shape already validated
		slippage := DefaultSlippageBps
		if s := cfg.Slippage.Entry; s != nil && s.Kind == domain.SlippageFixed {
			slippage = s.Bps
		}
		fee := DefaultTakerFeeBps
		if cfg.Costs.TakerFeeBps != nil {
			fee = *cfg.Costs.TakerFeeBps
		}
		return NewFixedSlippage(slippage, fee), nil
	}
}
