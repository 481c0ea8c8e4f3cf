package domain

import (
	"errors"
	"fmt"
)

// Side of a trade request.
type Side string

// Side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Execution model type constants.
const (
	ModelPerfectFill   = "PERFECT_FILL"
	ModelFixedSlippage = "FIXED_SLIPPAGE"
)

// Slippage kind constants. Only FIXED is fully implemented; the remaining
// kinds are recognized by validation and rejected as unsupported.
const (
	SlippageFixed  = "FIXED"
	SlippageLinear = "LINEAR"
	SlippageSqrt   = "SQRT"
	SlippageVolume = "VOLUME"
)

// Execution model config errors.
var (
	ErrUnknownModel            = errors.New("unknown execution model")
	ErrUnknownSlippageKind     = errors.New("unknown slippage kind")
	ErrUnsupportedSlippageKind = errors.New("unsupported slippage kind")
	ErrNegativeSlippageBps     = errors.New("slippage bps must be non-negative")
	ErrNegativeTakerFeeBps     = errors.New("taker fee bps must be non-negative")
)

// TradeRequest is the intended trade before execution-model adjustment.
type TradeRequest struct {
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// ExecutionResult is the realized outcome of an attempted trade. Success=false
// signals the fill could not occur; callers must not mutate position state on
// failure.
type ExecutionResult struct {
	Success          bool    `json:"success"`
	ExecutedPrice    float64 `json:"executed_price"`
	ExecutedQuantity float64 `json:"executed_quantity"`
	SlippageBps      float64 `json:"slippage_bps"`
	Fees             float64 `json:"fees"`
	LatencyMs        int64   `json:"latency_ms"`
	PartialFill      bool    `json:"partial_fill"`
	Reason           string  `json:"reason,omitempty"` // set when Success=false
}

// SlippageSpec describes one slippage variant.
type SlippageSpec struct {
	Kind string  `yaml:"kind" json:"kind"`
	Bps  float64 `yaml:"bps" json:"bps"`
}

// SlippageSection holds per-leg slippage settings. Only the entry variant is
// configurable; exits reuse it symmetrically.
type SlippageSection struct {
	Entry *SlippageSpec `yaml:"entry" json:"entry,omitempty"`
}

// CostsSection holds the fee structure.
type CostsSection struct {
	TakerFeeBps *float64 `yaml:"taker_fee_bps" json:"taker_fee_bps,omitempty"`
}

// ExecutionModelConfig describes the cost structure of an execution model.
// Validated once before use; an invalid shape fails closed.
type ExecutionModelConfig struct {
	Model    string          `yaml:"model" json:"model"`
	Slippage SlippageSection `yaml:"slippage" json:"slippage"`
	Costs    CostsSection    `yaml:"costs" json:"costs"`
}

// Validate checks the config shape. Errors name the offending field.
func (c *ExecutionModelConfig) Validate() error {
	switch c.Model {
	case ModelPerfectFill, ModelFixedSlippage:
	default:
		return fmt.Errorf("%w: model=%q", ErrUnknownModel, c.Model)
	}

	if s := c.Slippage.Entry; s != nil {
		switch s.Kind {
		case SlippageFixed:
		case SlippageLinear, SlippageSqrt, SlippageVolume:
			return fmt.Errorf("%w: slippage.entry.kind=%q", ErrUnsupportedSlippageKind, s.Kind)
		default:
			return fmt.Errorf("%w: slippage.entry.kind=%q", ErrUnknownSlippageKind, s.Kind)
		}
		if s.Bps < 0 {
			return fmt.Errorf("%w: slippage.entry.bps=%v", ErrNegativeSlippageBps, s.Bps)
		}
	}

	if c.Costs.TakerFeeBps != nil && *c.Costs.TakerFeeBps < 0 {
		return fmt.Errorf("%w: costs.taker_fee_bps=%v", ErrNegativeTakerFeeBps, *c.Costs.TakerFeeBps)
	}

	return nil
}
