package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Intrabar policy: the tie-break rule for ambiguous same-candle
// stop-vs-target ordering.
type IntrabarPolicy string

// Intrabar policy constants. STOP_FIRST is the conservative default: when a
// candle touches both a stop and a target, the stop is assumed to have been
// touched first. CLOSE_ONLY checks stops against the candle close instead of
// intrabar extremes.
const (
	IntrabarStopFirst IntrabarPolicy = "STOP_FIRST"
	IntrabarCloseOnly IntrabarPolicy = "CLOSE_ONLY"
)

// Indicator quorum modes.
type IndicatorMode string

// Indicator mode constants.
const (
	IndicatorModeAny IndicatorMode = "ANY"
	IndicatorModeAll IndicatorMode = "ALL"
)

// Indicator rule kind constants.
const (
	RuleEMACross    = "EMA_CROSS"
	RuleRSICross    = "RSI_CROSS"
	RuleVolumeSpike = "VOLUME_SPIKE"
)

// RSI cross directions.
const (
	CrossBelow = "BELOW"
	CrossAbove = "ABOVE"
)

// Exit plan validation errors.
var (
	ErrEmptyLadder            = errors.New("ladder must have at least one rung")
	ErrRungTrigger            = errors.New("ladder rung needs exactly one of multiple or price")
	ErrRungFraction           = errors.New("ladder rung fraction must be in (0, 1]")
	ErrLadderFractionSum      = errors.New("ladder fractions must sum to at most 1")
	ErrLadderNotAscending     = errors.New("ladder rungs must be in ascending trigger order")
	ErrLadderMixedTriggers    = errors.New("ladder rungs must all use the same trigger variant")
	ErrTrailBps               = errors.New("trailing trail_bps must be positive")
	ErrActivationMultiple     = errors.New("trailing activation_multiple must be at least 1")
	ErrHardStopBps            = errors.New("trailing hard_stop_bps must be in (0, 10000)")
	ErrUnknownIntrabarPolicy  = errors.New("unknown intrabar policy")
	ErrUnknownIndicatorMode   = errors.New("unknown indicator mode")
	ErrEmptyIndicatorRules    = errors.New("indicator rules must not be empty")
	ErrUnknownIndicatorRule   = errors.New("unknown indicator rule kind")
	ErrIndicatorRuleParams    = errors.New("invalid indicator rule parameters")
	ErrMaxHold                = errors.New("max_hold_ms must be positive")
	ErrMinHoldCandles         = errors.New("min_hold_candles_for_indicator must be non-negative")
	ErrNoExitPolicyConfigured = errors.New("exit plan must enable at least one exit policy")
)

// LadderRung is one take-profit level. The trigger is either a multiple of
// the entry price or an absolute target price; Fraction is the share of the
// original entry size to close when the rung fires.
type LadderRung struct {
	Multiple *float64 `yaml:"multiple" json:"multiple,omitempty"`
	Price    *float64 `yaml:"price" json:"price,omitempty"`
	Fraction float64  `yaml:"fraction" json:"fraction"`
}

// TargetPrice resolves the rung's trigger price for a given entry price.
func (r LadderRung) TargetPrice(entryPrice float64) float64 {
	if r.Multiple != nil {
		return entryPrice * *r.Multiple
	}
	return *r.Price
}

// TrailingConfig configures the protective stop: an optional static hard stop
// from entry plus a trailing stop that arms once price reaches the activation
// multiple and then only ever tightens.
type TrailingConfig struct {
	TrailBps           float64        `yaml:"trail_bps" json:"trail_bps"`
	ActivationMultiple float64        `yaml:"activation_multiple" json:"activation_multiple"`
	HardStopBps        *float64       `yaml:"hard_stop_bps" json:"hard_stop_bps,omitempty"`
	IntrabarPolicy     IntrabarPolicy `yaml:"intrabar_policy" json:"intrabar_policy"`
}

// IndicatorRuleConfig configures one technical-indicator exit rule.
type IndicatorRuleConfig struct {
	Kind string `yaml:"kind" json:"kind"`

	// EMA_CROSS
	FastPeriod int `yaml:"fast_period" json:"fast_period,omitempty"`
	SlowPeriod int `yaml:"slow_period" json:"slow_period,omitempty"`

	// RSI_CROSS
	Period    int     `yaml:"period" json:"period,omitempty"`
	Level     float64 `yaml:"level" json:"level,omitempty"`
	Direction string  `yaml:"direction" json:"direction,omitempty"`

	// VOLUME_SPIKE
	Lookback int     `yaml:"lookback" json:"lookback,omitempty"`
	Multiple float64 `yaml:"multiple" json:"multiple,omitempty"`
}

// IndicatorConfig holds indicator exit rules and their quorum mode.
type IndicatorConfig struct {
	Mode  IndicatorMode         `yaml:"mode" json:"mode"`
	Rules []IndicatorRuleConfig `yaml:"rules" json:"rules"`
}

// ExitPlan is the declarative strategy config: three independently-enabled
// sub-policies plus two scalars. A nil sub-policy is disabled.
type ExitPlan struct {
	Ladder                     []LadderRung     `yaml:"ladder" json:"ladder,omitempty"`
	Trailing                   *TrailingConfig  `yaml:"trailing" json:"trailing,omitempty"`
	Indicator                  *IndicatorConfig `yaml:"indicator" json:"indicator,omitempty"`
	MaxHoldMs                  *int64           `yaml:"max_hold_ms" json:"max_hold_ms,omitempty"`
	MinHoldCandlesForIndicator int              `yaml:"min_hold_candles_for_indicator" json:"min_hold_candles_for_indicator"`
}

// Validate checks the full plan shape before any candle is processed.
func (p *ExitPlan) Validate() error {
	if len(p.Ladder) == 0 && p.Trailing == nil && p.Indicator == nil && p.MaxHoldMs == nil {
		return ErrNoExitPolicyConfigured
	}
	if err := p.validateLadder(); err != nil {
		return err
	}
	if p.Trailing != nil {
		if err := p.Trailing.validate(); err != nil {
			return err
		}
	}
	if p.Indicator != nil {
		if err := p.Indicator.validate(); err != nil {
			return err
		}
	}
	if p.MaxHoldMs != nil && *p.MaxHoldMs <= 0 {
		return fmt.Errorf("%w: %d", ErrMaxHold, *p.MaxHoldMs)
	}
	if p.MinHoldCandlesForIndicator < 0 {
		return fmt.Errorf("%w: %d", ErrMinHoldCandles, p.MinHoldCandlesForIndicator)
	}
	return nil
}

func (p *ExitPlan) validateLadder() error {
	if len(p.Ladder) == 0 {
		return nil
	}
	sum := 0.0
	useMultiple := p.Ladder[0].Multiple != nil
	prev := 0.0
	for i, r := range p.Ladder {
		if (r.Multiple == nil) == (r.Price == nil) {
			return fmt.Errorf("%w: rung %d", ErrRungTrigger, i)
		}
		if (r.Multiple != nil) != useMultiple {
			return fmt.Errorf("%w: rung %d", ErrLadderMixedTriggers, i)
		}
		if r.Fraction <= 0 || r.Fraction > 1 {
			return fmt.Errorf("%w: rung %d fraction=%v", ErrRungFraction, i, r.Fraction)
		}
		sum += r.Fraction

		trigger := 0.0
		if useMultiple {
			trigger = *r.Multiple
		} else {
			trigger = *r.Price
		}
		if trigger <= 0 {
			return fmt.Errorf("%w: rung %d trigger=%v", ErrRungTrigger, i, trigger)
		}
		if i > 0 && trigger <= prev {
			return fmt.Errorf("%w: rung %d", ErrLadderNotAscending, i)
		}
		prev = trigger
	}
	// Small epsilon absorbs accumulated float error in the fraction sum.
	if sum > 1+1e-9 {
		return fmt.Errorf("%w: sum=%v", ErrLadderFractionSum, sum)
	}
	return nil
}

func (t *TrailingConfig) validate() error {
	if t.TrailBps <= 0 {
		return fmt.Errorf("%w: %v", ErrTrailBps, t.TrailBps)
	}
	if t.ActivationMultiple < 1 {
		return fmt.Errorf("%w: %v", ErrActivationMultiple, t.ActivationMultiple)
	}
	if t.HardStopBps != nil && (*t.HardStopBps <= 0 || *t.HardStopBps >= 10000) {
		return fmt.Errorf("%w: %v", ErrHardStopBps, *t.HardStopBps)
	}
	switch t.IntrabarPolicy {
	case IntrabarStopFirst, IntrabarCloseOnly:
	case "":
		// Defaulted by the evaluator to STOP_FIRST.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntrabarPolicy, t.IntrabarPolicy)
	}
	return nil
}

func (c *IndicatorConfig) validate() error {
	switch c.Mode {
	case IndicatorModeAny, IndicatorModeAll:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIndicatorMode, c.Mode)
	}
	if len(c.Rules) == 0 {
		return ErrEmptyIndicatorRules
	}
	for i, r := range c.Rules {
		switch r.Kind {
		case RuleEMACross:
			if r.FastPeriod <= 0 || r.SlowPeriod <= 0 || r.FastPeriod >= r.SlowPeriod {
				return fmt.Errorf("%w: rule %d: fast_period=%d slow_period=%d",
					ErrIndicatorRuleParams, i, r.FastPeriod, r.SlowPeriod)
			}
		case RuleRSICross:
			if r.Period <= 0 || r.Level <= 0 || r.Level >= 100 {
				return fmt.Errorf("%w: rule %d: period=%d level=%v",
					ErrIndicatorRuleParams, i, r.Period, r.Level)
			}
			switch r.Direction {
			case CrossBelow, CrossAbove, "":
			default:
				return fmt.Errorf("%w: rule %d: direction=%q", ErrIndicatorRuleParams, i, r.Direction)
			}
		case RuleVolumeSpike:
			if r.Lookback <= 0 || r.Multiple <= 0 {
				return fmt.Errorf("%w: rule %d: lookback=%d multiple=%v",
					ErrIndicatorRuleParams, i, r.Lookback, r.Multiple)
			}
		default:
			return fmt.Errorf("%w: rule %d: %q", ErrUnknownIndicatorRule, i, r.Kind)
		}
	}
	return nil
}

// ID returns a human-readable plan identifier including parameters, used in
// deterministic trade IDs and reporting.
func (p *ExitPlan) ID() string {
	var parts []string
	if len(p.Ladder) > 0 {
		rungs := make([]string, len(p.Ladder))
		for i, r := range p.Ladder {
			if r.Multiple != nil {
				rungs[i] = fmt.Sprintf("x%g@%g", *r.Multiple, r.Fraction)
			} else {
				rungs[i] = fmt.Sprintf("p%g@%g", *r.Price, r.Fraction)
			}
		}
		parts = append(parts, "LADDER_"+strings.Join(rungs, "_"))
	}
	if t := p.Trailing; t != nil {
		s := fmt.Sprintf("TRAIL_%gbps_act%g", t.TrailBps, t.ActivationMultiple)
		if t.HardStopBps != nil {
			s += fmt.Sprintf("_hard%gbps", *t.HardStopBps)
		}
		if t.IntrabarPolicy != "" {
			s += "_" + string(t.IntrabarPolicy)
		}
		parts = append(parts, s)
	}
	if ind := p.Indicator; ind != nil {
		names := make([]string, len(ind.Rules))
		for i, r := range ind.Rules {
			names[i] = r.Kind
		}
		parts = append(parts, fmt.Sprintf("IND_%s_%s", ind.Mode, strings.Join(names, "+")))
	}
	if p.MaxHoldMs != nil {
		parts = append(parts, fmt.Sprintf("MAXHOLD_%dms", *p.MaxHoldMs))
	}
	if len(parts) == 0 {
		return "PLAN_EMPTY"
	}
	return strings.Join(parts, "__")
}
