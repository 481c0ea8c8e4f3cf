package indicator

import (
	"fmt"

	"token-replay-lab/internal/domain"
)

// Rule is one technical-indicator exit condition. Observe is called exactly
// once per candle in stream order; Signal reports whether the condition fired
// on the last observed candle.
type Rule interface {
	// Name identifies the rule (includes parameters) for event auditability.
	Name() string

	// Observe folds one candle into the rule's series.
	Observe(c domain.Candle)

	// Signal reports whether the rule fired on the last observed candle.
	Signal() bool
}

// CompileRules builds rule instances from a validated indicator config.
func CompileRules(cfg *domain.IndicatorConfig) []Rule {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		switch rc.Kind {
		case domain.RuleEMACross:
			rules = append(rules, NewEMACrossRule(rc.FastPeriod, rc.SlowPeriod))
		case domain.RuleRSICross:
			dir := rc.Direction
			if dir == "" {
				dir = domain.CrossBelow
			}
			rules = append(rules, NewRSICrossRule(rc.Period, rc.Level, dir))
		case domain.RuleVolumeSpike:
			rules = append(rules, NewVolumeSpikeRule(rc.Lookback, rc.Multiple))
		}
	}
	return rules
}

// EMACrossRule fires when the fast EMA crosses below the slow EMA, the
// standard momentum-loss exit for a long position.
type EMACrossRule struct {
	fast, slow   *EMA
	fastPeriod   int
	slowPeriod   int
	prevFastOver bool
	havePrev     bool
	fired        bool
}

// NewEMACrossRule creates an EMA cross rule.
func NewEMACrossRule(fastPeriod, slowPeriod int) *EMACrossRule {
	return &EMACrossRule{
		fast:       NewEMA(fastPeriod),
		slow:       NewEMA(slowPeriod),
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// Name identifies the rule.
func (r *EMACrossRule) Name() string {
	return fmt.Sprintf("EMA_CROSS_%d_%d", r.fastPeriod, r.slowPeriod)
}

// Observe folds one candle into both series.
func (r *EMACrossRule) Observe(c domain.Candle) {
	r.fast.Update(c.Close)
	r.slow.Update(c.Close)
	r.fired = false

	if !r.slow.Ready() {
		r.havePrev = false
		return
	}

	fastOver := r.fast.Value() >= r.slow.Value()
	if r.havePrev && r.prevFastOver && !fastOver {
		r.fired = true
	}
	r.prevFastOver = fastOver
	r.havePrev = true
}

// Signal reports a cross-down on the last candle.
func (r *EMACrossRule) Signal() bool { return r.fired }

// RSICrossRule fires when RSI crosses the configured level in the configured
// direction (BELOW: falling through the level, ABOVE: rising through it).
type RSICrossRule struct {
	rsi       *RSI
	period    int
	level     float64
	direction string
	prev      float64
	havePrev  bool
	fired     bool
}

// NewRSICrossRule creates an RSI cross rule.
func NewRSICrossRule(period int, level float64, direction string) *RSICrossRule {
	return &RSICrossRule{
		rsi:       NewRSI(period),
		period:    period,
		level:     level,
		direction: direction,
	}
}

// Name identifies the rule.
func (r *RSICrossRule) Name() string {
	return fmt.Sprintf("RSI_CROSS_%d_%g_%s", r.period, r.level, r.direction)
}

// Observe folds one candle into the series.
func (r *RSICrossRule) Observe(c domain.Candle) {
	r.rsi.Update(c.Close)
	r.fired = false

	if !r.rsi.Ready() {
		r.havePrev = false
		return
	}

	cur := r.rsi.Value()
	if r.havePrev {
		switch r.direction {
		case domain.CrossAbove:
			r.fired = r.prev <= r.level && cur > r.level
		default: // BELOW
			r.fired = r.prev >= r.level && cur < r.level
		}
	}
	r.prev = cur
	r.havePrev = true
}

// Signal reports a level cross on the last candle.
func (r *RSICrossRule) Signal() bool { return r.fired }

// VolumeSpikeRule fires when a candle's volume reaches the configured
// multiple of the rolling mean over the preceding lookback candles.
type VolumeSpikeRule struct {
	window   *VolumeWindow
	lookback int
	multiple float64
	fired    bool
}

// NewVolumeSpikeRule creates a volume spike rule.
func NewVolumeSpikeRule(lookback int, multiple float64) *VolumeSpikeRule {
	return &VolumeSpikeRule{
		window:   NewVolumeWindow(lookback),
		lookback: lookback,
		multiple: multiple,
	}
}

// Name identifies the rule.
func (r *VolumeSpikeRule) Name() string {
	return fmt.Sprintf("VOLUME_SPIKE_%d_%g", r.lookback, r.multiple)
}

// Observe compares the candle's volume against the preceding window, then
// pushes it into the history.
func (r *VolumeSpikeRule) Observe(c domain.Candle) {
	r.fired = false
	if r.window.Ready() {
		mean := r.window.Mean()
		if mean > 0 && c.Volume >= r.multiple*mean {
			r.fired = true
		}
	}
	r.window.Push(c.Volume)
}

// Signal reports a spike on the last candle.
func (r *VolumeSpikeRule) Signal() bool { return r.fired }
