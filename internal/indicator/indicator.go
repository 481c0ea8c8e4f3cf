// Package indicator provides the technical-indicator series and exit rules
// consumed by the exit-plan evaluator. All state is per-run and updated in
// candle order, keeping evaluation deterministic.
package indicator

// EMA is an exponential moving average over candle closes.
type EMA struct {
	period int
	alpha  float64
	value  float64
	seen   int
}

// NewEMA creates an EMA with the standard smoothing alpha = 2/(period+1).
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Update folds one close price into the series.
func (e *EMA) Update(price float64) {
	if e.seen == 0 {
		e.value = price
	} else {
		e.value = price*e.alpha + e.value*(1-e.alpha)
	}
	e.seen++
}

// Value returns the current EMA value.
func (e *EMA) Value() float64 { return e.value }

// Ready reports whether the series has absorbed a full period of samples.
func (e *EMA) Ready() bool { return e.seen >= e.period }

// RSI is Wilder's relative strength index over candle closes.
type RSI struct {
	period    int
	avgGain   float64
	avgLoss   float64
	prevClose float64
	seen      int
}

// NewRSI creates an RSI with the given period.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Update folds one close price into the series.
func (r *RSI) Update(close float64) {
	if r.seen == 0 {
		r.prevClose = close
		r.seen++
		return
	}

	change := close - r.prevClose
	r.prevClose = close

	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	n := float64(r.period)
	if r.seen <= r.period {
		// Accumulation phase: simple average of the first period deltas.
		k := float64(r.seen)
		r.avgGain = (r.avgGain*(k-1) + gain) / k
		r.avgLoss = (r.avgLoss*(k-1) + loss) / k
	} else {
		// Wilder's smoothing.
		r.avgGain = (r.avgGain*(n-1) + gain) / n
		r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	}
	r.seen++
}

// Value returns the current RSI in [0, 100].
func (r *RSI) Value() float64 {
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// Ready reports whether a full period of deltas has been absorbed.
func (r *RSI) Ready() bool { return r.seen > r.period }

// VolumeWindow tracks a rolling mean of the last N volumes, excluding the
// most recent sample so a spike is measured against its own history.
type VolumeWindow struct {
	lookback int
	values   []float64
	sum      float64
}

// NewVolumeWindow creates a window over the given lookback length.
func NewVolumeWindow(lookback int) *VolumeWindow {
	return &VolumeWindow{
		lookback: lookback,
		values:   make([]float64, 0, lookback),
	}
}

// Push appends a volume sample to the history.
func (w *VolumeWindow) Push(volume float64) {
	w.values = append(w.values, volume)
	w.sum += volume
	if len(w.values) > w.lookback {
		w.sum -= w.values[0]
		w.values = w.values[1:]
	}
}

// Mean returns the rolling mean of the window.
func (w *VolumeWindow) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return w.sum / float64(len(w.values))
}

// Ready reports whether the window is full.
func (w *VolumeWindow) Ready() bool { return len(w.values) >= w.lookback }
