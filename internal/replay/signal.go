package replay

import "token-replay-lab/internal/domain"

// SignalSource decides when the run's single position is entered. The engine
// consults it only while the position is flat; a source that keeps returning
// true after a rejected fill causes the entry to be retried on the next
// candle.
type SignalSource interface {
	// Name identifies the source for logging and reporting.
	Name() string

	// ShouldEnter reports whether an entry should be attempted on this
	// candle. Fills happen at the candle close.
	ShouldEnter(c domain.Candle, candleIndex int) bool
}

// firstCandleSignal enters on the first candle of the stream.
type firstCandleSignal struct{}

// EnterAtFirstCandle returns a signal source that enters immediately, the
// standard choice for token-lifecycle replays where the stream starts at
// discovery time.
func EnterAtFirstCandle() SignalSource { return firstCandleSignal{} }

func (firstCandleSignal) Name() string { return "first_candle" }

func (firstCandleSignal) ShouldEnter(_ domain.Candle, candleIndex int) bool {
	return candleIndex == 0
}

// timestampSignal enters on the first candle at or after a timestamp.
type timestampSignal struct {
	ts int64
}

// EnterAtTimestamp returns a signal source that enters on the first candle
// whose timestamp is at or after ts (epoch milliseconds).
func EnterAtTimestamp(ts int64) SignalSource { return &timestampSignal{ts: ts} }

func (s *timestampSignal) Name() string { return "at_timestamp" }

func (s *timestampSignal) ShouldEnter(c domain.Candle, _ int) bool {
	return c.TimestampMs >= s.ts
}

var (
	_ SignalSource = firstCandleSignal{}
	_ SignalSource = (*timestampSignal)(nil)
)
