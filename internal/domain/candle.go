package domain

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Candle errors
var (
	ErrEmptyCandleStream   = errors.New("candle stream is empty")
	ErrNonMonotonicCandles = errors.New("candle timestamps are not strictly increasing")
	ErrMalformedCandle     = errors.New("malformed candle")
	ErrInvalidTokenMint    = errors.New("invalid token mint address")
)

// Candle is a single OHLCV bucket. Candles are immutable; a stream holds one
// candle per time bucket with strictly increasing timestamps. The ingestion
// layer guarantees ordering; the replay core treats a violation as fatal.
type Candle struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
}

// Validate checks a single candle for internal consistency.
func (c Candle) Validate() error {
	if c.TimestampMs <= 0 {
		return fmt.Errorf("%w: non-positive timestamp %d", ErrMalformedCandle, c.TimestampMs)
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("%w: non-positive price at ts=%d", ErrMalformedCandle, c.TimestampMs)
	}
	if c.Volume < 0 {
		return fmt.Errorf("%w: negative volume at ts=%d", ErrMalformedCandle, c.TimestampMs)
	}
	if c.High < c.Low {
		return fmt.Errorf("%w: high < low at ts=%d", ErrMalformedCandle, c.TimestampMs)
	}
	if c.Open > c.High || c.Open < c.Low || c.Close > c.High || c.Close < c.Low {
		return fmt.Errorf("%w: open/close outside [low, high] at ts=%d", ErrMalformedCandle, c.TimestampMs)
	}
	return nil
}

// ValidateCandleStream checks an entire stream: every candle well-formed and
// timestamps strictly increasing, no duplicates.
func ValidateCandleStream(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptyCandleStream
	}
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candle %d: %w", i, err)
		}
		if i > 0 && c.TimestampMs <= candles[i-1].TimestampMs {
			return fmt.Errorf("%w: index %d (ts=%d after ts=%d)",
				ErrNonMonotonicCandles, i, c.TimestampMs, candles[i-1].TimestampMs)
		}
	}
	return nil
}

// ValidateTokenMint checks that a token identifier is a base58-encoded
// 32-byte mint address.
func ValidateTokenMint(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTokenMint)
	}
	decoded, err := base58.Decode(token)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidTokenMint, token, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("%w: %q decodes to %d bytes, want 32", ErrInvalidTokenMint, token, len(decoded))
	}
	return nil
}
