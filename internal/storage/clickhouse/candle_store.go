package clickhouse

import (
	"context"
	"fmt"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles for a token/resolution pair. MergeTree does not
// enforce uniqueness, so existing timestamps are checked explicitly before
// the batch is sent.
func (s *CandleStore) InsertBulk(ctx context.Context, token string, resolution domain.Resolution, candles []domain.Candle) error {
	if token == "" || resolution == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, exists := seen[c.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.TimestampMs] = struct{}{}
	}

	exists, err := s.anyExists(ctx, token, resolution, candles)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			token, resolution, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			token, string(resolution), uint64(c.TimestampMs),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByToken retrieves all candles for a token/resolution pair, ordered by
// timestamp ASC.
func (s *CandleStore) GetByToken(ctx context.Context, token string, resolution domain.Resolution) ([]domain.Candle, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE token = ? AND resolution = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token, string(resolution))
	if err != nil {
		return nil, fmt.Errorf("query candles by token: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered
// by timestamp ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, token string, resolution domain.Resolution, start, end int64) ([]domain.Candle, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE token = ? AND resolution = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, token, string(resolution), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query candles by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// anyExists reports whether any of the batch timestamps already exist for
// the series.
func (s *CandleStore) anyExists(ctx context.Context, token string, resolution domain.Resolution, candles []domain.Candle) (bool, error) {
	timestamps := make([]uint64, len(candles))
	for i, c := range candles {
		timestamps[i] = uint64(c.TimestampMs)
	}

	query := `
		SELECT count() FROM candles
		WHERE token = ? AND resolution = ? AND timestamp_ms IN (?)
	`

	var count uint64
	row := s.conn.QueryRow(ctx, query, token, string(resolution), timestamps)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type candleRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCandles(rows candleRows) ([]domain.Candle, error) {
	var result []domain.Candle
	for rows.Next() {
		var (
			ts uint64
			c  domain.Candle
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.TimestampMs = int64(ts)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}
	return result, nil
}
