package feed

import (
	"context"
	"log"
	"os"
	"time"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/observability"
	"token-replay-lab/internal/storage"
)

// Ingester drains candle frames into the candle store. Frames are validated
// and buffered per series; a series only ever advances forward in time, so
// stale or duplicate timestamps are dropped before they can poison a stream.
type Ingester struct {
	store storage.CandleStore

	batchSize     int
	flushInterval time.Duration

	buffers map[string][]domain.Candle // keyed by token|resolution
	series  map[string]seriesState
	logger  *log.Logger
}

type seriesState struct {
	token      string
	resolution domain.Resolution
	lastTs     int64
}

// IngesterOptions contains configuration for creating an Ingester.
type IngesterOptions struct {
	Store         storage.CandleStore
	BatchSize     int           // default 100
	FlushInterval time.Duration // default 5s
}

// NewIngester creates a candle ingester.
func NewIngester(opts IngesterOptions) *Ingester {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	return &Ingester{
		store:         opts.Store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffers:       make(map[string][]domain.Candle),
		series:        make(map[string]seriesState),
		logger:        log.New(os.Stderr, "[ingest] ", log.LstdFlags),
	}
}

// Run consumes frames until the channel closes or the context is cancelled,
// then flushes whatever is buffered. Store errors are fatal: an ingester that
// cannot persist has no reason to keep reading.
func (i *Ingester) Run(ctx context.Context, frames <-chan CandleMessage) error {
	ticker := time.NewTicker(i.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := i.flushAll(context.Background()); err != nil {
				return err
			}
			return ctx.Err()

		case <-ticker.C:
			if err := i.flushAll(ctx); err != nil {
				return err
			}

		case msg, ok := <-frames:
			if !ok {
				return i.flushAll(context.Background())
			}
			if err := i.ingest(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// ingest validates one frame and buffers it, flushing its series when the
// batch fills.
func (i *Ingester) ingest(ctx context.Context, msg CandleMessage) error {
	if err := msg.Resolution.Validate(); err != nil {
		i.logger.Printf("dropped frame for %s: %v", msg.Token, err)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("validation").Inc()
		return nil
	}
	if err := domain.ValidateTokenMint(msg.Token); err != nil {
		i.logger.Printf("dropped frame: %v", err)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("validation").Inc()
		return nil
	}
	if err := msg.Candle.Validate(); err != nil {
		i.logger.Printf("dropped candle for %s: %v", msg.Token, err)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("validation").Inc()
		return nil
	}

	key := msg.Token + "|" + string(msg.Resolution)
	state, seen := i.series[key]
	if seen && msg.Candle.TimestampMs <= state.lastTs {
		i.logger.Printf("dropped stale candle for %s: ts=%d last=%d",
			msg.Token, msg.Candle.TimestampMs, state.lastTs)
		observability.DefaultMetrics.FeedErrors.WithLabelValues("stale").Inc()
		return nil
	}

	i.series[key] = seriesState{
		token:      msg.Token,
		resolution: msg.Resolution,
		lastTs:     msg.Candle.TimestampMs,
	}
	i.buffers[key] = append(i.buffers[key], msg.Candle)

	if len(i.buffers[key]) >= i.batchSize {
		return i.flush(ctx, key)
	}
	return nil
}

// flush persists one series buffer.
func (i *Ingester) flush(ctx context.Context, key string) error {
	buf := i.buffers[key]
	if len(buf) == 0 {
		return nil
	}
	state := i.series[key]

	if err := i.store.InsertBulk(ctx, state.token, state.resolution, buf); err != nil {
		return err
	}

	observability.RecordCandlesIngested(len(buf), float64(time.Now().Unix()))
	i.buffers[key] = nil
	return nil
}

// flushAll persists every non-empty buffer.
func (i *Ingester) flushAll(ctx context.Context) error {
	for key := range i.buffers {
		if err := i.flush(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
