package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		trade_id, token, plan_id, model_id,
		entry_ts, exit_ts, entry_price, exit_price,
		pnl_pct, net_pnl_pct, fees_paid, exit_reason,
		size_pct_initial, hold_duration_ms
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12,
		$13, $14
	)
`

const selectTradeColumns = `
	trade_id, token, plan_id, model_id,
	entry_ts, exit_ts, entry_price, exit_price,
	pnl_pct, net_pnl_pct, fees_paid, exit_reason,
	size_pct_initial, hold_duration_ms
`

func tradeArgs(t *domain.Trade) []any {
	return []any{
		t.TradeID, t.Token, t.PlanID, t.ModelID,
		t.EntryTs, t.ExitTs, t.EntryPrice, t.ExitPrice,
		t.PnlPct, t.NetPnlPct, t.FeesPaid, t.ExitReason,
		t.SizePctInitial, t.HoldDurationMs,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + selectTradeColumns + ` FROM trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByToken retrieves all trades for a token, ordered by entry_ts ASC.
func (s *TradeStore) GetByToken(ctx context.Context, token string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE token = $1
		ORDER BY entry_ts ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("query trades by token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByPlanModel retrieves all trades for a (plan, execution model)
// combination, ordered by entry_ts ASC.
func (s *TradeStore) GetByPlanModel(ctx context.Context, planID, modelID string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE plan_id = $1 AND model_id = $2
		ORDER BY entry_ts ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, planID, modelID)
	if err != nil {
		return nil, fmt.Errorf("query trades by plan/model: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	err := row.Scan(
		&t.TradeID, &t.Token, &t.PlanID, &t.ModelID,
		&t.EntryTs, &t.ExitTs, &t.EntryPrice, &t.ExitPrice,
		&t.PnlPct, &t.NetPnlPct, &t.FeesPaid, &t.ExitReason,
		&t.SizePctInitial, &t.HoldDurationMs,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var result []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}
