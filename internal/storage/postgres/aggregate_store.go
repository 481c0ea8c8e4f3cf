package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-replay-lab/internal/domain"
	"token-replay-lab/internal/storage"
)

// AggregateStore implements storage.AggregateStore using PostgreSQL.
type AggregateStore struct {
	pool *Pool
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(pool *Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

const selectAggregateColumns = `
	plan_id, model_id,
	total_trades, total_tokens, wins, losses, win_rate, token_win_rate,
	pnl_mean, pnl_median, pnl_p10, pnl_p25, pnl_p75, pnl_p90,
	pnl_min, pnl_max, pnl_stddev,
	max_drawdown, max_consecutive_losses
`

// Insert adds a new aggregate. Returns ErrDuplicateKey if (plan_id, model_id) exists.
func (s *AggregateStore) Insert(ctx context.Context, a *domain.StrategyAggregate) error {
	query := `
		INSERT INTO strategy_aggregates (
			plan_id, model_id,
			total_trades, total_tokens, wins, losses, win_rate, token_win_rate,
			pnl_mean, pnl_median, pnl_p10, pnl_p25, pnl_p75, pnl_p90,
			pnl_min, pnl_max, pnl_stddev,
			max_drawdown, max_consecutive_losses
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17,
			$18, $19
		)
	`

	_, err := s.pool.Exec(ctx, query,
		a.PlanID, a.ModelID,
		a.TotalTrades, a.TotalTokens, a.Wins, a.Losses, a.WinRate, a.TokenWinRate,
		a.PnlMean, a.PnlMedian, a.PnlP10, a.PnlP25, a.PnlP75, a.PnlP90,
		a.PnlMin, a.PnlMax, a.PnlStddev,
		a.MaxDrawdown, a.MaxConsecutiveLosses,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert aggregate: %w", err)
	}
	return nil
}

// GetByKey retrieves an aggregate by its composite key.
func (s *AggregateStore) GetByKey(ctx context.Context, planID, modelID string) (*domain.StrategyAggregate, error) {
	query := `
		SELECT ` + selectAggregateColumns + `
		FROM strategy_aggregates
		WHERE plan_id = $1 AND model_id = $2
	`

	row := s.pool.QueryRow(ctx, query, planID, modelID)
	a, err := scanAggregate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get aggregate by key: %w", err)
	}
	return a, nil
}

// GetAll retrieves all aggregates, ordered by (plan_id, model_id).
func (s *AggregateStore) GetAll(ctx context.Context) ([]*domain.StrategyAggregate, error) {
	query := `
		SELECT ` + selectAggregateColumns + `
		FROM strategy_aggregates
		ORDER BY plan_id ASC, model_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}
	defer rows.Close()

	var result []*domain.StrategyAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return result, nil
}

func scanAggregate(row pgx.Row) (*domain.StrategyAggregate, error) {
	var a domain.StrategyAggregate
	err := row.Scan(
		&a.PlanID, &a.ModelID,
		&a.TotalTrades, &a.TotalTokens, &a.Wins, &a.Losses, &a.WinRate, &a.TokenWinRate,
		&a.PnlMean, &a.PnlMedian, &a.PnlP10, &a.PnlP25, &a.PnlP75, &a.PnlP90,
		&a.PnlMin, &a.PnlMax, &a.PnlStddev,
		&a.MaxDrawdown, &a.MaxConsecutiveLosses,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
