package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/user/tradedesk/backend/internal/models"
)

const demoTradeColumns = `id, email, symbol, market_direction, amount, duration, profit,
	settle_at, settled, outcome, created_at`

func scanDemoTrade(row pgx.Row) (*models.DemoTrade, error) {
	t := &models.DemoTrade{}
	err := row.Scan(&t.ID, &t.Email, &t.Symbol, &t.MarketDirection, &t.Amount, &t.Duration,
		&t.Profit, &t.SettleAt, &t.Settled, &t.Outcome, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateDemoTrade persists a trade along with its settlement due time,
// so scheduled settlements survive a process restart.
func CreateDemoTrade(ctx context.Context, t *models.DemoTrade) error {
	query := `INSERT INTO demo_trades (email, symbol, market_direction, amount, duration, profit, settle_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id, created_at`

	err := DB.QueryRow(ctx, query,
		t.Email, t.Symbol, t.MarketDirection, t.Amount, t.Duration, t.Profit, t.SettleAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating demo trade for %s: %w", t.Email, err)
	}
	return nil
}

// ListDemoTradesByEmail returns a user's demo trades, newest first.
func ListDemoTradesByEmail(ctx context.Context, email string) ([]*models.DemoTrade, error) {
	rows, err := DB.Query(ctx,
		`SELECT `+demoTradeColumns+` FROM demo_trades WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("querying demo trades for %s: %w", email, err)
	}
	defer rows.Close()

	trades := make([]*models.DemoTrade, 0)
	for rows.Next() {
		t, err := scanDemoTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning demo trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DueDemoTrades returns unsettled trades whose due time has passed.
func DueDemoTrades(ctx context.Context, now time.Time, limit int) ([]*models.DemoTrade, error) {
	rows, err := DB.Query(ctx,
		`SELECT `+demoTradeColumns+` FROM demo_trades
		 WHERE settled = FALSE AND settle_at <= $1
		 ORDER BY settle_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due demo trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*models.DemoTrade, 0)
	for rows.Next() {
		t, err := scanDemoTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due demo trade row: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SettleDemoTrade claims a trade and applies its balance delta in one
// transaction. The settled = FALSE guard makes the claim a
// compare-and-swap: whoever loses the race settles nothing, so each
// trade settles exactly once. A missing account leaves the trade
// claimed but moves no balance. Returns whether this call won the claim.
func SettleDemoTrade(ctx context.Context, id uuid.UUID, email, outcome string, delta decimal.Decimal) (bool, error) {
	tx, err := DB.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning demo settlement: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE demo_trades SET settled = TRUE, outcome = $1 WHERE id = $2 AND settled = FALSE`,
		outcome, id)
	if err != nil {
		return false, fmt.Errorf("claiming demo trade %s: %w", id, err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil // already settled elsewhere
	}

	// No floor on demo: a loss may push the balance negative. A deleted
	// account is a no-op, not an error.
	if _, err := tx.Exec(ctx, `UPDATE users SET demo = demo + $1 WHERE email = $2`, delta, email); err != nil {
		return false, fmt.Errorf("applying demo settlement for %s: %w", email, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing demo settlement: %w", err)
	}
	return true, nil
}
