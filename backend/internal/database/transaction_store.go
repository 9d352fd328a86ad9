package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/user/tradedesk/backend/internal/ledger"
	"github.com/user/tradedesk/backend/internal/models"
)

const transactionColumns = `id, type, status, amount, user_id, user_email, user_name,
	converted_amount, coin_name, network, address, trade_package, trade_interest, created_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	t := &models.Transaction{}
	var (
		userID        *uuid.UUID
		tradePackage  *string
		tradeInterest *decimal.Decimal
	)
	err := row.Scan(
		&t.ID, &t.Type, &t.Status, &t.Amount, &userID, &t.User.Email, &t.User.Name,
		&t.Wallet.ConvertedAmount, &t.Wallet.CoinName, &t.Wallet.Network, &t.Wallet.Address,
		&tradePackage, &tradeInterest, &t.Date,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if userID != nil {
		t.User.ID = *userID
	}
	if tradePackage != nil || tradeInterest != nil {
		t.Trade = &models.TradeData{}
		if tradePackage != nil {
			t.Trade.Package = *tradePackage
		}
		if tradeInterest != nil {
			t.Trade.Interest = *tradeInterest
		}
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateTransaction inserts a new pending transaction. The partial
// unique index rejects a second pending deposit or withdrawal for the
// same account, closing the check-then-insert race; that violation is
// reported as ErrPendingExists.
func CreateTransaction(ctx context.Context, t *models.Transaction) error {
	var userID *uuid.UUID
	if t.User.ID != uuid.Nil {
		userID = &t.User.ID
	}
	var tradePackage *string
	var tradeInterest *decimal.Decimal
	if t.Trade != nil {
		tradePackage = &t.Trade.Package
		tradeInterest = &t.Trade.Interest
	}

	query := `INSERT INTO transactions
		(type, status, amount, user_id, user_email, user_name,
		 converted_amount, coin_name, network, address, trade_package, trade_interest)
		VALUES ($1, 'pending', $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, status, created_at`

	err := DB.QueryRow(ctx, query,
		t.Type, t.Amount, userID, t.User.Email, t.User.Name,
		t.Wallet.ConvertedAmount, t.Wallet.CoinName, t.Wallet.Network, t.Wallet.Address,
		tradePackage, tradeInterest,
	).Scan(&t.ID, &t.Status, &t.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPendingExists
		}
		return fmt.Errorf("creating %s transaction: %w", t.Type, err)
	}
	return nil
}

// FindPendingByUserAndType returns the pending transaction of the given
// type for an account, or nil when there is none. Used as the friendly
// pre-check before the unique index gets the last word.
func FindPendingByUserAndType(ctx context.Context, userID uuid.UUID, txType string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
			  FROM transactions WHERE user_id = $1 AND type = $2 AND status = 'pending'`
	return scanTransaction(DB.QueryRow(ctx, query, userID, txType))
}

// GetTransactionByID retrieves one transaction. Returns nil, nil when absent.
func GetTransactionByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(DB.QueryRow(ctx, query, id))
}

func listTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactions returns every transaction, newest first.
func ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	return listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY created_at DESC`)
}

// ListTransactionsByType returns all transactions of one type, newest first.
func ListTransactionsByType(ctx context.Context, txType string) ([]*models.Transaction, error) {
	return listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE type = $1 ORDER BY created_at DESC`, txType)
}

// ListTransactionsByUserEmail returns a user's transactions, newest
// first, optionally filtered by type.
func ListTransactionsByUserEmail(ctx context.Context, email, txType string) ([]*models.Transaction, error) {
	if txType == "" {
		return listTransactions(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE user_email = $1 ORDER BY created_at DESC`, email)
	}
	return listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_email = $1 AND type = $2 ORDER BY created_at DESC`,
		email, txType)
}

// ListTrades returns trade transactions in ascending date order.
func ListTrades(ctx context.Context) ([]*models.Transaction, error) {
	return listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE type = 'trade' ORDER BY created_at ASC`)
}

// UpdateTransactionAmounts amends amount and converted amount on an
// existing transaction (admin correction path).
func UpdateTransactionAmounts(ctx context.Context, id uuid.UUID, amount, convertedAmount decimal.Decimal) (*models.Transaction, error) {
	query := `UPDATE transactions SET amount = $1, converted_amount = $2 WHERE id = $3
			  RETURNING ` + transactionColumns
	t, err := scanTransaction(DB.QueryRow(ctx, query, amount, convertedAmount, id))
	if err != nil {
		return nil, fmt.Errorf("updating transaction %s: %w", id, err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// DeleteTransaction removes a transaction and returns the deleted record.
func DeleteTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `DELETE FROM transactions WHERE id = $1 RETURNING ` + transactionColumns
	t, err := scanTransaction(DB.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("deleting transaction %s: %w", id, err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

// markResolved flips a pending transaction to its terminal status inside
// tx. RowsAffected 0 with an existing row means the transaction already
// resolved; the caller must not re-apply its balance effect.
func markResolved(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE transactions SET status = $1 WHERE id = $2 AND status = 'pending'`, status, id)
	if err != nil {
		return fmt.Errorf("updating transaction %s status: %w", id, err)
	}
	if tag.RowsAffected() != 1 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking transaction %s: %w", id, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

// ResolveDeposit terminates a pending deposit. On success the amount is
// credited to the account's deposit balance; on any other status no
// balance changes. Status flip and credit commit together or not at all.
func ResolveDeposit(ctx context.Context, id uuid.UUID, email string, amount decimal.Decimal, status string) (*models.User, error) {
	tx, err := DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning deposit resolution: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := markResolved(ctx, tx, id, status); err != nil {
		return nil, err
	}

	if status == models.StatusSuccess {
		tag, err := tx.Exec(ctx, `UPDATE users SET deposit = deposit + $1 WHERE email = $2`, amount, email)
		if err != nil {
			return nil, fmt.Errorf("crediting deposit for %s: %w", email, err)
		}
		if tag.RowsAffected() != 1 {
			return nil, ErrNotFound
		}
	}

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("reloading user %s: %w", email, err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing deposit resolution: %w", err)
	}
	return user, nil
}

// ResolveWithdrawal terminates a pending withdrawal. On success the
// amount is debited principal-first (interest absorbs the remainder and
// may go negative) and added to the cumulative withdraw total. The
// account row is locked for the read-modify-write; an insufficient
// balance aborts before any mutation and the transaction stays pending.
func ResolveWithdrawal(ctx context.Context, id uuid.UUID, email string, amount decimal.Decimal, status string) (*models.User, error) {
	tx, err := DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning withdrawal resolution: %w", err)
	}
	defer tx.Rollback(ctx)

	user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 FOR UPDATE`, email))
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", email, err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	if status == models.StatusSuccess {
		split, err := ledger.SplitWithdrawal(amount, user.Deposit, user.Interest)
		if err != nil {
			return nil, err // transaction stays pending, nothing debited
		}

		if err := markResolved(ctx, tx, id, status); err != nil {
			return nil, err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users SET deposit = $1, interest = $2, withdraw = withdraw + $3 WHERE email = $4`,
			split.NewDeposit, split.NewInterest, amount, email)
		if err != nil {
			return nil, fmt.Errorf("debiting withdrawal for %s: %w", email, err)
		}
		if tag.RowsAffected() != 1 {
			return nil, ErrNotFound
		}
		user.Deposit = split.NewDeposit
		user.Interest = split.NewInterest
		user.Withdraw = user.Withdraw.Add(amount)
	} else {
		if err := markResolved(ctx, tx, id, status); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing withdrawal resolution: %w", err)
	}
	return user, nil
}

// ResolveTrade terminates a pending trade by distributing interest to
// every account with a positive deposit: rate * deposit each. The
// fan-out update and the status flip share one transaction, so either
// every account's interest moves and the trade succeeds, or nothing
// changes. Returns the number of credited accounts.
func ResolveTrade(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning trade resolution: %w", err)
	}
	defer tx.Rollback(ctx)

	var rate *decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT trade_interest FROM transactions WHERE id = $1 AND type = 'trade' FOR UPDATE`, id).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("loading trade %s: %w", id, err)
	}
	if rate == nil {
		return 0, fmt.Errorf("trade %s has no interest rate", id)
	}

	if err := markResolved(ctx, tx, id, models.StatusSuccess); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `UPDATE users SET interest = interest + ($1 * deposit) WHERE deposit > 0`, *rate)
	if err != nil {
		return 0, fmt.Errorf("distributing trade interest: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing trade resolution: %w", err)
	}
	return tag.RowsAffected(), nil
}
