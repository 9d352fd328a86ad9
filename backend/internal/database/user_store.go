package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/user/tradedesk/backend/internal/models"
)

const userColumns = `id, title, first_name, last_name, full_name, username, email, phone,
	country, city, address, zip_code,
	document_number, document_front, document_back, document_exp_date, id_verified,
	password_hash, deposit, demo, interest, withdraw, bonus,
	withdrawal_limit, min_withdrawal, withdrawal_status,
	referred_by, profile_image, rank, is_admin,
	mfa, two_factor_secret, temp_two_factor_secret, temp_two_factor_expires, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Title, &u.FirstName, &u.LastName, &u.FullName, &u.Username, &u.Email, &u.Phone,
		&u.Country, &u.City, &u.Address, &u.ZipCode,
		&u.DocumentNumber, &u.DocumentFront, &u.DocumentBack, &u.DocumentExpDate, &u.IDVerified,
		&u.Password, &u.Deposit, &u.Demo, &u.Interest, &u.Withdraw, &u.Bonus,
		&u.WithdrawalLimit, &u.MinWithdrawal, &u.WithdrawalStatus,
		&u.ReferredBy, &u.ProfileImage, &u.Rank, &u.IsAdmin,
		&u.MFAEnabled, &u.TwoFactorSecret, &u.TempTwoFactorSecret, &u.TempTwoFactorExpires, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a new account. is_admin is only ever written here;
// every update path refuses to touch it afterwards.
func CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (username, email, password_hash, referred_by, is_admin)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + userColumns

	created, err := scanUser(DB.QueryRow(ctx, query, u.Username, u.Email, u.Password, u.ReferredBy, u.IsAdmin))
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.Email, err)
	}
	*u = *created
	return nil
}

// GetUserByID retrieves a user by id. Returns nil, nil when absent.
func GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(DB.QueryRow(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email. Returns nil, nil when absent.
func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(DB.QueryRow(ctx, query, email))
}

// GetUserByEmailOrUsername is used by signup to detect an existing
// account under either identifier.
func GetUserByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $2 LIMIT 1`
	return scanUser(DB.QueryRow(ctx, query, email, username))
}

// ListUsers returns all users, newest first.
func ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := DB.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// profileColumns maps update-payload keys to their columns. Anything not
// listed here cannot be written through a profile update, which is what
// keeps balances, credentials and is_admin out of reach regardless of
// what the payload contains.
var profileColumns = map[string]string{
	"title":           "title",
	"firstName":       "first_name",
	"lastName":        "last_name",
	"phone":           "phone",
	"country":         "country",
	"city":            "city",
	"address":         "address",
	"zipCode":         "zip_code",
	"documentNumber":  "document_number",
	"documentFront":   "document_front",
	"documentBack":    "document_back",
	"documentExpDate": "document_exp_date",
	"profileImage":    "profile_image",
}

// UpdateProfile applies a partial profile update by email and returns
// the fresh record. Privileged keys are scrubbed first, then only
// whitelisted columns are written. full_name is re-derived when either
// name part changes.
func UpdateProfile(ctx context.Context, email string, update map[string]any) (*models.User, error) {
	models.ScrubPrivilegedUpdate(update)

	sets := make([]string, 0, len(update)+1)
	args := []any{email}
	for key, val := range update {
		col, ok := profileColumns[key]
		if !ok {
			continue
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if len(sets) == 0 {
		return GetUserByEmail(ctx, email)
	}

	query := fmt.Sprintf(`UPDATE users SET %s,
		full_name = TRIM(CONCAT(first_name, ' ', last_name))
		WHERE email = $1 RETURNING `+userColumns, strings.Join(sets, ", "))

	u, err := scanUser(DB.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("updating profile for %s: %w", email, err)
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// UpdatePassword stores a new password hash for the account.
func UpdatePassword(ctx context.Context, email, passwordHash string) error {
	tag, err := DB.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE email = $2`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("updating password for %s: %w", email, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// SetDemoBalance overwrites the demo balance, used by the top-up reset.
func SetDemoBalance(ctx context.Context, email string, amount decimal.Decimal) error {
	tag, err := DB.Exec(ctx, `UPDATE users SET demo = $1 WHERE email = $2`, amount, email)
	if err != nil {
		return fmt.Errorf("resetting demo balance for %s: %w", email, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// SetIDVerified flips the KYC verification flag.
func SetIDVerified(ctx context.Context, userID uuid.UUID, verified bool) error {
	tag, err := DB.Exec(ctx, `UPDATE users SET id_verified = $1 WHERE id = $2`, verified, userID)
	if err != nil {
		return fmt.Errorf("setting id_verified for %s: %w", userID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// DeleteUsers removes accounts matched by explicit ids and/or
// case-insensitive username/email prefixes. At least one criterion is
// required; deleting the whole table by accident is not an option.
func DeleteUsers(ctx context.Context, ids []uuid.UUID, usernamePrefix, emailPrefix string) (int64, error) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if len(ids) > 0 {
		args = append(args, ids)
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if usernamePrefix != "" {
		args = append(args, usernamePrefix+"%")
		conds = append(conds, fmt.Sprintf("username ILIKE $%d", len(args)))
	}
	if emailPrefix != "" {
		args = append(args, emailPrefix+"%")
		conds = append(conds, fmt.Sprintf("email ILIKE $%d", len(args)))
	}

	if len(conds) == 0 {
		return 0, fmt.Errorf("no filter criteria provided")
	}

	tag, err := DB.Exec(ctx, `DELETE FROM users WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return 0, fmt.Errorf("deleting users: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetPendingTwoFactorSecret stores a provisional secret with its expiry.
func SetPendingTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string, expires time.Time) error {
	tag, err := DB.Exec(ctx,
		`UPDATE users SET temp_two_factor_secret = $1, temp_two_factor_expires = $2 WHERE id = $3`,
		secret, expires, userID)
	if err != nil {
		return fmt.Errorf("storing pending 2fa secret for %s: %w", userID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// EnableTwoFactor promotes a confirmed secret and clears pending state.
func EnableTwoFactor(ctx context.Context, userID uuid.UUID, secret string) error {
	tag, err := DB.Exec(ctx,
		`UPDATE users SET mfa = TRUE, two_factor_secret = $1,
		 temp_two_factor_secret = '', temp_two_factor_expires = NULL
		 WHERE id = $2`,
		secret, userID)
	if err != nil {
		return fmt.Errorf("enabling 2fa for %s: %w", userID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// DisableTwoFactor clears a confirmed secret.
func DisableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	tag, err := DB.Exec(ctx,
		`UPDATE users SET mfa = FALSE, two_factor_secret = '' WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("disabling 2fa for %s: %w", userID, err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
