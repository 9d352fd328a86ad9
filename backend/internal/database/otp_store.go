package database

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/user/tradedesk/backend/internal/models"
)

// CreateOTP issues a fresh six-digit signup code for the email,
// replacing any previous one.
func CreateOTP(ctx context.Context, email string, ttl time.Duration) (*models.OTP, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return nil, fmt.Errorf("generating otp code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	tx, err := DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning otp insert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM otps WHERE email = $1`, email); err != nil {
		return nil, fmt.Errorf("clearing previous otps for %s: %w", email, err)
	}

	otp := &models.OTP{Email: email, Code: code, ExpiresAt: time.Now().Add(ttl)}
	if _, err := tx.Exec(ctx,
		`INSERT INTO otps (email, code, expires_at) VALUES ($1, $2, $3)`,
		otp.Email, otp.Code, otp.ExpiresAt); err != nil {
		return nil, fmt.Errorf("inserting otp for %s: %w", email, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing otp insert: %w", err)
	}
	return otp, nil
}

// ConsumeOTP validates and burns a signup code. Returns false when the
// code does not match or has expired.
func ConsumeOTP(ctx context.Context, email, code string) (bool, error) {
	tag, err := DB.Exec(ctx,
		`DELETE FROM otps WHERE email = $1 AND code = $2 AND expires_at > NOW()`, email, code)
	if err != nil {
		return false, fmt.Errorf("consuming otp for %s: %w", email, err)
	}
	return tag.RowsAffected() == 1, nil
}
