package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/user/tradedesk/backend/internal/models"
)

// Store adapts the package-level functions to the small interfaces the
// audit logger, the two-factor service and the demo trade simulator
// consume, so those packages stay testable with fakes.
type Store struct{}

func (Store) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	return InsertActivityLog(ctx, entry)
}

func (Store) SetPendingTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string, expires time.Time) error {
	return SetPendingTwoFactorSecret(ctx, userID, secret, expires)
}

func (Store) EnableTwoFactor(ctx context.Context, userID uuid.UUID, secret string) error {
	return EnableTwoFactor(ctx, userID, secret)
}

func (Store) DisableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	return DisableTwoFactor(ctx, userID)
}

func (Store) CreateDemoTrade(ctx context.Context, t *models.DemoTrade) error {
	return CreateDemoTrade(ctx, t)
}

func (Store) DueDemoTrades(ctx context.Context, now time.Time, limit int) ([]*models.DemoTrade, error) {
	return DueDemoTrades(ctx, now, limit)
}

func (Store) SettleDemoTrade(ctx context.Context, id uuid.UUID, email, outcome string, delta decimal.Decimal) (bool, error) {
	return SettleDemoTrade(ctx, id, email, outcome, delta)
}
