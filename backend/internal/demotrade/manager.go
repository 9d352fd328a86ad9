// Package demotrade runs the demo trade simulator: trades are persisted
// with a due time and a worker settles them once that time passes. The
// due time living in storage is what lets settlements survive a process
// restart; the settled-flag compare-and-swap in the store is what makes
// each settlement happen exactly once.
package demotrade

import (
	"context"
	"math/rand"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/user/tradedesk/backend/internal/ledger"
	"github.com/user/tradedesk/backend/internal/models"
)

// Store is the persistence the simulator needs.
type Store interface {
	CreateDemoTrade(ctx context.Context, t *models.DemoTrade) error
	DueDemoTrades(ctx context.Context, now time.Time, limit int) ([]*models.DemoTrade, error)
	SettleDemoTrade(ctx context.Context, id uuid.UUID, email, outcome string, delta decimal.Decimal) (bool, error)
}

// Manager creates demo trades and settles the due ones.
type Manager struct {
	store        Store
	pollInterval time.Duration
	stopCh       chan struct{}

	// coin decides a settlement outcome. Fair by default; outcomes are
	// drawn at settlement time, never at creation.
	coin func() bool
	now  func() time.Time
}

func NewManager(store Store, pollInterval time.Duration) *Manager {
	return &Manager{
		store:        store,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
		coin:         func() bool { return rand.Intn(2) == 0 },
		now:          time.Now,
	}
}

var durationPattern = regexp.MustCompile(`^(\d+)s$`)

// parseDuration reads the "30s"-style duration of a trade request,
// falling back to five seconds for anything malformed.
func parseDuration(raw string) time.Duration {
	match := durationPattern.FindStringSubmatch(raw)
	if match == nil {
		return 5 * time.Second
	}
	secs, err := strconv.Atoi(match[1])
	if err != nil {
		return 5 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// Create persists a demo trade due to settle `duration` from now. The
// caller's request completes immediately; settlement happens later,
// independent of the request's lifetime.
func (m *Manager) Create(ctx context.Context, t *models.DemoTrade) error {
	t.SettleAt = m.now().Add(parseDuration(t.Duration))
	return m.store.CreateDemoTrade(ctx, t)
}

// SettleDue settles every trade whose due time has passed. Outcomes are
// coin flips: a win credits the profit, a loss debits the stake (the
// demo balance has no floor). A trade whose account has vanished is
// claimed and dropped. Settlement failures are logged, not retried.
func (m *Manager) SettleDue(ctx context.Context) {
	due, err := m.store.DueDemoTrades(ctx, m.now(), 100)
	if err != nil {
		logrus.WithError(err).Error("querying due demo trades failed")
		return
	}

	for _, t := range due {
		win := m.coin()
		outcome := "loss"
		if win {
			outcome = "win"
		}
		delta := ledger.SettlementDelta(win, t.Amount, t.Profit)

		claimed, err := m.store.SettleDemoTrade(ctx, t.ID, t.Email, outcome, delta)
		if err != nil {
			logrus.WithError(err).WithField("trade", t.ID).Error("demo trade settlement failed")
			continue
		}
		if !claimed {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"trade": t.ID, "email": t.Email, "outcome": outcome, "delta": delta.String(),
		}).Info("demo trade settled")
	}
}

// Run polls for due trades until the context ends or Stop is called.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	// Catch up immediately: trades that came due while the process was
	// down settle on the first pass.
	m.SettleDue(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.SettleDue(ctx)
		}
	}
}

// Stop halts the polling loop.
func (m *Manager) Stop() {
	close(m.stopCh)
}

// std is the process-wide manager wired up in main.
var std *Manager

// InitManager installs the default manager.
func InitManager(store Store, pollInterval time.Duration) *Manager {
	std = NewManager(store, pollInterval)
	return std
}

// Default returns the process-wide manager.
func Default() *Manager { return std }
