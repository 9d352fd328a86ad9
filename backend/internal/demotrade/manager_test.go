package demotrade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tradedesk/backend/internal/models"
)

type settlement struct {
	id      uuid.UUID
	email   string
	outcome string
	delta   decimal.Decimal
}

type fakeStore struct {
	mu          sync.Mutex
	created     []*models.DemoTrade
	due         []*models.DemoTrade
	settled     []settlement
	claimed     map[uuid.UUID]bool
	settleErr   error
	dueQueryErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[uuid.UUID]bool{}}
}

func (f *fakeStore) CreateDemoTrade(_ context.Context, t *models.DemoTrade) error {
	f.created = append(f.created, t)
	return nil
}

func (f *fakeStore) DueDemoTrades(_ context.Context, _ time.Time, _ int) ([]*models.DemoTrade, error) {
	if f.dueQueryErr != nil {
		return nil, f.dueQueryErr
	}
	return f.due, nil
}

func (f *fakeStore) SettleDemoTrade(_ context.Context, id uuid.UUID, email, outcome string, delta decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settleErr != nil {
		return false, f.settleErr
	}
	if f.claimed[id] {
		return false, nil
	}
	f.claimed[id] = true
	f.settled = append(f.settled, settlement{id: id, email: email, outcome: outcome, delta: delta})
	return true, nil
}

func (f *fakeStore) settledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settled)
}

func fixedManager(store Store, at time.Time) *Manager {
	m := NewManager(store, time.Second)
	m.now = func() time.Time { return at }
	return m
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5s", 5 * time.Second},
		{"120s", 120 * time.Second},
		{"", 5 * time.Second},
		{"30m", 5 * time.Second},
		{"abc", 5 * time.Second},
		{"-10s", 5 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseDuration(tt.in))
		})
	}
}

func TestCreate_SetsDueTime(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := newFakeStore()
	m := fixedManager(store, now)

	trade := &models.DemoTrade{
		ID:     uuid.New(),
		Email:  "ada@example.com",
		Amount: decimal.NewFromInt(100),
		Profit: decimal.NewFromInt(85),
		Duration: "30s",
	}
	require.NoError(t, m.Create(context.Background(), trade))

	require.Len(t, store.created, 1)
	assert.Equal(t, now.Add(30*time.Second), store.created[0].SettleAt)
}

func TestSettleDue_Win(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := newFakeStore()
	store.due = []*models.DemoTrade{{
		ID:     uuid.New(),
		Email:  "ada@example.com",
		Amount: decimal.NewFromInt(100),
		Profit: decimal.NewFromInt(85),
	}}

	m := fixedManager(store, now)
	m.coin = func() bool { return true }
	m.SettleDue(context.Background())

	require.Len(t, store.settled, 1)
	assert.Equal(t, "win", store.settled[0].outcome)
	assert.True(t, decimal.NewFromInt(85).Equal(store.settled[0].delta))
}

func TestSettleDue_Loss(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*models.DemoTrade{{
		ID:     uuid.New(),
		Email:  "ada@example.com",
		Amount: decimal.NewFromInt(100),
		Profit: decimal.NewFromInt(85),
	}}

	m := fixedManager(store, time.Now())
	m.coin = func() bool { return false }
	m.SettleDue(context.Background())

	require.Len(t, store.settled, 1)
	assert.Equal(t, "loss", store.settled[0].outcome)
	assert.True(t, decimal.NewFromInt(-100).Equal(store.settled[0].delta))
}

// A trade already claimed by another settle pass is skipped, so each
// trade changes the balance at most once.
func TestSettleDue_ExactlyOnce(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*models.DemoTrade{{
		ID:     uuid.New(),
		Email:  "ada@example.com",
		Amount: decimal.NewFromInt(100),
		Profit: decimal.NewFromInt(85),
	}}

	m := fixedManager(store, time.Now())
	m.coin = func() bool { return true }

	m.SettleDue(context.Background())
	m.SettleDue(context.Background())

	assert.Len(t, store.settled, 1)
}

func TestSettleDue_StoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*models.DemoTrade{{ID: uuid.New(), Email: "ada@example.com"}}
	store.settleErr = errors.New("db down")

	m := fixedManager(store, time.Now())
	m.SettleDue(context.Background())
	assert.Empty(t, store.settled)

	store.dueQueryErr = errors.New("db down")
	m.SettleDue(context.Background())
	assert.Empty(t, store.settled)
}

// Run settles overdue trades on its first pass, before the first tick,
// which is what recovers trades that came due while the process was down.
func TestRun_CatchesUpImmediately(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.due = []*models.DemoTrade{{
		ID:     uuid.New(),
		Email:  "ada@example.com",
		Amount: decimal.NewFromInt(50),
		Profit: decimal.NewFromInt(40),
	}}

	m := NewManager(store, time.Hour)
	m.coin = func() bool { return true }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return store.settledCount() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
