package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tradedesk/backend/internal/models"
	"github.com/user/tradedesk/backend/internal/requestinfo"
)

type fakeAuditStore struct {
	entries []*models.ActivityLog
	err     error
}

func (f *fakeAuditStore) InsertActivityLog(_ context.Context, entry *models.ActivityLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeNotifier struct {
	mails []*models.ActivityLog
	err   error
}

func (f *fakeNotifier) AdminActivityMail(entry *models.ActivityLog) error {
	if f.err != nil {
		return f.err
	}
	f.mails = append(f.mails, entry)
	return nil
}

type fakeLocator struct {
	loc   *models.Location
	asked []string
}

func (f *fakeLocator) Locate(_ context.Context, ip string) *models.Location {
	f.asked = append(f.asked, ip)
	return f.loc
}

func info() requestinfo.Info {
	return requestinfo.Info{IPAddress: "203.0.113.9", UserAgent: "test-agent"}
}

func TestLog_ActorSnapshot(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{}
	l := NewLogger(store, nil, nil)

	admin := &models.User{ID: uuid.New(), Email: "boss@example.com", IsAdmin: true}
	entry := l.Log(context.Background(), info(), Record{
		Actor:            admin,
		Action:           "deposit_status_update",
		TargetCollection: "transactions",
		TargetID:         "abc",
		Metadata:         map[string]any{"status": "success"},
	})

	require.NotNil(t, entry)
	require.Len(t, store.entries, 1)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, admin.ID, *entry.ActorID)
	assert.Equal(t, "boss@example.com", entry.ActorEmail)
	assert.Equal(t, "admin", entry.ActorRole)
	assert.Equal(t, "203.0.113.9", entry.IPAddress)
	assert.Equal(t, "test-agent", entry.UserAgent)
	assert.Equal(t, "success", entry.Metadata["status"])
}

func TestLog_SystemActor(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{}
	l := NewLogger(store, nil, nil)

	entry := l.Log(context.Background(), info(), Record{Action: "demo_trade_settle"})
	require.NotNil(t, entry)
	assert.Nil(t, entry.ActorID)
	assert.Equal(t, "system", entry.ActorRole)
	assert.NotNil(t, entry.Metadata)
}

// A failed write must never bubble up to the business action being
// logged.
func TestLog_StoreFailureSwallowed(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{err: errors.New("db down")}
	notifier := &fakeNotifier{}
	l := NewLogger(store, notifier, nil)

	entry := l.Log(context.Background(), info(), Record{
		Action:      "users_delete",
		NotifyAdmin: true,
	})

	assert.Nil(t, entry)
	assert.Empty(t, notifier.mails, "no mail for an entry that was never written")
}

func TestLog_NotifierFailureKeepsEntry(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{}
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	l := NewLogger(store, notifier, nil)

	entry := l.Log(context.Background(), info(), Record{
		Actor:       &models.User{ID: uuid.New(), Email: "boss@example.com", IsAdmin: true},
		Action:      "users_delete",
		NotifyAdmin: true,
	})

	require.NotNil(t, entry)
	assert.Len(t, store.entries, 1)
}

func TestLog_NotifyAdmin(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{}
	notifier := &fakeNotifier{}
	l := NewLogger(store, notifier, nil)

	l.Log(context.Background(), info(), Record{Action: "plain"})
	assert.Empty(t, notifier.mails)

	l.Log(context.Background(), info(), Record{Action: "flagged", NotifyAdmin: true})
	require.Len(t, notifier.mails, 1)
	assert.Equal(t, "flagged", notifier.mails[0].Action)
}

func TestLog_LazyLocation(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{}
	locator := &fakeLocator{loc: &models.Location{City: "Lagos", Country: "Nigeria"}}
	l := NewLogger(store, nil, locator)

	entry := l.Log(context.Background(), info(), Record{Action: "login"})
	require.NotNil(t, entry)
	require.NotNil(t, entry.Location)
	assert.Equal(t, "Lagos", entry.Location.City)
	assert.Equal(t, []string{"203.0.113.9"}, locator.asked)

	// A location already on the request is not re-resolved.
	pre := info()
	pre.Location = &models.Location{City: "Oslo"}
	entry = l.Log(context.Background(), pre, Record{Action: "login"})
	require.NotNil(t, entry)
	assert.Equal(t, "Oslo", entry.Location.City)
	assert.Len(t, locator.asked, 1)
}

func TestPackageLog_NilDefault(t *testing.T) {
	// std deliberately left nil; the package-level Log is a no-op.
	assert.Nil(t, Log(context.Background(), info(), Record{Action: "noop"}))
}
