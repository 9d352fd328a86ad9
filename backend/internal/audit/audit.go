// Package audit appends privileged actions to the activity log. Writing
// the log is best-effort relative to the business action it describes:
// money movement never fails because logging did.
package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/user/tradedesk/backend/internal/models"
	"github.com/user/tradedesk/backend/internal/requestinfo"
)

// Store persists entries.
type Store interface {
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error
}

// Notifier delivers the optional admin mail describing an action.
type Notifier interface {
	AdminActivityMail(entry *models.ActivityLog) error
}

// Locator resolves an IP to an approximate location, or nil.
type Locator interface {
	Locate(ctx context.Context, ip string) *models.Location
}

// Record describes one action to log.
type Record struct {
	Actor            *models.User
	Action           string
	TargetCollection string
	TargetID         string
	Metadata         map[string]any
	NotifyAdmin      bool
}

// Logger is the append-only activity sink.
type Logger struct {
	store    Store
	notifier Notifier
	locator  Locator
}

func NewLogger(store Store, notifier Notifier, locator Locator) *Logger {
	return &Logger{store: store, notifier: notifier, locator: locator}
}

// Log writes one entry, capturing the actor snapshot (role derived from
// isAdmin now, not looked up later) and the request's network context.
// A persistence failure is swallowed and nil returned; a notification
// failure never affects the already-written entry.
func (l *Logger) Log(ctx context.Context, info requestinfo.Info, rec Record) *models.ActivityLog {
	entry := &models.ActivityLog{
		Action:           rec.Action,
		TargetCollection: rec.TargetCollection,
		TargetID:         rec.TargetID,
		Metadata:         rec.Metadata,
		IPAddress:        info.IPAddress,
		UserAgent:        info.UserAgent,
		Location:         info.Location,
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	if rec.Actor != nil {
		id := rec.Actor.ID
		entry.ActorID = &id
		entry.ActorEmail = rec.Actor.Email
		entry.ActorRole = rec.Actor.Role()
	} else {
		entry.ActorRole = "system"
	}

	if entry.Location == nil && l.locator != nil {
		entry.Location = l.locator.Locate(ctx, entry.IPAddress)
	}

	if err := l.store.InsertActivityLog(ctx, entry); err != nil {
		logrus.WithError(err).WithField("action", rec.Action).Error("activity log write failed")
		return nil
	}

	if rec.NotifyAdmin && l.notifier != nil {
		if err := l.notifier.AdminActivityMail(entry); err != nil {
			logrus.WithError(err).WithField("action", rec.Action).Warn("admin activity mail failed")
		}
	}

	return entry
}

// std is the process-wide logger wired up in main.
var std *Logger

// Init installs the default logger.
func Init(store Store, notifier Notifier, locator Locator) {
	std = NewLogger(store, notifier, locator)
}

// Log records through the default logger. A nil default (tests that
// never called Init) is a no-op.
func Log(ctx context.Context, info requestinfo.Info, rec Record) *models.ActivityLog {
	if std == nil {
		return nil
	}
	return std.Log(ctx, info, rec)
}
