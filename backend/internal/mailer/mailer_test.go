package mailer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/user/tradedesk/backend/internal/models"
)

type fakeSender struct {
	sent     []*gomail.Message
	failures int // fail this many sends before succeeding
	attempts int
}

func (f *fakeSender) DialAndSend(msgs ...*gomail.Message) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func TestSendRetries(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failures: 2}
	m := New(sender, "noreply@example.com", "TradeDesk", "admin@example.com", 3)

	err := m.WelcomeMail("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, sender.attempts)
	assert.Len(t, sender.sent, 1)
}

func TestSendExhaustsRetries(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failures: 10}
	m := New(sender, "noreply@example.com", "TradeDesk", "admin@example.com", 3)

	err := m.WelcomeMail("ada@example.com")
	require.Error(t, err)
	assert.Equal(t, 3, sender.attempts)
	assert.Empty(t, sender.sent)
}

func TestAlertAdmin_GoesToAdminAddress(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	m := New(sender, "noreply@example.com", "TradeDesk", "admin@example.com", 1)

	err := m.AlertAdmin("ada@example.com", decimal.NewFromInt(500), time.Now(), "deposit")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"admin@example.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"New deposit request"}, sender.sent[0].GetHeader("Subject"))
}

func TestDepositMail_Subjects(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	m := New(sender, "noreply@example.com", "TradeDesk", "admin@example.com", 1)

	require.NoError(t, m.DepositMail("Ada", decimal.NewFromInt(500), time.Now(), "ada@example.com", false))
	require.NoError(t, m.DepositMail("Ada", decimal.NewFromInt(500), time.Now(), "ada@example.com", true))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"Deposit approved"}, sender.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"Deposit rejected"}, sender.sent[1].GetHeader("Subject"))
}

func TestAdminActivityMail(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	m := New(sender, "noreply@example.com", "TradeDesk", "admin@example.com", 1)

	entry := &models.ActivityLog{
		Action:     "users_delete",
		ActorEmail: "boss@example.com",
		ActorRole:  "admin",
		IPAddress:  "203.0.113.9",
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0)",
		Location:   &models.Location{City: "Lagos", Country: "Nigeria"},
	}
	require.NoError(t, m.AdminActivityMail(entry))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"Activity: users_delete"}, sender.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"admin@example.com"}, sender.sent[0].GetHeader("To"))
}

func TestParseDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"windows", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "windows"},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", "ios"},
		{"android", "Mozilla/5.0 (Linux; Android 14)", "android"},
		{"mobile", "Mozilla/5.0 (Linux; Android 14; Mobile)", "mobile"},
		{"empty", "", "unknown"},
		{"unknown", "curl/8.0", "unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseDevice(tt.ua))
		})
	}
}
