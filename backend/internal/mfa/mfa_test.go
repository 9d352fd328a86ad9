package mfa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tradedesk/backend/internal/models"
)

type fakeUserStore struct {
	pendingSecret  string
	pendingExpires time.Time
	enabledSecret  string
	disabled       bool
	failWith       error
}

func (f *fakeUserStore) SetPendingTwoFactorSecret(_ context.Context, _ uuid.UUID, secret string, expires time.Time) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.pendingSecret = secret
	f.pendingExpires = expires
	return nil
}

func (f *fakeUserStore) EnableTwoFactor(_ context.Context, _ uuid.UUID, secret string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.enabledSecret = secret
	return nil
}

func (f *fakeUserStore) DisableTwoFactor(_ context.Context, _ uuid.UUID) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.disabled = true
	return nil
}

func newTestService(store UserStore, at time.Time) *Service {
	s := NewService(store, "TradeDesk", 10*time.Minute)
	s.now = func() time.Time { return at }
	return s
}

func codeFor(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, validateOpts)
	require.NoError(t, err)
	return code
}

func TestEnrollAndConfirm(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &fakeUserStore{}
	svc := newTestService(store, now)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}

	uri, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/"))
	assert.Contains(t, uri, "TradeDesk")
	require.NotEmpty(t, store.pendingSecret)
	assert.Equal(t, store.pendingSecret, user.TempTwoFactorSecret)
	assert.Equal(t, now.Add(10*time.Minute), store.pendingExpires)

	err = svc.Confirm(context.Background(), user, codeFor(t, store.pendingSecret, now))
	require.NoError(t, err)
	assert.True(t, user.MFAEnabled)
	assert.Equal(t, store.pendingSecret, store.enabledSecret)
	assert.Equal(t, store.enabledSecret, user.TwoFactorSecret)
	assert.Empty(t, user.TempTwoFactorSecret)
	assert.Nil(t, user.TempTwoFactorExpires)
}

func TestEnroll_AlreadyEnabled(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeUserStore{}, time.Now())
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", MFAEnabled: true}

	_, err := svc.Enroll(context.Background(), user)
	assert.ErrorIs(t, err, ErrAlreadyEnabled)
}

func TestConfirm_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &fakeUserStore{}
	svc := newTestService(store, now)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}

	_, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)

	// At the exact expiry instant the pending secret is still valid.
	atExpiry := now.Add(10 * time.Minute)
	svc.now = func() time.Time { return atExpiry }
	err = svc.Confirm(context.Background(), user, codeFor(t, store.pendingSecret, atExpiry))
	assert.NoError(t, err)

	// One second later it is not.
	user2 := &models.User{ID: uuid.New(), Email: "bob@example.com"}
	svc2 := newTestService(&fakeUserStore{}, now)
	_, err = svc2.Enroll(context.Background(), user2)
	require.NoError(t, err)
	svc2.now = func() time.Time { return now.Add(10*time.Minute + time.Second) }
	err = svc2.Confirm(context.Background(), user2, "000000")
	assert.ErrorIs(t, err, ErrEnrollmentExpired)
}

func TestConfirm_NeverEnrolled(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeUserStore{}, time.Now())
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}

	err := svc.Confirm(context.Background(), user, "123456")
	assert.ErrorIs(t, err, ErrEnrollmentExpired)
}

func TestConfirm_WrongCode(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &fakeUserStore{}
	svc := newTestService(store, now)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}

	_, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)

	err = svc.Confirm(context.Background(), user, "000000")
	// Either the code is simply wrong, or (vanishingly unlikely) it
	// happens to be the current one; reject the first case only.
	if err != nil {
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.False(t, user.MFAEnabled)
		assert.Empty(t, store.enabledSecret)
	}
}

func TestDisable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &fakeUserStore{}
	svc := newTestService(store, now)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "TradeDesk", AccountName: "ada@example.com"})
	require.NoError(t, err)
	user := &models.User{
		ID: uuid.New(), Email: "ada@example.com",
		MFAEnabled: true, TwoFactorSecret: key.Secret(),
	}

	err = svc.Disable(context.Background(), user, codeFor(t, key.Secret(), now))
	require.NoError(t, err)
	assert.True(t, store.disabled)
	assert.False(t, user.MFAEnabled)
	assert.Empty(t, user.TwoFactorSecret)
}

func TestDisable_NotEnabled(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeUserStore{}, time.Now())
	err := svc.Disable(context.Background(), &models.User{ID: uuid.New()}, "123456")
	assert.ErrorIs(t, err, ErrNotEnabled)
}

func TestVerifyLogin(t *testing.T) {
	t.Parallel()

	now := time.Now()
	store := &fakeUserStore{}
	svc := newTestService(store, now)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "TradeDesk", AccountName: "ada@example.com"})
	require.NoError(t, err)
	user := &models.User{
		ID: uuid.New(), Email: "ada@example.com",
		MFAEnabled: true, TwoFactorSecret: key.Secret(),
	}

	require.NoError(t, svc.VerifyLogin(user, codeFor(t, key.Secret(), now)))

	// Verification never mutates two-factor state.
	assert.True(t, user.MFAEnabled)
	assert.Equal(t, key.Secret(), user.TwoFactorSecret)
	assert.False(t, store.disabled)
	assert.Empty(t, store.enabledSecret)

	assert.ErrorIs(t, svc.VerifyLogin(&models.User{}, "123456"), ErrNotEnabled)
}

func TestConfirm_StoreFailure(t *testing.T) {
	t.Parallel()

	now := time.Now()
	boom := errors.New("db down")
	store := &fakeUserStore{}
	svc := newTestService(store, now)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com"}

	_, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)

	store.failWith = boom
	err = svc.Confirm(context.Background(), user, codeFor(t, store.pendingSecret, now))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, user.MFAEnabled)
}
