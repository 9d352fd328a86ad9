// Package mfa implements the two-factor enrollment state machine:
// disabled -> pending enrollment -> enabled -> disabled. A provisional
// secret only lives for the enrollment window; confirming promotes it,
// and every verification tolerates one time step of clock skew.
package mfa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/user/tradedesk/backend/internal/models"
)

var (
	// ErrAlreadyEnabled rejects enrollment while two-factor is active.
	ErrAlreadyEnabled = errors.New("two-factor authentication is already enabled")

	// ErrNotEnabled rejects disable/verify when two-factor is off.
	ErrNotEnabled = errors.New("two-factor authentication is not enabled")

	// ErrEnrollmentExpired means the pending secret's window has
	// elapsed (or enrollment never started); the user must re-enroll.
	ErrEnrollmentExpired = errors.New("two-factor setup expired, please start again")

	// ErrInvalidCode means the submitted code did not verify.
	ErrInvalidCode = errors.New("invalid two-factor code")
)

// UserStore is the slice of persistence the state machine needs.
type UserStore interface {
	SetPendingTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string, expires time.Time) error
	EnableTwoFactor(ctx context.Context, userID uuid.UUID, secret string) error
	DisableTwoFactor(ctx context.Context, userID uuid.UUID) error
}

// Service runs the enrollment state machine against a user store.
type Service struct {
	store      UserStore
	issuer     string
	pendingTTL time.Duration

	now func() time.Time
}

func NewService(store UserStore, issuer string, pendingTTL time.Duration) *Service {
	return &Service{store: store, issuer: issuer, pendingTTL: pendingTTL, now: time.Now}
}

// validateOpts allows one step before and after the current one.
var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Enroll generates a provisional secret for the user and returns the
// provisioning URI. The secret expires after the pending window.
func (s *Service) Enroll(ctx context.Context, user *models.User) (string, error) {
	if user.MFAEnabled {
		return "", ErrAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return "", fmt.Errorf("generating two-factor secret: %w", err)
	}

	expires := s.now().Add(s.pendingTTL)
	if err := s.store.SetPendingTwoFactorSecret(ctx, user.ID, key.Secret(), expires); err != nil {
		return "", fmt.Errorf("storing pending two-factor secret: %w", err)
	}

	user.TempTwoFactorSecret = key.Secret()
	user.TempTwoFactorExpires = &expires
	return key.URL(), nil
}

// Confirm verifies a code against the pending secret and, on success,
// promotes it: two-factor becomes enabled and the pending state clears.
func (s *Service) Confirm(ctx context.Context, user *models.User, code string) error {
	if user.MFAEnabled {
		return ErrAlreadyEnabled
	}
	if user.TempTwoFactorSecret == "" || user.TempTwoFactorExpires == nil ||
		s.now().After(*user.TempTwoFactorExpires) {
		return ErrEnrollmentExpired
	}

	if !s.verify(code, user.TempTwoFactorSecret) {
		return ErrInvalidCode
	}

	if err := s.store.EnableTwoFactor(ctx, user.ID, user.TempTwoFactorSecret); err != nil {
		return fmt.Errorf("enabling two-factor: %w", err)
	}

	user.TwoFactorSecret = user.TempTwoFactorSecret
	user.TempTwoFactorSecret = ""
	user.TempTwoFactorExpires = nil
	user.MFAEnabled = true
	return nil
}

// Disable verifies a code against the confirmed secret and turns
// two-factor off.
func (s *Service) Disable(ctx context.Context, user *models.User, code string) error {
	if !user.MFAEnabled {
		return ErrNotEnabled
	}
	if !s.verify(code, user.TwoFactorSecret) {
		return ErrInvalidCode
	}

	if err := s.store.DisableTwoFactor(ctx, user.ID); err != nil {
		return fmt.Errorf("disabling two-factor: %w", err)
	}

	user.TwoFactorSecret = ""
	user.MFAEnabled = false
	return nil
}

// VerifyLogin checks a login code against the confirmed secret. It
// mutates nothing; the caller issues the follow-on credential.
func (s *Service) VerifyLogin(user *models.User, code string) error {
	if !user.MFAEnabled {
		return ErrNotEnabled
	}
	if !s.verify(code, user.TwoFactorSecret) {
		return ErrInvalidCode
	}
	return nil
}

func (s *Service) verify(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, s.now(), validateOpts)
	return err == nil && ok
}

// std is the process-wide service wired up in main.
var std *Service

// Init installs the default service.
func Init(store UserStore, issuer string, pendingTTL time.Duration) {
	std = NewService(store, issuer, pendingTTL)
}

// Default returns the process-wide service.
func Default() *Service { return std }
