package database

import (
	"errors"

	"github.com/user/tradedesk/backend/internal/ledger"
)

var (
	// ErrNotFound means a referenced account or transaction is absent.
	ErrNotFound = errors.New("record not found")

	// ErrPendingExists means the account already has a pending request
	// of the same type awaiting resolution.
	ErrPendingExists = errors.New("a pending transaction of this type already exists")

	// ErrInvalidState means a transition was attempted on a transaction
	// that is no longer pending. Resolutions are not retried through
	// this path; a second resolve must not double-apply its effect.
	ErrInvalidState = errors.New("transaction is not pending")

	// ErrInsufficientFunds mirrors the ledger sentinel so callers only
	// need to match against this package.
	ErrInsufficientFunds = ledger.ErrInsufficientFunds
)
