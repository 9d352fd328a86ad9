package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
	TypeTrade      = "trade"
)

// Transaction statuses
const (
	StatusPending  = "pending"
	StatusSuccess  = "success"
	StatusRejected = "rejected"
)

// User represents an account, its KYC profile and its ledger balances.
type User struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	FullName  string    `json:"fullName"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	Address   string    `json:"address,omitempty"`
	ZipCode   string    `json:"zipCode,omitempty"`

	// KYC document data
	DocumentNumber  string `json:"documentNumber,omitempty"`
	DocumentFront   string `json:"documentFront,omitempty"`
	DocumentBack    string `json:"documentBack,omitempty"`
	DocumentExpDate string `json:"documentExpDate,omitempty"`
	IDVerified      bool   `json:"idVerified"`

	Password string `json:"-"` // bcrypt hash, never serialized

	// Ledger balances. Only the transaction state machine and the demo
	// trade simulator may change these, via the database ledger mutators.
	Deposit  decimal.Decimal `json:"deposit"`
	Demo     decimal.Decimal `json:"demo"`
	Interest decimal.Decimal `json:"interest"`
	Withdraw decimal.Decimal `json:"withdraw"` // cumulative, never decremented
	Bonus    decimal.Decimal `json:"bonus"`

	WithdrawalLimit  decimal.Decimal `json:"withdrawalLimit"`
	MinWithdrawal    decimal.Decimal `json:"minWithdrawal"`
	WithdrawalStatus bool            `json:"withdrawalStatus"`

	ReferredBy   string `json:"referredBy,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Rank         string `json:"rank"`

	IsAdmin bool `json:"isAdmin"` // set once at creation, immutable afterwards

	// Two-factor state. A pending secret exists only during enrollment.
	MFAEnabled           bool       `json:"mfa"`
	TwoFactorSecret      string     `json:"-"`
	TempTwoFactorSecret  string     `json:"-"`
	TempTwoFactorExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// Role returns the audit role for the user at this moment.
func (u *User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}

// DeriveFullName rebuilds FullName from the name parts, mirroring what
// profile updates do before persisting.
func (u *User) DeriveFullName() {
	names := make([]string, 0, 2)
	if u.FirstName != "" {
		names = append(names, u.FirstName)
	}
	if u.LastName != "" {
		names = append(names, u.LastName)
	}
	u.FullName = strings.Join(names, " ")
}

// UserSnapshot is the owner data captured on a transaction at creation
// time. It is a copy, not a live reference, so renaming or deleting the
// account later does not rewrite transaction history.
type UserSnapshot struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// WalletData carries the coin/network/address details of a request.
type WalletData struct {
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	CoinName        string          `json:"coinName"`
	Network         string          `json:"network"`
	Address         string          `json:"address"`
}

// TradeData is set only on trade transactions: an interest-distribution
// event across all funded accounts.
type TradeData struct {
	Package  string          `json:"package"`
	Interest decimal.Decimal `json:"interest"` // rate applied to each deposit
}

// Transaction is one deposit, withdrawal or trade request.
type Transaction struct {
	ID     uuid.UUID       `json:"id"`
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
	User   UserSnapshot    `json:"user"`
	Wallet WalletData      `json:"walletData"`
	Trade  *TradeData      `json:"tradeData,omitempty"`
	Date   time.Time       `json:"date"`
}

// Location is an optional geo resolution for an activity log entry.
type Location struct {
	City    string  `json:"city,omitempty"`
	Region  string  `json:"region,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

// ActivityLog is an append-only record of a privileged action. Entries
// are never updated or deleted after creation.
type ActivityLog struct {
	ID               uuid.UUID      `json:"id"`
	ActorID          *uuid.UUID     `json:"actorId,omitempty"`
	ActorEmail       string         `json:"actorEmail,omitempty"`
	ActorRole        string         `json:"actorRole"`
	Action           string         `json:"action"`
	TargetCollection string         `json:"targetCollection,omitempty"`
	TargetID         string         `json:"targetId,omitempty"`
	Metadata         map[string]any `json:"metadata"`
	IPAddress        string         `json:"ipAddress,omitempty"`
	UserAgent        string         `json:"userAgent,omitempty"`
	Location         *Location      `json:"location,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// DemoTrade is a simulated trade that settles exactly once at SettleAt
// or later, against the creating user's demo balance.
type DemoTrade struct {
	ID              uuid.UUID       `json:"id"`
	Email           string          `json:"email"`
	Symbol          string          `json:"symbol"`
	MarketDirection string          `json:"marketDirection"`
	Amount          decimal.Decimal `json:"amount"`
	Duration        string          `json:"duration"`
	Profit          decimal.Decimal `json:"profit"`
	SettleAt        time.Time       `json:"settleAt"`
	Settled         bool            `json:"settled"`
	Outcome         string          `json:"outcome,omitempty"` // "win" or "loss" once settled
	CreatedAt       time.Time       `json:"createdAt"`
}

// OTP is a short-lived signup verification code.
type OTP struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// privilegedFields can never be written through an update payload, no
// matter which entry point produced it.
var privilegedFields = []string{"isAdmin", "is_admin"}

// ScrubPrivilegedUpdate removes privileged keys from an update payload
// before it reaches persistence.
func ScrubPrivilegedUpdate(update map[string]any) {
	if update == nil {
		return
	}
	for _, f := range privilegedFields {
		delete(update, f)
	}
}
