package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/user/tradedesk/backend/internal/audit"
	"github.com/user/tradedesk/backend/internal/database"
	"github.com/user/tradedesk/backend/internal/mailer"
	"github.com/user/tradedesk/backend/internal/models"
)

// demoResetBalance is the top-up applied by ResetDemoBalance; set from
// config in main.
var demoResetBalance = decimal.NewFromInt(10000)

// SetDemoResetBalance configures the demo top-up amount.
func SetDemoResetBalance(amount decimal.Decimal) { demoResetBalance = amount }

// CreateDepositRequest asks for a new pending deposit.
type CreateDepositRequest struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	CoinName        string          `json:"coinName"`
}

// ResolveRequest terminates a pending deposit or withdrawal.
type ResolveRequest struct {
	Email  string          `json:"email"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
}

// ListDeposits returns every deposit. Admin only.
func ListDeposits(c *fiber.Ctx) error {
	deposits, err := database.ListTransactionsByType(c.Context(), models.TypeDeposit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(deposits)
}

// ListUserDeposits returns one account's deposits (self or admin).
func ListUserDeposits(c *fiber.Ctx) error {
	email := c.Params("email")
	if !isSelfOrAdmin(currentUser(c), email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	deposits, err := database.ListTransactionsByUserEmail(c.Context(), email, models.TypeDeposit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(deposits)
}

// CreateDeposit records a pending deposit for the account. Balances are
// untouched until an admin resolves it. The admin alert and the pending
// mail both abort the request when they fail.
func CreateDeposit(c *fiber.Ctx) error {
	req := new(CreateDepositRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
	}

	user, err := database.GetUserByID(c.Context(), req.ID)
	if err != nil {
		return storeError(c, err)
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	actor := currentUser(c)
	if !isSelfOrAdmin(actor, user.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	pending, err := database.FindPendingByUserAndType(c.Context(), user.ID, models.TypeDeposit)
	if err != nil {
		return storeError(c, err)
	}
	if pending != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have a pending deposit. Please wait for approval."})
	}

	transaction := &models.Transaction{
		Type:   models.TypeDeposit,
		Amount: req.Amount,
		User:   models.UserSnapshot{ID: user.ID, Email: user.Email, Name: user.FullName},
		Wallet: models.WalletData{ConvertedAmount: req.ConvertedAmount, CoinName: req.CoinName},
	}
	if err := database.CreateTransaction(c.Context(), transaction); err != nil {
		return storeError(c, err)
	}

	if err := mailer.Default().AlertAdmin(user.Email, req.Amount, transaction.Date, models.TypeDeposit); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to notify admin"})
	}
	if err := mailer.Default().PendingDepositMail(user.FullName, req.Amount, transaction.Date, user.Email); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send confirmation email"})
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            actor,
		Action:           "deposit_create",
		TargetCollection: "Transaction",
		TargetID:         transaction.ID.String(),
		Metadata:         map[string]any{"amount": req.Amount, "coinName": req.CoinName},
	})

	return c.JSON(fiber.Map{"message": "Deposit successful and pending approval..."})
}

// ResolveDeposit terminates a pending deposit. Admin only. On success
// the amount is credited; any other status leaves balances alone. The
// outcome mail is best-effort here, unlike on the creation path.
func ResolveDeposit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	req := new(ResolveRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Status != models.StatusSuccess && req.Status != models.StatusRejected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Status must be success or rejected"})
	}

	deposit, err := database.GetTransactionByID(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	if deposit == nil || deposit.Type != models.TypeDeposit {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Deposit not found"})
	}

	user, err := database.ResolveDeposit(c.Context(), id, req.Email, req.Amount, req.Status)
	if err != nil {
		return storeError(c, err)
	}

	rejected := req.Status != models.StatusSuccess
	if err := mailer.Default().DepositMail(user.FullName, req.Amount, deposit.Date, user.Email, rejected); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Warn("deposit outcome mail failed")
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "deposit_status_update",
		TargetCollection: "Transaction",
		TargetID:         id.String(),
		Metadata:         map[string]any{"status": req.Status, "amount": req.Amount, "email": req.Email},
	})

	return c.JSON(fiber.Map{"message": "Deposit successfully updated"})
}

// ResetDemoBalance tops the demo balance back up (self or admin).
// Audited; admin-initiated resets additionally notify staff.
func ResetDemoBalance(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	actor := currentUser(c)
	if !isSelfOrAdmin(actor, req.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := database.SetDemoBalance(c.Context(), req.Email, demoResetBalance); err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            actor,
		Action:           "reset_demo_balance",
		TargetCollection: "User",
		TargetID:         req.Email,
		Metadata:         map[string]any{"email": req.Email},
		NotifyAdmin:      actor != nil && actor.IsAdmin,
	})

	return c.JSON(fiber.Map{"message": "Demo balance topped up"})
}
