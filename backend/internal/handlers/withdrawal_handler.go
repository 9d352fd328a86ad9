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

// CreateWithdrawalRequest asks for a new pending withdrawal.
type CreateWithdrawalRequest struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	CoinName        string          `json:"coinName"`
	Network         string          `json:"network"`
	Address         string          `json:"address"`
}

// ListWithdrawals returns every withdrawal. Admin only.
func ListWithdrawals(c *fiber.Ctx) error {
	withdrawals, err := database.ListTransactionsByType(c.Context(), models.TypeWithdrawal)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(withdrawals)
}

// ListUserWithdrawals returns one account's withdrawals (self or admin).
func ListUserWithdrawals(c *fiber.Ctx) error {
	email := c.Params("email")
	if !isSelfOrAdmin(currentUser(c), email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	withdrawals, err := database.ListTransactionsByUserEmail(c.Context(), email, models.TypeWithdrawal)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(withdrawals)
}

// GetWithdrawal returns one withdrawal (owner or admin).
func GetWithdrawal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	withdrawal, err := database.GetTransactionByID(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	if withdrawal == nil || withdrawal.Type != models.TypeWithdrawal {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transaction not found..."})
	}

	if !isSelfOrAdmin(currentUser(c), withdrawal.User.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	return c.JSON(withdrawal)
}

// CreateWithdrawal records a pending withdrawal. No funds move until an
// admin resolves it. As with deposits, a failed admin alert or pending
// mail aborts the whole request.
func CreateWithdrawal(c *fiber.Ctx) error {
	req := new(CreateWithdrawalRequest)
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

	if !user.WithdrawalStatus {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Withdrawals are disabled for this account"})
	}
	if req.Amount.LessThan(user.MinWithdrawal) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount is below the minimum withdrawal"})
	}
	if req.Amount.GreaterThan(user.WithdrawalLimit) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount exceeds the withdrawal limit"})
	}

	pending, err := database.FindPendingByUserAndType(c.Context(), user.ID, models.TypeWithdrawal)
	if err != nil {
		return storeError(c, err)
	}
	if pending != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have a pending withdrawal. Please wait for approval."})
	}

	transaction := &models.Transaction{
		Type:   models.TypeWithdrawal,
		Amount: req.Amount,
		User:   models.UserSnapshot{ID: user.ID, Email: user.Email, Name: user.FullName},
		Wallet: models.WalletData{
			ConvertedAmount: req.ConvertedAmount,
			CoinName:        req.CoinName,
			Network:         req.Network,
			Address:         req.Address,
		},
	}
	if err := database.CreateTransaction(c.Context(), transaction); err != nil {
		return storeError(c, err)
	}

	if err := mailer.Default().AlertAdmin(user.Email, req.Amount, transaction.Date, models.TypeWithdrawal); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to notify admin"})
	}
	if err := mailer.Default().PendingWithdrawalMail(user.FullName, req.Amount, transaction.Date, user.Email); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send confirmation email"})
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            actor,
		Action:           "withdrawal_create",
		TargetCollection: "Transaction",
		TargetID:         transaction.ID.String(),
		Metadata:         map[string]any{"amount": req.Amount, "coinName": req.CoinName, "network": req.Network},
	})

	return c.JSON(fiber.Map{"message": "Withdraw successful and pending approval..."})
}

// ResolveWithdrawal terminates a pending withdrawal. Admin only. On
// success the amount is debited principal-first; insufficient funds
// abort with nothing debited and the request stays pending. The outcome
// mail is best-effort.
func ResolveWithdrawal(c *fiber.Ctx) error {
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

	withdrawal, err := database.GetTransactionByID(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	if withdrawal == nil || withdrawal.Type != models.TypeWithdrawal {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Withdrawal not found"})
	}

	user, err := database.ResolveWithdrawal(c.Context(), id, req.Email, req.Amount, req.Status)
	if err != nil {
		return storeError(c, err)
	}

	rejected := req.Status != models.StatusSuccess
	if err := mailer.Default().WithdrawalMail(user.FullName, req.Amount, withdrawal.Date, user.Email, rejected); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Warn("withdrawal outcome mail failed")
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "withdrawal_status_update",
		TargetCollection: "Transaction",
		TargetID:         id.String(),
		Metadata:         map[string]any{"status": req.Status, "amount": req.Amount, "email": req.Email},
	})

	return c.JSON(fiber.Map{"message": "Withdrawal successfully updated"})
}
