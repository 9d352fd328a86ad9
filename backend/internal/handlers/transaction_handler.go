package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/user/tradedesk/backend/internal/audit"
	"github.com/user/tradedesk/backend/internal/database"
)

// ListTransactions returns every transaction, newest first. Admin only.
func ListTransactions(c *fiber.Ctx) error {
	transactions, err := database.ListTransactions(c.Context())
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(transactions)
}

// ListUserTransactions returns one account's transactions (self or admin).
func ListUserTransactions(c *fiber.Ctx) error {
	email := c.Params("email")
	if !isSelfOrAdmin(currentUser(c), email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	transactions, err := database.ListTransactionsByUserEmail(c.Context(), email, "")
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(transactions)
}

// GetTransaction returns one transaction (owner or admin).
func GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	transaction, err := database.GetTransactionByID(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	if transaction == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transaction not found..."})
	}

	if !isSelfOrAdmin(currentUser(c), transaction.User.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	return c.JSON(transaction)
}

// UpdateTransaction amends amount and converted amount on a
// transaction. Admin only, audited.
func UpdateTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	var req struct {
		Amount          decimal.Decimal `json:"amount"`
		ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) || req.ConvertedAmount.LessThanOrEqual(decimal.Zero) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Both amount and convertedAmount are required."})
	}

	if _, err := database.UpdateTransactionAmounts(c.Context(), id, req.Amount, req.ConvertedAmount); err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "transaction_update",
		TargetCollection: "Transaction",
		TargetID:         id.String(),
		Metadata:         map[string]any{"amount": req.Amount, "convertedAmount": req.ConvertedAmount},
	})

	return c.JSON(fiber.Map{"message": "Transaction updated successfully."})
}

// DeleteTransaction removes a transaction and returns it. Admin only,
// audited.
func DeleteTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid transaction id"})
	}

	transaction, err := database.DeleteTransaction(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "transaction_delete",
		TargetCollection: "Transaction",
		TargetID:         id.String(),
		Metadata:         map[string]any{"amount": transaction.Amount, "type": transaction.Type},
	})

	return c.JSON(transaction)
}
