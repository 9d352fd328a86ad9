package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/user/tradedesk/backend/internal/database"
	"github.com/user/tradedesk/backend/internal/models"
	"github.com/user/tradedesk/backend/internal/requestinfo"
)

// currentUser returns the authenticated account set by the Protected
// middleware.
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

// reqInfo returns the captured network context of the request.
func reqInfo(c *fiber.Ctx) requestinfo.Info {
	info, _ := c.Locals("requestInfo").(requestinfo.Info)
	return info
}

// isSelfOrAdmin implements the ownership check every per-account
// resource uses: the account holder themselves, or any admin.
func isSelfOrAdmin(actor *models.User, ownerEmail string) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin || actor.Email == ownerEmail
}

// storeError maps store sentinels onto HTTP responses.
func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
	case errors.Is(err, database.ErrPendingExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, database.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, database.ErrInsufficientFunds):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Insufficient funds"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong"})
	}
}
