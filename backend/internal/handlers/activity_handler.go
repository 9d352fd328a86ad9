package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/user/tradedesk/backend/internal/database"
)

// ListActivityLogs returns audit entries, newest first. Admin only.
// The log has no update or delete surface; entries are final.
func ListActivityLogs(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "200"))

	entries, err := database.ListActivityLogs(c.Context(), limit)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(entries)
}
