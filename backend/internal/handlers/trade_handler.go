package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/user/tradedesk/backend/internal/audit"
	"github.com/user/tradedesk/backend/internal/database"
	"github.com/user/tradedesk/backend/internal/demotrade"
	"github.com/user/tradedesk/backend/internal/models"
)

// CreateTradeRequest opens an interest-distribution event.
type CreateTradeRequest struct {
	Package  string          `json:"package"`
	Interest decimal.Decimal `json:"interest"`
}

// CreateDemoTradeRequest opens a simulated trade against the demo balance.
type CreateDemoTradeRequest struct {
	Email           string          `json:"email"`
	Symbol          string          `json:"symbol"`
	MarketDirection string          `json:"marketDirection"`
	Amount          decimal.Decimal `json:"amount"`
	Duration        string          `json:"duration"`
	Profit          decimal.Decimal `json:"profit"`
}

// ListTrades returns all trade transactions, oldest first.
func ListTrades(c *fiber.Ctx) error {
	trades, err := database.ListTrades(c.Context())
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(trades)
}

// CreateTrade records a pending trade: a rate to be applied to every
// funded account's deposit once an admin resolves it. Admin only.
func CreateTrade(c *fiber.Ctx) error {
	req := new(CreateTradeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Interest.LessThanOrEqual(decimal.Zero) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Interest rate must be positive"})
	}

	trade := &models.Transaction{
		Type:   models.TypeTrade,
		Amount: decimal.Zero,
		Trade:  &models.TradeData{Package: req.Package, Interest: req.Interest},
	}
	if err := database.CreateTransaction(c.Context(), trade); err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "trade_create",
		TargetCollection: "Transaction",
		TargetID:         trade.ID.String(),
		Metadata:         map[string]any{"package": req.Package, "interest": req.Interest},
	})

	return c.JSON(fiber.Map{"message": "Success"})
}

// ResolveTrade distributes the trade's interest to every account with a
// positive deposit, atomically with the status flip. Admin only.
func ResolveTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade id"})
	}

	credited, err := database.ResolveTrade(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "trade_resolve",
		TargetCollection: "Transaction",
		TargetID:         id.String(),
		Metadata:         map[string]any{"creditedAccounts": credited},
	})

	return c.JSON(fiber.Map{"message": "Trade successfully updated"})
}

// DeleteTrade removes a trade transaction. Admin only.
func DeleteTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trade id"})
	}

	trade, err := database.DeleteTransaction(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(trade)
}

// CreateDemoTrade persists a simulated trade and schedules it to settle
// after its duration. The response returns before settlement; the
// outcome is a coin flip taken when the trade comes due, not now.
func CreateDemoTrade(c *fiber.Ctx) error {
	req := new(CreateDemoTradeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Email == "" || req.Amount.LessThanOrEqual(decimal.Zero) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and positive amount are required"})
	}

	if !isSelfOrAdmin(currentUser(c), req.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	trade := &models.DemoTrade{
		Email:           req.Email,
		Symbol:          req.Symbol,
		MarketDirection: req.MarketDirection,
		Amount:          req.Amount,
		Duration:        req.Duration,
		Profit:          req.Profit,
	}
	if err := demotrade.Default().Create(c.Context(), trade); err != nil {
		return storeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Trade created", "trade": trade})
}

// ListDemoTrades returns a user's demo trades (self or admin).
func ListDemoTrades(c *fiber.Ctx) error {
	email := c.Params("email")
	if !isSelfOrAdmin(currentUser(c), email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	trades, err := database.ListDemoTradesByEmail(c.Context(), email)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"trades": trades})
}
