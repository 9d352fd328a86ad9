package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/user/tradedesk/backend/internal/audit"
	"github.com/user/tradedesk/backend/internal/auth"
	"github.com/user/tradedesk/backend/internal/config"
	"github.com/user/tradedesk/backend/internal/database"
	"github.com/user/tradedesk/backend/internal/demotrade"
	"github.com/user/tradedesk/backend/internal/handlers"
	"github.com/user/tradedesk/backend/internal/mailer"
	"github.com/user/tradedesk/backend/internal/mfa"
	"github.com/user/tradedesk/backend/internal/middleware"
	"github.com/user/tradedesk/backend/internal/requestinfo"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("loading configuration failed")
	}

	ctx := context.Background()

	auth.Init(cfg.JWT.Secret, cfg.App.Name, cfg.JWT.TTL)

	if err := database.InitDB(ctx, cfg.Database.URL); err != nil {
		logrus.WithError(err).Fatal("database initialization failed")
	}
	defer database.CloseDB()

	if err := database.InitSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("schema initialization failed")
	}

	mailer.Init(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password,
		cfg.App.Name, cfg.SMTP.AdminEmail, cfg.SMTP.Retries)

	store := database.Store{}
	resolver := requestinfo.NewResolver(cfg.Geo.Timeout)
	audit.Init(store, mailer.Default(), resolver)
	mfa.Init(store, cfg.App.Name, cfg.MFA.PendingSecretTTL)

	handlers.SetOTPTTL(cfg.Signup.OTPTTL)
	handlers.SetDemoResetBalance(decimal.NewFromFloat(cfg.DemoTrades.ResetBalance))

	// Demo trade settlements run off a persisted due time, so trades
	// that came due during downtime settle on the first poll.
	manager := demotrade.InitManager(store, cfg.DemoTrades.PollInterval)
	go manager.Run(ctx)
	defer manager.Stop()

	app := fiber.New()

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("TradeDesk API is healthy!")
	})

	// Public user lifecycle routes
	users := api.Group("/users")
	users.Post("/signup", handlers.Signup)
	users.Post("/verify-otp", handlers.VerifyOTP)
	users.Post("/resend-otp", handlers.ResendOTP)
	users.Post("/login", handlers.Login)
	users.Get("/reset-password/:email", handlers.RequestPasswordReset)
	users.Put("/new-password", handlers.NewPassword)

	// Everything below requires a valid credential.
	api.Use(middleware.Protected())

	users.Get("/:id", handlers.GetUser)
	users.Put("/update-profile", handlers.UpdateProfile)
	users.Get("/", middleware.RequireAdmin(), handlers.ListUsers)
	users.Delete("/", middleware.RequireAdmin(), handlers.DeleteUsers)
	users.Put("/:id/verify-id", middleware.RequireAdmin(), handlers.VerifyID)

	deposits := api.Group("/deposits")
	deposits.Get("/", middleware.RequireAdmin(), handlers.ListDeposits)
	deposits.Get("/user/:email", handlers.ListUserDeposits)
	deposits.Post("/", handlers.CreateDeposit)
	deposits.Post("/reset-demo-balance", handlers.ResetDemoBalance)
	deposits.Put("/:id", middleware.RequireAdmin(), handlers.ResolveDeposit)

	withdrawals := api.Group("/withdrawals")
	withdrawals.Get("/", middleware.RequireAdmin(), handlers.ListWithdrawals)
	withdrawals.Get("/user/:email", handlers.ListUserWithdrawals)
	withdrawals.Get("/:id", handlers.GetWithdrawal)
	withdrawals.Post("/", handlers.CreateWithdrawal)
	withdrawals.Put("/:id", middleware.RequireAdmin(), handlers.ResolveWithdrawal)

	transactions := api.Group("/transactions")
	transactions.Get("/user/:email", handlers.ListUserTransactions)
	transactions.Get("/", middleware.RequireAdmin(), handlers.ListTransactions)
	transactions.Get("/:id", handlers.GetTransaction)
	transactions.Put("/:id", middleware.RequireAdmin(), handlers.UpdateTransaction)
	transactions.Delete("/:id", middleware.RequireAdmin(), handlers.DeleteTransaction)

	trades := api.Group("/trades")
	trades.Get("/", handlers.ListTrades)
	trades.Get("/demo-trades/:email", handlers.ListDemoTrades)
	trades.Post("/create-demo-trade", handlers.CreateDemoTrade)
	trades.Post("/", middleware.RequireAdmin(), handlers.CreateTrade)
	trades.Put("/:id", middleware.RequireAdmin(), handlers.ResolveTrade)
	trades.Delete("/:id", middleware.RequireAdmin(), handlers.DeleteTrade)

	mfaRoutes := api.Group("/mfa")
	mfaRoutes.Post("/setup", handlers.SetupMFA)
	mfaRoutes.Post("/verify", handlers.VerifyMFA)
	mfaRoutes.Post("/disable", handlers.DisableMFA)
	mfaRoutes.Post("/verify-login", handlers.VerifyLoginMFA)

	api.Get("/activity-logs", middleware.RequireAdmin(), handlers.ListActivityLogs)

	logrus.WithField("addr", cfg.App.ListenAddr).Info("starting server")
	if err := app.Listen(cfg.App.ListenAddr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
