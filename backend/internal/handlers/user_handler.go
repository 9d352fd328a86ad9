package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/user/tradedesk/backend/internal/audit"
	"github.com/user/tradedesk/backend/internal/auth"
	"github.com/user/tradedesk/backend/internal/database"
	"github.com/user/tradedesk/backend/internal/mailer"
	"github.com/user/tradedesk/backend/internal/models"
)

// otpTTL is set from config in main; signup codes expire after it.
var otpTTL = 5 * time.Minute

// SetOTPTTL configures the signup code lifetime.
func SetOTPTTL(ttl time.Duration) { otpTTL = ttl }

// SignupRequest starts registration: an OTP is mailed to the address.
type SignupRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	ReferredBy string `json:"referredBy"`
}

// VerifyOTPRequest completes registration with the mailed code.
type VerifyOTPRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	ReferredBy string `json:"referredBy"`
}

// LoginRequest authenticates by email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned on successful login or registration.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup checks availability and mails a verification code. The account
// itself is only created once the code comes back.
func Signup(c *fiber.Ctx) error {
	req := new(SignupRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.Username) < 3 || !strings.Contains(req.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Valid username and email are required"})
	}

	existing, err := database.GetUserByEmailOrUsername(c.Context(), req.Email, req.Username)
	if err != nil {
		logrus.WithError(err).Error("checking existing user failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error checking user"})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username or email already exists, please login"})
	}

	otp, err := database.CreateOTP(c.Context(), req.Email, otpTTL)
	if err != nil {
		logrus.WithError(err).Error("creating signup otp failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create verification code"})
	}

	if err := mailer.Default().OTPMail(req.Email, otp.Code); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send verification code"})
	}

	return c.JSON(fiber.Map{"message": "success"})
}

// ResendOTP issues a fresh code for an in-progress signup.
func ResendOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	otp, err := database.CreateOTP(c.Context(), strings.ToLower(req.Email), otpTTL)
	if err != nil {
		logrus.WithError(err).Error("recreating signup otp failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create verification code"})
	}

	if err := mailer.Default().OTPMail(req.Email, otp.Code); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send verification code"})
	}

	return c.JSON(fiber.Map{"message": "success"})
}

// VerifyOTP validates the mailed code and creates the account. The
// welcome mail is best-effort.
func VerifyOTP(c *fiber.Ctx) error {
	req := new(VerifyOTPRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.Password) < 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must be at least 5 characters"})
	}

	ok, err := database.ConsumeOTP(c.Context(), req.Email, req.Code)
	if err != nil {
		logrus.WithError(err).Error("consuming signup otp failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error verifying code"})
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid or expired verification code"})
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logrus.WithError(err).Error("hashing password failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process password"})
	}

	user := &models.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   hashed,
		ReferredBy: req.ReferredBy,
	}
	if err := database.CreateUser(c.Context(), user); err != nil {
		logrus.WithError(err).WithField("email", req.Email).Error("creating user failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create user"})
	}

	if err := mailer.Default().WelcomeMail(user.Email); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Warn("welcome mail failed")
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		logrus.WithError(err).Error("generating token failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "User created, but failed to generate token"})
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: user})
}

// Login authenticates by email and password. Accounts with two-factor
// enabled still need VerifyLoginMFA before the credential is usable for
// sensitive routes; the mfa flag on the returned user tells the client.
func Login(c *fiber.Ctx) error {
	req := new(LoginRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email and password cannot be empty"})
	}

	user, err := database.GetUserByEmail(c.Context(), strings.ToLower(req.Email))
	if err != nil {
		logrus.WithError(err).Error("loading user failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error finding user"})
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	token, err := auth.GenerateJWT(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		logrus.WithError(err).Error("generating token failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(AuthResponse{Token: token, User: user})
}

// GetUser returns one account by id (self or admin).
func GetUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	user, err := database.GetUserByID(c.Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if !isSelfOrAdmin(currentUser(c), user.Email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	return c.JSON(fiber.Map{"user": user})
}

// ListUsers returns every account, newest first. Admin only.
func ListUsers(c *fiber.Ctx) error {
	users, err := database.ListUsers(c.Context())
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(users)
}

// RequestPasswordReset mails a reset link for the address.
func RequestPasswordReset(c *fiber.Ctx) error {
	email := c.Params("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	if err := mailer.Default().PasswordResetMail(email, "https://app.tradedesk.example/reset-password"); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send reset link"})
	}

	return c.JSON(fiber.Map{"message": "Password reset link sent successfully"})
}

// NewPassword stores a new password for the account.
func NewPassword(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}
	if len(req.Password) < 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Password must be at least 5 characters"})
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process password"})
	}

	if err := database.UpdatePassword(c.Context(), strings.ToLower(req.Email), hashed); err != nil {
		return storeError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// UpdateProfile applies a partial profile update. The payload is an
// open map on purpose: anything privileged (isAdmin in particular) is
// scrubbed in the store before it can reach a column, and only
// whitelisted profile fields are writable at all.
func UpdateProfile(c *fiber.Ctx) error {
	update := map[string]any{}
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	email, _ := update["email"].(string)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	if !isSelfOrAdmin(currentUser(c), email) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := database.UpdateProfile(c.Context(), email, update)
	if err != nil {
		return storeError(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}

// VerifyID flips an account's KYC verification flag. Admin only, audited.
func VerifyID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	if err := database.SetIDVerified(c.Context(), id, req.Verified); err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "kyc_verify",
		TargetCollection: "User",
		TargetID:         id.String(),
		Metadata:         map[string]any{"verified": req.Verified},
	})

	return c.JSON(fiber.Map{"message": "Verification status updated"})
}

// DeleteUsers removes accounts by ids and/or username/email prefix.
// Admin only, audited.
func DeleteUsers(c *fiber.Ctx) error {
	var req struct {
		UserIDs        []uuid.UUID `json:"userIds"`
		UsernamePrefix string      `json:"usernamePrefix"`
		EmailPrefix    string      `json:"emailPrefix"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	if len(req.UserIDs) == 0 && req.UsernamePrefix == "" && req.EmailPrefix == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No valid filter criteria provided"})
	}

	deleted, err := database.DeleteUsers(c.Context(), req.UserIDs, req.UsernamePrefix, req.EmailPrefix)
	if err != nil {
		return storeError(c, err)
	}

	audit.Log(c.Context(), reqInfo(c), audit.Record{
		Actor:            currentUser(c),
		Action:           "users_delete",
		TargetCollection: "User",
		Metadata: map[string]any{
			"deletedCount":   deleted,
			"usernamePrefix": req.UsernamePrefix,
			"emailPrefix":    req.EmailPrefix,
		},
		NotifyAdmin: true,
	})

	return c.JSON(fiber.Map{"success": true, "deletedCount": deleted})
}
