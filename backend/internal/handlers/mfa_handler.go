package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/user/tradedesk/backend/internal/auth"
	"github.com/user/tradedesk/backend/internal/mfa"
)

type mfaCodeRequest struct {
	Token string `json:"token"` // the 6-digit TOTP code
}

func mfaError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, mfa.ErrAlreadyEnabled),
		errors.Is(err, mfa.ErrNotEnabled),
		errors.Is(err, mfa.ErrEnrollmentExpired),
		errors.Is(err, mfa.ErrInvalidCode):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		logrus.WithError(err).Error("two-factor operation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Server error"})
	}
}

// SetupMFA starts enrollment: a provisional secret is stored with its
// expiry and the provisioning URI is returned for the authenticator app.
func SetupMFA(c *fiber.Ctx) error {
	user := currentUser(c)

	uri, err := mfa.Default().Enroll(c.Context(), user)
	if err != nil {
		return mfaError(c, err)
	}

	return c.JSON(fiber.Map{"otpauthUrl": uri})
}

// VerifyMFA confirms enrollment with a code from the authenticator and
// returns a fresh short-lived credential.
func VerifyMFA(c *fiber.Ctx) error {
	req := new(mfaCodeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	user := currentUser(c)
	if err := mfa.Default().Confirm(c.Context(), user, req.Token); err != nil {
		return mfaError(c, err)
	}

	token, err := auth.GenerateShortJWT(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{"message": "2FA enabled successfully", "token": token})
}

// DisableMFA turns two-factor off after verifying a current code.
func DisableMFA(c *fiber.Ctx) error {
	req := new(mfaCodeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	user := currentUser(c)
	if err := mfa.Default().Disable(c.Context(), user, req.Token); err != nil {
		return mfaError(c, err)
	}

	token, err := auth.GenerateShortJWT(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{"message": "2FA disabled successfully", "token": token})
}

// VerifyLoginMFA completes a two-factor login. State is untouched; only
// a fresh credential is issued.
func VerifyLoginMFA(c *fiber.Ctx) error {
	req := new(mfaCodeRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	user := currentUser(c)
	if err := mfa.Default().VerifyLogin(user, req.Token); err != nil {
		return mfaError(c, err)
	}

	token, err := auth.GenerateShortJWT(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.JSON(fiber.Map{"message": "2FA verified, login successful", "token": token})
}
