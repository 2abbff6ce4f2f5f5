package httpapi

import (
	"errors"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/gofiber/fiber/v2"
)

// status maps engine errors to a status code and a client-safe message. Lockout is reported
// without its end time.
func status(err error) (int, string) {
	switch {
	case errors.Is(err, goIdentity.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, goIdentity.ErrAccountLocked):
		return fiber.StatusUnauthorized, "account locked"
	case errors.Is(err, goIdentity.ErrEmailUnverified):
		return fiber.StatusForbidden, "email address not verified"
	case errors.Is(err, goIdentity.ErrSessionExpired),
		errors.Is(err, goIdentity.ErrTokenExpired):
		return fiber.StatusUnauthorized, "session expired"
	case errors.Is(err, goIdentity.ErrTokenRevoked),
		errors.Is(err, goIdentity.ErrTokenInvalid):
		return fiber.StatusUnauthorized, "invalid token"
	case errors.Is(err, goIdentity.ErrInvalidTwoFactorCode):
		return fiber.StatusUnauthorized, "invalid two-factor code"
	case errors.Is(err, goIdentity.ErrTwoFactorChallengeInvalid):
		return fiber.StatusUnauthorized, "two-factor challenge expired"
	case errors.Is(err, goIdentity.ErrUserExists):
		return fiber.StatusConflict, "username or email already registered"
	case errors.Is(err, goIdentity.ErrPasswordPolicy):
		return fiber.StatusBadRequest, "password does not meet policy"
	case errors.Is(err, goIdentity.ErrVerificationTokenInvalid),
		errors.Is(err, goIdentity.ErrResetTokenInvalid):
		return fiber.StatusBadRequest, "invalid or expired token"
	case errors.Is(err, goIdentity.ErrTwoFactorAlreadyEnabled):
		return fiber.StatusBadRequest, "two-factor already enabled"
	case errors.Is(err, goIdentity.ErrTwoFactorNotInitiated):
		return fiber.StatusBadRequest, "two-factor setup not started"
	case errors.Is(err, goIdentity.ErrRateLimited):
		return fiber.StatusTooManyRequests, "too many requests"
	case errors.Is(err, goIdentity.ErrInvalidRequest):
		return fiber.StatusBadRequest, "invalid request"
	case errors.Is(err, goIdentity.ErrUserNotFound):
		return fiber.StatusNotFound, "user not found"
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}

func fail(c *fiber.Ctx, err error) error {
	code, msg := status(err)
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
}
