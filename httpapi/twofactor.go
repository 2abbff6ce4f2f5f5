package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

type codeInput struct {
	Code string `json:"code"`
}

func (h *Handler) TwoFactorSetup(c *fiber.Ctx) error {
	setup, err := h.engine.GenerateTwoFactorSetup(c.UserContext(), userID(c), meta(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"secret":          setup.DisplaySecret,
		"provisioningUri": setup.ProvisioningURI,
	})
}

func (h *Handler) TwoFactorEnable(c *fiber.Ctx) error {
	var in codeInput
	if err := c.BodyParser(&in); err != nil || in.Code == "" {
		return badRequest(c)
	}
	if err := h.engine.EnableTwoFactor(c.UserContext(), userID(c), in.Code, meta(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"enabled": true})
}

func (h *Handler) TwoFactorDisable(c *fiber.Ctx) error {
	if err := h.engine.DisableTwoFactor(c.UserContext(), userID(c), meta(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"enabled": false})
}

// TwoFactorVerify completes a pending login when the challenge cookie is present. Otherwise
// it checks the code for the bearer's account without issuing anything.
func (h *Handler) TwoFactorVerify(c *fiber.Ctx) error {
	var in codeInput
	if err := c.BodyParser(&in); err != nil || in.Code == "" {
		return badRequest(c)
	}

	if challenge := c.Cookies(challengeCookie); challenge != "" {
		res, err := h.engine.CompleteTwoFactorLogin(c.UserContext(), challenge, in.Code, meta(c))
		if err != nil {
			return fail(c, err)
		}
		h.clearCookie(c, challengeCookie)
		return h.issued(c, res)
	}

	claims, ok := h.bearer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no pending two-factor login"})
	}
	valid, err := h.engine.VerifyTwoFactor(c.UserContext(), claims.UID, in.Code)
	if err != nil {
		return fail(c, err)
	}
	if !valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid two-factor code"})
	}
	return c.JSON(fiber.Map{"valid": true})
}
