package httpapi

import (
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/gofiber/fiber/v2"
)

const claimsKey = "identity.claims"

func (h *Handler) bearer(c *fiber.Ctx) (*goIdentity.AccessClaims, bool) {
	auth := c.Get(fiber.HeaderAuthorization)
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return nil, false
	}
	claims, err := h.engine.ValidateAccessToken(strings.TrimSpace(token))
	if err != nil {
		return nil, false
	}
	return claims, true
}

// RequireBearer rejects requests without a valid access token and stores the claims for
// the handlers.
func (h *Handler) RequireBearer(c *fiber.Ctx) error {
	claims, ok := h.bearer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	c.Locals(claimsKey, claims)
	return c.Next()
}

// Claims returns the claims stored by RequireBearer, or nil.
func Claims(c *fiber.Ctx) *goIdentity.AccessClaims {
	claims, _ := c.Locals(claimsKey).(*goIdentity.AccessClaims)
	return claims
}

func userID(c *fiber.Ctx) string {
	if claims := Claims(c); claims != nil {
		return claims.UID
	}
	return ""
}
