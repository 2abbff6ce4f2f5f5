package httpapi

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// RegisterRoutes mounts the identity API on app. limiter guards the unauthenticated
// credential endpoints and may be nil. metrics, when non-nil, is served at /metrics.
func RegisterRoutes(app *fiber.App, h *Handler, limiter *IPLimiter, metrics http.Handler) {
	guard := func(c *fiber.Ctx) error { return c.Next() }
	if limiter != nil {
		guard = limiter.Handler
	}

	auth := app.Group("/auth")
	auth.Post("/register", guard, h.Register)
	auth.Post("/login", guard, h.Login)
	auth.Post("/refresh-token", guard, h.RefreshToken)
	auth.Post("/revoke-token", h.RequireBearer, h.RevokeToken)
	auth.Post("/logout-all", h.RequireBearer, h.LogoutAll)
	auth.Get("/verify-email", h.VerifyEmail)
	auth.Post("/forgot-password", guard, h.ForgotPassword)
	auth.Post("/reset-password", guard, h.ResetPassword)

	tf := app.Group("/2fa")
	tf.Get("/setup", h.RequireBearer, h.TwoFactorSetup)
	tf.Post("/enable", h.RequireBearer, h.TwoFactorEnable)
	tf.Post("/disable", h.RequireBearer, h.TwoFactorDisable)
	tf.Post("/verify", guard, h.TwoFactorVerify)

	sec := app.Group("/security", h.RequireBearer)
	sec.Get("/events", h.SecurityEvents)
	sec.Get("/devices", h.Devices)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
}
