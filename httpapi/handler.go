package httpapi

import (
	"strings"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/gofiber/fiber/v2"
)

const (
	refreshCookie   = "refreshToken"
	challengeCookie = "twoFactorChallenge"
)

// Options controls cookie attributes.
type Options struct {
	// InsecureCookies drops the Secure attribute and uses SameSite=Lax, for plain-HTTP
	// development only.
	InsecureCookies bool
	CookieDomain    string
}

// Handler serves the identity routes.
type Handler struct {
	engine Engine
	opts   Options
}

func NewHandler(engine Engine, opts Options) *Handler {
	return &Handler{engine: engine, opts: opts}
}

type registerInput struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginInput struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type tokenInput struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotInput struct {
	Email string `json:"email"`
}

type resetInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type tokenResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	ExpiresAt    time.Time            `json:"expiresAt"`
	User         *goIdentity.UserInfo `json:"user"`
	Suspicious   bool                 `json:"suspicious,omitempty"`
}

func meta(c *fiber.Ctx) goIdentity.RequestMeta {
	return goIdentity.RequestMeta{
		IP:        c.IP(),
		UserAgent: string(c.Request().Header.UserAgent()),
	}
}

func (h *Handler) cookie(name, value string, expires time.Time) *fiber.Cookie {
	ck := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.opts.CookieDomain,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	}
	if h.opts.InsecureCookies {
		ck.Secure = false
		ck.SameSite = fiber.CookieSameSiteLaxMode
	}
	return ck
}

func (h *Handler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(h.cookie(name, "", time.Unix(0, 0)))
}

// issued writes a successful login or refresh. The refresh token is returned both in the body
// and as an HttpOnly cookie.
func (h *Handler) issued(c *fiber.Ctx, res *goIdentity.AuthResult) error {
	c.Cookie(h.cookie(refreshCookie, res.RefreshToken, res.RefreshExpiresAt))
	return c.Status(fiber.StatusOK).JSON(tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.AccessExpiresAt,
		User:         res.User,
		Suspicious:   res.Suspicious,
	})
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var in registerInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c)
	}
	reg, err := h.engine.Register(c.UserContext(), goIdentity.RegisterRequest{
		Username:    in.Username,
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: in.DisplayName,
	}, meta(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    reg.User,
		"message": "check your inbox to verify your email address",
	})
}

func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return badRequest(c)
	}
	if err := h.engine.VerifyEmail(c.UserContext(), token, meta(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"verified": true})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var in loginInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c)
	}
	res, err := h.engine.Authenticate(c.UserContext(), in.UsernameOrEmail, in.Password, meta(c))
	if err != nil {
		return fail(c, err)
	}
	if res.Status == goIdentity.StatusRequiresTwoFactor {
		c.Cookie(h.cookie(challengeCookie, res.TwoFactorChallenge, res.TwoFactorExpiresAt))
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"requiresTwoFactor": true})
	}
	return h.issued(c, res)
}

func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	token := c.Cookies(refreshCookie)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing refresh token"})
	}
	res, err := h.engine.Refresh(c.UserContext(), token, meta(c))
	if err != nil {
		h.clearCookie(c, refreshCookie)
		return fail(c, err)
	}
	return h.issued(c, res)
}

func (h *Handler) RevokeToken(c *fiber.Ctx) error {
	token := c.Cookies(refreshCookie)
	if token == "" {
		var in tokenInput
		if err := c.BodyParser(&in); err == nil {
			token = in.RefreshToken
		}
	}
	if token == "" {
		return badRequest(c)
	}

	revoked, err := h.engine.RevokeRefreshToken(c.UserContext(), userID(c), token, meta(c), "logout")
	if err != nil {
		return fail(c, err)
	}
	h.clearCookie(c, refreshCookie)
	if !revoked {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token not found"})
	}
	return c.JSON(fiber.Map{"revoked": true})
}

func (h *Handler) LogoutAll(c *fiber.Ctx) error {
	n, err := h.engine.RevokeAllRefreshTokens(c.UserContext(), userID(c), meta(c), "")
	if err != nil {
		return fail(c, err)
	}
	h.clearCookie(c, refreshCookie)
	return c.JSON(fiber.Map{"revoked": n})
}

// ForgotPassword always answers 200 for a well-formed request.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var in forgotInput
	if err := c.BodyParser(&in); err != nil || strings.TrimSpace(in.Email) == "" {
		return badRequest(c)
	}
	if err := h.engine.ForgotPassword(c.UserContext(), in.Email, meta(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "if the address is registered, a reset link is on its way"})
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var in resetInput
	if err := c.BodyParser(&in); err != nil || in.Token == "" {
		return badRequest(c)
	}
	if err := h.engine.ResetPassword(c.UserContext(), in.Token, in.NewPassword, meta(c)); err != nil {
		return fail(c, err)
	}
	h.clearCookie(c, refreshCookie)
	return c.JSON(fiber.Map{"reset": true})
}
