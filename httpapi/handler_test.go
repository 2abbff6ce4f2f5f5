package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/httpapi"
	"github.com/MrEthical07/goIdentity/httpapi/mocks"
	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bearerToken = "good-access-token"

func newApp(t *testing.T) (*fiber.App, *mocks.MockEngine) {
	t.Helper()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)

	app := fiber.New()
	h := httpapi.NewHandler(engine, httpapi.Options{})
	httpapi.RegisterRoutes(app, h, nil, nil)
	return app, engine
}

func expectBearer(engine *mocks.MockEngine) {
	engine.EXPECT().ValidateAccessToken(bearerToken).
		Return(&goIdentity.AccessClaims{UID: "u-1"}, nil).AnyTimes()
}

func jsonRequest(method, target string, body any) *http.Request {
	var r io.Reader = http.NoBody
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func cookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func successResult() *goIdentity.AuthResult {
	now := time.Now()
	return &goIdentity.AuthResult{
		Status:           goIdentity.StatusSuccess,
		AccessToken:      "access",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     "refresh",
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		User:             &goIdentity.UserInfo{ID: "u-1", DisplayName: "Alice", Roles: []string{"user"}},
	}
}

func TestRegister(t *testing.T) {
	app, engine := newApp(t)

	t.Run("created", func(t *testing.T) {
		engine.EXPECT().Register(gomock.Any(), goIdentity.RegisterRequest{
			Username: "alice", Email: "alice@example.com", Password: "long enough", DisplayName: "Alice",
		}, gomock.Any()).Return(&goIdentity.Registration{
			User:              goIdentity.UserInfo{ID: "u-1", DisplayName: "Alice"},
			VerificationToken: "tok",
		}, nil)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/register", map[string]string{
			"username": "alice", "email": "alice@example.com", "password": "long enough", "displayName": "Alice",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		body := decode(t, resp)
		assert.NotContains(t, body, "verificationToken")
	})

	t.Run("duplicate", func(t *testing.T) {
		engine.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, goIdentity.ErrUserExists)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/register", map[string]string{"username": "alice"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("bad body", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/register", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	app, engine := newApp(t)

	t.Run("success sets refresh cookie", func(t *testing.T) {
		engine.EXPECT().Authenticate(gomock.Any(), "alice", "pw", gomock.Any()).Return(successResult(), nil)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/login", map[string]string{
			"usernameOrEmail": "alice", "password": "pw",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ck := cookie(resp, "refreshToken")
		require.NotNil(t, ck)
		assert.Equal(t, "refresh", ck.Value)
		assert.True(t, ck.HttpOnly)
		assert.True(t, ck.Secure)
		assert.Equal(t, http.SameSiteNoneMode, ck.SameSite)

		body := decode(t, resp)
		assert.Equal(t, "access", body["accessToken"])
		assert.Equal(t, "refresh", body["refreshToken"])
		assert.NotNil(t, body["user"])
	})

	t.Run("two factor pending", func(t *testing.T) {
		engine.EXPECT().Authenticate(gomock.Any(), "bob", "pw", gomock.Any()).Return(&goIdentity.AuthResult{
			Status:             goIdentity.StatusRequiresTwoFactor,
			TwoFactorChallenge: "challenge",
			TwoFactorExpiresAt: time.Now().Add(5 * time.Minute),
		}, nil)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/login", map[string]string{
			"usernameOrEmail": "bob", "password": "pw",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
		assert.Nil(t, cookie(resp, "refreshToken"))
		ck := cookie(resp, "twoFactorChallenge")
		require.NotNil(t, ck)
		assert.Equal(t, "challenge", ck.Value)
		assert.Equal(t, true, decode(t, resp)["requiresTwoFactor"])
	})

	t.Run("failures", func(t *testing.T) {
		cases := []struct {
			err  error
			code int
			msg  string
		}{
			{goIdentity.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid credentials"},
			{goIdentity.ErrAccountLocked, fiber.StatusUnauthorized, "account locked"},
			{goIdentity.ErrEmailUnverified, fiber.StatusForbidden, "email address not verified"},
		}
		for _, tc := range cases {
			engine.EXPECT().Authenticate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&goIdentity.AuthResult{Status: goIdentity.StatusFailed}, tc.err)

			resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/login", map[string]string{
				"usernameOrEmail": "alice", "password": "nope",
			}))
			require.NoError(t, err)
			assert.Equal(t, tc.code, resp.StatusCode)
			assert.Equal(t, tc.msg, decode(t, resp)["error"])
		}
	})
}

func TestRefreshToken(t *testing.T) {
	app, engine := newApp(t)

	t.Run("missing cookie", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/refresh-token", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rotates", func(t *testing.T) {
		engine.EXPECT().Refresh(gomock.Any(), "old", gomock.Any()).Return(successResult(), nil)

		req := jsonRequest(http.MethodPost, "/auth/refresh-token", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "old"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "refresh", cookie(resp, "refreshToken").Value)
	})

	t.Run("revoked clears cookie", func(t *testing.T) {
		engine.EXPECT().Refresh(gomock.Any(), "stale", gomock.Any()).Return(nil, goIdentity.ErrTokenRevoked)

		req := jsonRequest(http.MethodPost, "/auth/refresh-token", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "stale"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		ck := cookie(resp, "refreshToken")
		require.NotNil(t, ck)
		assert.Empty(t, ck.Value)
	})
}

func TestRevokeToken(t *testing.T) {
	app, engine := newApp(t)
	expectBearer(engine)
	engine.EXPECT().ValidateAccessToken("forged").Return(nil, goIdentity.ErrTokenInvalid).AnyTimes()

	t.Run("requires bearer", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/auth/revoke-token", map[string]string{"refreshToken": "r"})
		req.Header.Set("Authorization", "Bearer forged")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("from body", func(t *testing.T) {
		engine.EXPECT().RevokeRefreshToken(gomock.Any(), "u-1", "r", gomock.Any(), gomock.Any()).Return(true, nil)

		req := jsonRequest(http.MethodPost, "/auth/revoke-token", map[string]string{"refreshToken": "r"})
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("unknown token", func(t *testing.T) {
		engine.EXPECT().RevokeRefreshToken(gomock.Any(), "u-1", "gone", gomock.Any(), gomock.Any()).Return(false, nil)

		req := jsonRequest(http.MethodPost, "/auth/revoke-token", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "gone"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("logout all", func(t *testing.T) {
		engine.EXPECT().RevokeAllRefreshTokens(gomock.Any(), "u-1", gomock.Any(), gomock.Any()).Return(3, nil)

		req := jsonRequest(http.MethodPost, "/auth/logout-all", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 3, decode(t, resp)["revoked"])
	})
}

func TestAccountRecovery(t *testing.T) {
	app, engine := newApp(t)

	t.Run("verify email", func(t *testing.T) {
		engine.EXPECT().VerifyEmail(gomock.Any(), "tok", gomock.Any()).Return(nil)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/verify-email?token=tok", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		engine.EXPECT().VerifyEmail(gomock.Any(), "used", gomock.Any()).Return(goIdentity.ErrVerificationTokenInvalid)
		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/auth/verify-email?token=used", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/auth/verify-email", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("forgot password", func(t *testing.T) {
		engine.EXPECT().ForgotPassword(gomock.Any(), "nobody@example.com", gomock.Any()).Return(nil)
		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/forgot-password", map[string]string{"email": "nobody@example.com"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("reset password", func(t *testing.T) {
		engine.EXPECT().ResetPassword(gomock.Any(), "tok", "new password", gomock.Any()).Return(nil)
		resp, err := app.Test(jsonRequest(http.MethodPost, "/auth/reset-password", map[string]string{
			"token": "tok", "newPassword": "new password",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		engine.EXPECT().ResetPassword(gomock.Any(), "tok", "short", gomock.Any()).Return(goIdentity.ErrPasswordPolicy)
		resp, err = app.Test(jsonRequest(http.MethodPost, "/auth/reset-password", map[string]string{
			"token": "tok", "newPassword": "short",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestTwoFactorRoutes(t *testing.T) {
	app, engine := newApp(t)
	expectBearer(engine)

	t.Run("setup", func(t *testing.T) {
		engine.EXPECT().GenerateTwoFactorSetup(gomock.Any(), "u-1", gomock.Any()).Return(&goIdentity.TwoFactorSetup{
			Secret:          "SECRET",
			DisplaySecret:   "SECR ET",
			ProvisioningURI: "otpauth://totp/Example:alice?secret=SECRET",
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/2fa/setup", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "SECR ET", body["secret"])
		assert.Contains(t, body["provisioningUri"], "otpauth://")
	})

	t.Run("enable rejects wrong code", func(t *testing.T) {
		engine.EXPECT().EnableTwoFactor(gomock.Any(), "u-1", "000000", gomock.Any()).Return(goIdentity.ErrInvalidTwoFactorCode)

		req := jsonRequest(http.MethodPost, "/2fa/enable", map[string]string{"code": "000000"})
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("verify completes login", func(t *testing.T) {
		engine.EXPECT().CompleteTwoFactorLogin(gomock.Any(), "challenge", "123456", gomock.Any()).Return(successResult(), nil)

		req := jsonRequest(http.MethodPost, "/2fa/verify", map[string]string{"code": "123456"})
		req.AddCookie(&http.Cookie{Name: "twoFactorChallenge", Value: "challenge"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "refresh", cookie(resp, "refreshToken").Value)
		assert.Empty(t, cookie(resp, "twoFactorChallenge").Value)
	})

	t.Run("verify with bearer", func(t *testing.T) {
		engine.EXPECT().VerifyTwoFactor(gomock.Any(), "u-1", "123456").Return(true, nil)

		req := jsonRequest(http.MethodPost, "/2fa/verify", map[string]string{"code": "123456"})
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Nil(t, cookie(resp, "refreshToken"))
	})

	t.Run("verify after too many wrong codes", func(t *testing.T) {
		engine.EXPECT().VerifyTwoFactor(gomock.Any(), "u-1", "123456").Return(false, goIdentity.ErrRateLimited)

		req := jsonRequest(http.MethodPost, "/2fa/verify", map[string]string{"code": "123456"})
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	})

	t.Run("verify without context", func(t *testing.T) {
		resp, err := app.Test(jsonRequest(http.MethodPost, "/2fa/verify", map[string]string{"code": "123456"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSecurityRoutes(t *testing.T) {
	app, engine := newApp(t)
	expectBearer(engine)

	t.Run("unauthorized", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/security/events", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("events clamps paging", func(t *testing.T) {
		engine.EXPECT().SecurityEvents(gomock.Any(), "u-1", 1, 20).Return([]goIdentity.SecurityEvent{
			{ID: "e-1", UserID: "u-1", Type: "LoginSucceeded", Succeeded: true},
		}, 1, nil)

		req := httptest.NewRequest(http.MethodGet, "/security/events?page=0&pageSize=1000", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.EqualValues(t, 1, body["total"])
		assert.Len(t, body["events"], 1)
	})

	t.Run("devices", func(t *testing.T) {
		engine.EXPECT().KnownDevices(gomock.Any(), "u-1").Return([]goIdentity.SecurityEvent{
			{Fingerprint: "fp", IP: "203.0.113.10", UserAgent: "curl"},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/security/devices", nil)
		req.Header.Set("Authorization", "Bearer "+bearerToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		devices := decode(t, resp)["devices"].([]any)
		require.Len(t, devices, 1)
		assert.Equal(t, "fp", devices[0].(map[string]any)["fingerprint"])
	})
}
