package httpapi

import (
	"context"

	goIdentity "github.com/MrEthical07/goIdentity"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/MrEthical07/goIdentity/httpapi Engine

// Engine is the part of *goIdentity.Engine the handlers call.
type Engine interface {
	Register(ctx context.Context, req goIdentity.RegisterRequest, meta goIdentity.RequestMeta) (*goIdentity.Registration, error)
	VerifyEmail(ctx context.Context, token string, meta goIdentity.RequestMeta) error
	ForgotPassword(ctx context.Context, email string, meta goIdentity.RequestMeta) error
	ResetPassword(ctx context.Context, token, newPassword string, meta goIdentity.RequestMeta) error

	Authenticate(ctx context.Context, identifier, password string, meta goIdentity.RequestMeta) (*goIdentity.AuthResult, error)
	CompleteTwoFactorLogin(ctx context.Context, challenge, code string, meta goIdentity.RequestMeta) (*goIdentity.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, meta goIdentity.RequestMeta) (*goIdentity.AuthResult, error)
	RevokeRefreshToken(ctx context.Context, userID, refreshToken string, meta goIdentity.RequestMeta, reason string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID string, meta goIdentity.RequestMeta, reason string) (int, error)
	ValidateAccessToken(tokenStr string) (*goIdentity.AccessClaims, error)

	GenerateTwoFactorSetup(ctx context.Context, userID string, meta goIdentity.RequestMeta) (*goIdentity.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, userID, code string, meta goIdentity.RequestMeta) error
	DisableTwoFactor(ctx context.Context, userID string, meta goIdentity.RequestMeta) error
	VerifyTwoFactor(ctx context.Context, userID, code string) (bool, error)

	SecurityEvents(ctx context.Context, userID string, page, pageSize int) ([]goIdentity.SecurityEvent, int, error)
	KnownDevices(ctx context.Context, userID string) ([]goIdentity.SecurityEvent, error)
}

var _ Engine = (*goIdentity.Engine)(nil)
