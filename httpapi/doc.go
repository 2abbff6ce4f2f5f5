// Package httpapi exposes the identity engine over HTTP with fiber.
//
// Refresh tokens travel in an HttpOnly refreshToken cookie and pending second-factor logins in
// an HttpOnly twoFactorChallenge cookie. Authenticated routes expect an access token in the
// Authorization header as "Bearer <token>". Anonymous credential endpoints are rate limited
// per client IP.
package httpapi
