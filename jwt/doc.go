// Package jwt mints and validates the short-lived signed access tokens handed out after a
// successful login or refresh.
//
// Validation is strict: the signing algorithm, issuer, audience and expiry are always checked
// and no clock-skew leeway is applied, so a token stops working at exactly its exp instant.
// Parse failures collapse to [ErrTokenExpired] or [ErrTokenInvalid] so callers can map them
// to a 401 without inspecting library errors.
package jwt
