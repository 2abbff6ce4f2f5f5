// Package stores provides Redis-backed, short-lived records for flows that hand the client an
// opaque secret: pending two-factor login challenges and single-use email-verification and
// password-reset tokens.
//
// Records are keyed by the SHA-256 of the secret, never by the secret itself. Mutations are
// either Lua scripts or WATCH/MULTI transactions with bounded retry, so a token or challenge
// can be completed at most once. This package does not generate secrets or decide outcomes;
// that is the job of internal/flows and the Engine.
package stores
