// Package internal holds helpers private to goIdentity: opaque token generation and hashing.
//
// # Sub-packages
//
//   - audit: async delivery of security events to an external sink
//   - flows: login, refresh and two-factor orchestration behind the Engine
//   - stores: Redis-backed single-use challenges (2FA login, email verification, password reset)
package internal
