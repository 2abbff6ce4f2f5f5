// Package goIdentity is an identity backend core: password login with lockout, JWT access
// tokens, rotating refresh tokens with replay detection, TOTP two-factor and a security event
// log with suspicious-activity detection.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface: [Engine], [Builder], [Config] and value types. Persistence
// of users sits behind [CredentialStore]; outbound mail sits behind [NotificationSender]. Flow
// orchestration, challenge stores and audit dispatch live under internal/.
//
// # Request context
//
// Client IP and user agent are passed explicitly as [RequestMeta] on every call. The engine
// never reads them from a context value.
//
// # Failure model
//
// Authentication outcomes are values: [AuthResult] carries a [FailureKind] and the returned
// error is the matching sentinel. Event recording, detection and notification failures are
// logged and never change an authentication outcome.
package goIdentity
