// Package totp wraps github.com/pquerna/otp for authenticator-app second factors: secret
// generation, the otpauth:// provisioning URI, human-friendly secret formatting and
// code validation with a configurable step tolerance (one 30-second step each way by default).
package totp
