// Package limiters holds the Redis fixed-window throttles used by account flows.
//
// A window is INCR plus EXPIRE on the first hit, so the budget resets a fixed time after
// the first request rather than sliding. Keys are "<prefix>:<scope>:<subject>".
//
// RequestLimiter charges every request. AttemptLimiter charges only failed second-factor codes
// and is cleared by a correct one.
//
// Limiters are nil-safe: a nil limiter allows everything.
package limiters
