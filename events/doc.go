// Package events is the security audit log: an append-only record of authentication events
// and the suspicious-activity rules evaluated over it.
//
// # Components
//
//   - [Recorder] appends [SecurityEvent] values to a [Store] and answers paged queries. Logging
//     never fails the caller; storage errors are reported through the configured Warn func.
//   - [Detector] evaluates recent history for a user (repeated failed logins, unknown device)
//     and records the findings as further events. Detector failures are treated as "not
//     suspicious".
//   - [MemoryStore] is a process-local Store for tests and single-node development.
//
// Device identity is the coarse [Fingerprint] of the client IP and user agent.
package events
