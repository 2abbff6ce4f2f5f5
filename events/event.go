package events

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventType is the closed vocabulary of security events.
type EventType string

const (
	EventLoginSucceeded         EventType = "LoginSucceeded"
	EventLoginFailed            EventType = "LoginFailed"
	EventLockedOut              EventType = "LockedOut"
	EventTwoFactorRequired      EventType = "TwoFactorRequired"
	EventTwoFactorSucceeded     EventType = "TwoFactorSucceeded"
	EventTwoFactorFailed        EventType = "TwoFactorFailed"
	EventTwoFactorSetupStarted  EventType = "TwoFactorSetupStarted"
	EventTwoFactorEnabled       EventType = "TwoFactorEnabled"
	EventTwoFactorDisabled      EventType = "TwoFactorDisabled"
	EventTokenRefreshed         EventType = "TokenRefreshed"
	EventTokenRevoked           EventType = "TokenRevoked"
	EventSessionsRevoked        EventType = "SessionsRevoked"
	EventUserRegistered         EventType = "UserRegistered"
	EventEmailVerified          EventType = "EmailVerified"
	EventPasswordResetRequested EventType = "PasswordResetRequested"
	EventPasswordReset          EventType = "PasswordReset"
	EventSuspiciousActivity     EventType = "SuspiciousActivity"
	EventNewDeviceLogin         EventType = "NewDeviceLogin"
)

var knownTypes = map[EventType]struct{}{
	EventLoginSucceeded:         {},
	EventLoginFailed:            {},
	EventLockedOut:              {},
	EventTwoFactorRequired:      {},
	EventTwoFactorSucceeded:     {},
	EventTwoFactorFailed:        {},
	EventTwoFactorSetupStarted:  {},
	EventTwoFactorEnabled:       {},
	EventTwoFactorDisabled:      {},
	EventTokenRefreshed:         {},
	EventTokenRevoked:           {},
	EventSessionsRevoked:        {},
	EventUserRegistered:         {},
	EventEmailVerified:          {},
	EventPasswordResetRequested: {},
	EventPasswordReset:          {},
	EventSuspiciousActivity:     {},
	EventNewDeviceLogin:         {},
}

// Valid reports whether t belongs to the vocabulary.
func (t EventType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// SecurityEvent is one immutable audit record.
type SecurityEvent struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId,omitempty"`
	Type        EventType         `json:"eventType"`
	Description string            `json:"description"`
	IP          string            `json:"ipAddress,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Data        map[string]string `json:"additionalData,omitempty"`
	Succeeded   bool              `json:"succeeded"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Filter narrows a query. Zero-valued fields are ignored.
type Filter struct {
	UserID      string
	Types       []EventType
	Since       time.Time
	Until       time.Time
	IP          string
	Fingerprint string
	Succeeded   *bool
	ExcludeID   string
}

// Matches reports whether e satisfies f. Stores that cannot push a filter down can use it.
func (f Filter) Matches(e SecurityEvent) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Timestamp.Before(f.Until) {
		return false
	}
	if f.IP != "" && e.IP != f.IP {
		return false
	}
	if f.Fingerprint != "" && e.Fingerprint != f.Fingerprint {
		return false
	}
	if f.Succeeded != nil && e.Succeeded != *f.Succeeded {
		return false
	}
	if f.ExcludeID != "" && e.ID == f.ExcludeID {
		return false
	}
	return true
}

// Fingerprint is the device identity for an (ip, user agent) pair: hex SHA-256 over both
// values separated by a NUL byte. It returns "" when both are empty.
func Fingerprint(ip, userAgent string) string {
	if ip == "" && userAgent == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil))
}
