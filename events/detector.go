package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxKnownDeviceScan = 1000

// DetectorConfig holds rule thresholds. Zero values take the defaults noted per field.
type DetectorConfig struct {
	// FailedLoginThreshold is the number of recent LoginFailed events that marks activity
	// suspicious. Default 3.
	FailedLoginThreshold int
	// FailedLoginWindow is how far back failed logins are counted. Default 30m.
	FailedLoginWindow time.Duration
	// KnownDeviceWindow is how long a successful login keeps a device known. Default 90 days.
	KnownDeviceWindow time.Duration

	Now  func() time.Time
	Warn func(string, ...any)
}

// Activity describes the login being evaluated. SkipEventID excludes the LoginSucceeded event
// already recorded for this login from device lookups.
type Activity struct {
	UserID      string
	IP          string
	UserAgent   string
	SkipEventID string
}

// Assessment is the outcome of Evaluate. Events holds whatever the rules recorded.
type Assessment struct {
	Suspicious         bool
	RepeatedFailures   bool
	NewDevice          bool
	FailedLoginsInPast int
	Events             []SecurityEvent
}

// Detector evaluates recent history to flag risky logins.
type Detector struct {
	recorder *Recorder
	store    Store
	cfg      DetectorConfig
}

// NewDetector builds a Detector over recorder's store.
func NewDetector(recorder *Recorder, cfg DetectorConfig) (*Detector, error) {
	if recorder == nil {
		return nil, errors.New("events: recorder is required")
	}
	if cfg.FailedLoginThreshold <= 0 {
		cfg.FailedLoginThreshold = 3
	}
	if cfg.FailedLoginWindow <= 0 {
		cfg.FailedLoginWindow = 30 * time.Minute
	}
	if cfg.KnownDeviceWindow <= 0 {
		cfg.KnownDeviceWindow = 90 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = recorder.now
	}
	if cfg.Warn == nil {
		cfg.Warn = recorder.warn
	}
	return &Detector{recorder: recorder, store: recorder.store, cfg: cfg}, nil
}

// Evaluate runs every rule for activity and records an event for each rule that fires.
// Any internal error or panic yields a non-suspicious assessment.
func (d *Detector) Evaluate(ctx context.Context, activity Activity) (result Assessment) {
	defer func() {
		if rec := recover(); rec != nil {
			d.cfg.Warn("goIdentity: suspicious activity evaluation panicked for user %q: %v", activity.UserID, rec)
			result = Assessment{}
		}
	}()

	if strings.TrimSpace(activity.UserID) == "" {
		return Assessment{}
	}
	now := d.cfg.Now()

	_, count, err := d.store.Query(ctx, Filter{
		UserID: activity.UserID,
		Types:  []EventType{EventLoginFailed},
		Since:  now.Add(-d.cfg.FailedLoginWindow),
	}, 0, 1)
	if err != nil {
		d.cfg.Warn("goIdentity: failed-login lookup for user %q: %v", activity.UserID, err)
		return Assessment{}
	}
	result.FailedLoginsInPast = count

	var known = true
	fingerprint := Fingerprint(activity.IP, activity.UserAgent)
	if fingerprint != "" {
		known, err = d.knownSince(ctx, activity.UserID, fingerprint, activity.SkipEventID, now)
		if err != nil {
			d.cfg.Warn("goIdentity: device lookup for user %q: %v", activity.UserID, err)
			return Assessment{}
		}
	}

	if count >= d.cfg.FailedLoginThreshold {
		result.Suspicious = true
		result.RepeatedFailures = true
		result.Events = append(result.Events, d.recorder.Log(ctx, Entry{
			UserID:      activity.UserID,
			Type:        EventSuspiciousActivity,
			Description: fmt.Sprintf("%d failed login attempts in the last %s", count, d.cfg.FailedLoginWindow),
			IP:          activity.IP,
			UserAgent:   activity.UserAgent,
			Data: map[string]string{
				"rule":          "repeated_failed_logins",
				"failed_logins": strconv.Itoa(count),
			},
			Succeeded: true,
		}))
	}

	if !known {
		result.Suspicious = true
		result.NewDevice = true
		result.Events = append(result.Events, d.recorder.Log(ctx, Entry{
			UserID:      activity.UserID,
			Type:        EventNewDeviceLogin,
			Description: "Login from a device not seen in the known-device window",
			IP:          activity.IP,
			UserAgent:   activity.UserAgent,
			Data: map[string]string{
				"rule":        "new_device",
				"fingerprint": fingerprint,
			},
			Succeeded: true,
		}))
	}

	return result
}

// IsKnownDevice reports whether userID had a successful login with fingerprint inside the
// known-device window.
func (d *Detector) IsKnownDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	if strings.TrimSpace(userID) == "" || fingerprint == "" {
		return false, nil
	}
	return d.knownSince(ctx, userID, fingerprint, "", d.cfg.Now())
}

func (d *Detector) knownSince(ctx context.Context, userID, fingerprint, skipID string, now time.Time) (bool, error) {
	_, total, err := d.store.Query(ctx, Filter{
		UserID:      userID,
		Types:       []EventType{EventLoginSucceeded},
		Since:       now.Add(-d.cfg.KnownDeviceWindow),
		Fingerprint: fingerprint,
		ExcludeID:   skipID,
	}, 0, 1)
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// KnownDevices returns the most recent LoginSucceeded event for each distinct fingerprint in
// the known-device window, newest first.
func (d *Detector) KnownDevices(ctx context.Context, userID string) ([]SecurityEvent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("events: user id is required")
	}
	recent, _, err := d.store.Query(ctx, Filter{
		UserID: userID,
		Types:  []EventType{EventLoginSucceeded},
		Since:  d.cfg.Now().Add(-d.cfg.KnownDeviceWindow),
	}, 0, maxKnownDeviceScan)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(recent))
	devices := make([]SecurityEvent, 0)
	for _, e := range recent {
		if e.Fingerprint == "" {
			continue
		}
		if _, ok := seen[e.Fingerprint]; ok {
			continue
		}
		seen[e.Fingerprint] = struct{}{}
		devices = append(devices, e)
	}
	return devices, nil
}
