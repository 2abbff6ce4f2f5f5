package goIdentity

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/events"
)

// SecurityEvents returns one page of userID's events, newest first, with the total count.
func (e *Engine) SecurityEvents(ctx context.Context, userID string, page, pageSize int) ([]SecurityEvent, int, error) {
	if e == nil || e.recorder == nil {
		return nil, 0, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return nil, 0, ErrInvalidRequest
	}
	return e.recorder.Query(ctx, userID, page, pageSize)
}

// QuerySecurityEvents pages through events across users. Unknown event types in the filter
// return ErrInvalidEventType.
func (e *Engine) QuerySecurityEvents(ctx context.Context, filter EventFilter, page, pageSize int) ([]SecurityEvent, int, error) {
	if e == nil || e.recorder == nil {
		return nil, 0, ErrEngineNotReady
	}
	return e.recorder.QueryAll(ctx, filter, page, pageSize)
}

// IsKnownDevice reports whether fingerprint appeared in a successful login for userID inside
// the known-device window.
func (e *Engine) IsKnownDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	if e == nil || e.detector == nil {
		return false, ErrEngineNotReady
	}
	return e.detector.IsKnownDevice(ctx, userID, fingerprint)
}

// KnownDevices returns the latest successful login per device fingerprint, newest first.
func (e *Engine) KnownDevices(ctx context.Context, userID string) ([]SecurityEvent, error) {
	if e == nil || e.detector == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}
	return e.detector.KnownDevices(ctx, userID)
}

// EvaluateActivity runs the suspicious-activity rules for userID outside a login. Matching
// rules record their own events.
func (e *Engine) EvaluateActivity(ctx context.Context, userID string, meta RequestMeta) (Assessment, error) {
	if e == nil || e.detector == nil {
		return Assessment{}, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return Assessment{}, ErrInvalidRequest
	}
	a := e.detector.Evaluate(ctx, events.Activity{
		UserID:    userID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	if a.RepeatedFailures {
		e.metricInc(MetricSuspiciousActivity)
	}
	if a.NewDevice {
		e.metricInc(MetricNewDeviceLogin)
	}
	return a, nil
}

// DeviceFingerprint returns the fingerprint the detector derives from meta.
func DeviceFingerprint(meta RequestMeta) string {
	return events.Fingerprint(meta.IP, meta.UserAgent)
}

func isUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
