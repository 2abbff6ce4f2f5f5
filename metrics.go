package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	// MetricLoginLockedRejected counts logins refused because the account was already locked.
	MetricLoginLockedRejected
	// MetricAccountLockedOut counts lock transitions, not rejected attempts.
	MetricAccountLockedOut
	MetricTwoFactorRequired
	MetricTwoFactorLoginSuccess
	MetricTwoFactorLoginFailure
	MetricTwoFactorSetupStarted
	MetricTwoFactorEnabled
	MetricTwoFactorDisabled
	MetricTwoFactorVerifyFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReplayDetected
	MetricRefreshSessionExpired
	MetricTokenRevoked
	MetricLogoutAll
	MetricSuspiciousActivity
	MetricNewDeviceLogin
	MetricPasswordHashUpgraded
	MetricRegistrationSuccess
	MetricRegistrationDuplicate
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricNotificationFailure
	// MetricRequestThrottled counts registrations, reset requests and second-factor checks refused
	// by a throttle.
	MetricRequestThrottled
	// MetricValidateLatency is the only histogram: access-token validation latency.
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper edges of every bucket but the last, which is +Inf.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// counterSlot keeps each counter on its own cache line.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters indexed by MetricID. A nil or disabled Metrics ignores
// every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counterSlot
	validate      [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets are not
// cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records a latency sample. Only MetricValidateLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.validate[bucketFor(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.validate[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

func bucketFor(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
