package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// AuditCounterDef names one audit dispatcher counter and picks it out of AuditStats.
type AuditCounterDef struct {
	Name  string
	Help  string
	Value func(goIdentity.AuditStats) uint64
}

var AuditCounterDefs = []AuditCounterDef{
	{Name: "identity_audit_delivered_total", Help: "Security events handed to the audit sink.", Value: func(s goIdentity.AuditStats) uint64 { return s.Delivered }},
	{Name: "identity_audit_dropped_total", Help: "Security events dropped by the audit dispatcher.", Value: func(s goIdentity.AuditStats) uint64 { return s.Dropped }},
	{Name: "identity_audit_sink_panics_total", Help: "Security events lost to a panicking audit sink.", Value: func(s goIdentity.AuditStats) uint64 { return s.SinkPanics }},
}

var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "identity_login_success_total", Help: "Password logins that issued tokens."},
	{ID: goIdentity.MetricLoginFailure, Name: "identity_login_failure_total", Help: "Password logins rejected as invalid credentials."},
	{ID: goIdentity.MetricLoginLockedRejected, Name: "identity_login_locked_rejected_total", Help: "Logins rejected because the account was locked."},
	{ID: goIdentity.MetricAccountLockedOut, Name: "identity_account_locked_out_total", Help: "Accounts locked after repeated failures."},
	{ID: goIdentity.MetricTwoFactorRequired, Name: "identity_two_factor_required_total", Help: "Logins that stopped at a second-factor challenge."},
	{ID: goIdentity.MetricTwoFactorLoginSuccess, Name: "identity_two_factor_login_success_total", Help: "Second-factor challenges completed."},
	{ID: goIdentity.MetricTwoFactorLoginFailure, Name: "identity_two_factor_login_failure_total", Help: "Wrong codes submitted against a login challenge."},
	{ID: goIdentity.MetricTwoFactorSetupStarted, Name: "identity_two_factor_setup_started_total", Help: "Authenticator setups started."},
	{ID: goIdentity.MetricTwoFactorEnabled, Name: "identity_two_factor_enabled_total", Help: "Authenticator setups confirmed."},
	{ID: goIdentity.MetricTwoFactorDisabled, Name: "identity_two_factor_disabled_total", Help: "Two-factor disable operations."},
	{ID: goIdentity.MetricTwoFactorVerifyFailure, Name: "identity_two_factor_verify_failure_total", Help: "Failed standalone code checks."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "identity_refresh_success_total", Help: "Refresh tokens rotated."},
	{ID: goIdentity.MetricRefreshFailure, Name: "identity_refresh_failure_total", Help: "Refresh attempts rejected."},
	{ID: goIdentity.MetricRefreshReplayDetected, Name: "identity_refresh_replay_detected_total", Help: "Reuse of rotated or revoked refresh tokens."},
	{ID: goIdentity.MetricRefreshSessionExpired, Name: "identity_refresh_session_expired_total", Help: "Refresh attempts with expired tokens."},
	{ID: goIdentity.MetricTokenRevoked, Name: "identity_token_revoked_total", Help: "Refresh tokens revoked by their owner."},
	{ID: goIdentity.MetricLogoutAll, Name: "identity_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: goIdentity.MetricSuspiciousActivity, Name: "identity_suspicious_activity_total", Help: "Repeated-failure findings."},
	{ID: goIdentity.MetricNewDeviceLogin, Name: "identity_new_device_login_total", Help: "Logins from a device outside the known-device window."},
	{ID: goIdentity.MetricPasswordHashUpgraded, Name: "identity_password_hash_upgraded_total", Help: "Stored hashes upgraded after login."},
	{ID: goIdentity.MetricRegistrationSuccess, Name: "identity_registration_success_total", Help: "Accounts registered."},
	{ID: goIdentity.MetricRegistrationDuplicate, Name: "identity_registration_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goIdentity.MetricEmailVerificationSuccess, Name: "identity_email_verification_success_total", Help: "Email addresses verified."},
	{ID: goIdentity.MetricEmailVerificationFailure, Name: "identity_email_verification_failure_total", Help: "Invalid or expired verification tokens."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "identity_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: goIdentity.MetricPasswordResetSuccess, Name: "identity_password_reset_success_total", Help: "Passwords reset."},
	{ID: goIdentity.MetricPasswordResetFailure, Name: "identity_password_reset_failure_total", Help: "Invalid or expired reset tokens."},
	{ID: goIdentity.MetricNotificationFailure, Name: "identity_notification_failure_total", Help: "Notifications that failed to render or send."},
	{ID: goIdentity.MetricRequestThrottled, Name: "identity_request_throttled_total", Help: "Registrations and reset requests refused by the throttle."},
}

var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "identity_validate_latency_seconds", Help: "Access-token validation latency."},
}

// HistogramBounds are the upper bounds of the engine's eight latency buckets, as Prometheus
// le labels.
var HistogramBounds = [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix is HistogramBounds in a form usable inside an instrument name.
var HistogramBoundSuffix = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

const BucketCount = 8

// Cumulative converts the engine's per-bucket counts into cumulative counts. Missing buckets
// count as zero and extra ones are ignored.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
