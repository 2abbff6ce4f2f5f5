package goIdentity

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/notify"
)

const defaultNotificationTimeout = 10 * time.Second

// sendAsync delivers msg on its own goroutine. Failures and panics are logged and counted;
// they never reach the caller.
func (e *Engine) sendAsync(to string, msg notify.Message, err error) {
	if err != nil {
		e.warn("goIdentity: notification render failed: %v", err)
		e.metricInc(MetricNotificationFailure)
		return
	}
	if e.notifier == nil || strings.TrimSpace(to) == "" {
		return
	}

	e.background.Add(1)
	go func() {
		defer e.background.Done()
		defer func() {
			if rec := recover(); rec != nil {
				e.warn("goIdentity: notification sender panicked: %v", rec)
				e.metricInc(MetricNotificationFailure)
			}
		}()

		timeout := e.config.Notification.Timeout
		if timeout <= 0 {
			timeout = defaultNotificationTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if !e.notifier.Send(ctx, to, msg.Subject, msg.HTML) {
			e.warn("goIdentity: notification %q to %q was not delivered", msg.Subject, to)
			e.metricInc(MetricNotificationFailure)
		}
	}()
}

func (e *Engine) alertAsync(user flows.UserRecord, kind flows.AlertKind, meta flows.Meta, failedLogins int) {
	if !e.config.Notification.SendSecurityAlerts {
		return
	}
	switch kind {
	case flows.AlertLockedOut:
		msg, err := notify.LockoutAlert(user.DisplayName, meta.IP)
		e.sendAsync(user.Email, msg, err)
	case flows.AlertNewDevice:
		msg, err := notify.NewDeviceAlert(user.DisplayName, meta.IP, meta.UserAgent, e.now())
		e.sendAsync(user.Email, msg, err)
	case flows.AlertSuspiciousActivity:
		msg, err := notify.SuspiciousActivityAlert(user.DisplayName, meta.IP, failedLogins, e.now())
		e.sendAsync(user.Email, msg, err)
	}
}

// tokenLink appends token as a query parameter to base. An empty base yields the bare token
// so development setups still see something useful in a LogSender.
func tokenLink(base, token string) string {
	if strings.TrimSpace(base) == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
