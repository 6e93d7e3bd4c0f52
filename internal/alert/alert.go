// Package alert delivers security notifications to Sentry. Delivery is
// best effort: a failed or unconfigured sink must never change the
// outcome of an authentication decision.
package alert

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// Notifier publishes security events.
type Notifier interface {
	// RepeatedLoginFailures fires when an elevated-role account gets
	// locked after crossing the failure threshold.
	RepeatedLoginFailures(memberID, ip string)

	// DocAccess fires on every authentication attempt against the API
	// documentation endpoints.
	DocAccess(ip string, success bool)
}

// SentryNotifier implements Notifier on the Sentry SDK.
type SentryNotifier struct{}

// Init configures the global Sentry client. An empty DSN disables
// delivery without error.
func Init(dsn, environment string) error {
	if dsn == "" {
		log.Info().Msg("Sentry DSN not configured, security alerts are log-only")
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// Flush drains pending events on shutdown.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// RepeatedLoginFailures implements Notifier.
func (SentryNotifier) RepeatedLoginFailures(memberID, ip string) {
	log.Warn().Str("memberID", memberID).Str("ip", ip).
		Msg("Elevated account locked after repeated login failures")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("alert", "repeated_login_failures")
		scope.SetTag("member_id", memberID)
		scope.SetTag("ip", ip)
		sentry.CaptureMessage("account locked after repeated login failures")
	})
}

// DocAccess implements Notifier.
func (SentryNotifier) DocAccess(ip string, success bool) {
	log.Info().Str("ip", ip).Bool("success", success).Msg("API docs authentication attempt")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("alert", "doc_access")
		scope.SetTag("ip", ip)
		if success {
			scope.SetLevel(sentry.LevelInfo)
		} else {
			scope.SetLevel(sentry.LevelWarning)
		}
		sentry.CaptureMessage("api documentation access attempt")
	})
}

// NopNotifier discards all events. Used in tests.
type NopNotifier struct{}

func (NopNotifier) RepeatedLoginFailures(string, string) {}

func (NopNotifier) DocAccess(string, bool) {}

var (
	_ Notifier = SentryNotifier{}
	_ Notifier = NopNotifier{}
)
