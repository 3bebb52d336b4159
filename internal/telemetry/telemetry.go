// Package telemetry wires opt-in error reporting to Sentry.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
)

const flushTimeout = 2 * time.Second

var telemetryLogger *slog.Logger

func init() {
	var err error
	telemetryLogger, _, err = logging.NewFileLogger("logs/telemetry.log", "telemetry", slog.LevelInfo)
	if err != nil {
		telemetryLogger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "telemetry")
	}
}

// Init configures Sentry and registers the global error reporter. Telemetry
// is strictly opt-in; when disabled this is a no-op.
func Init(settings *conf.Settings) error {
	ts := &settings.Integrations.Telemetry
	if !ts.Enabled {
		telemetryLogger.Info("Telemetry disabled")
		return nil
	}
	if ts.DSN == "" {
		return errors.Newf("telemetry enabled but DSN is empty").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        ts.DSN,
		SampleRate: 1.0,
		Debug:      ts.Debug,

		// Events carry error context only; no hostnames or stack traces.
		AttachStacktrace: false,
		ServerName:       "",
		Environment:      "production",

		Release: fmt.Sprintf("reefey-backend@%s", settings.Version),
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	telemetryLogger.Info("Telemetry initialized", "release", settings.Version)
	return nil
}

// Flush drains buffered events. Call before process exit.
func Flush() {
	if reporter := errors.GetTelemetryReporter(); reporter == nil || !reporter.IsEnabled() {
		return
	}
	if !sentry.Flush(flushTimeout) {
		telemetryLogger.Warn("Sentry flush timed out", "timeout", flushTimeout)
	}
}
