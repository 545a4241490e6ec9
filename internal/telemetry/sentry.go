// Package telemetry reports categorized errors to Sentry when enabled.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
	"github.com/tphakala/plantdoc/internal/privacy"
)

var (
	initMu      sync.Mutex
	initialized bool
)

// Init configures the Sentry SDK and installs the error reporter. It is a
// no-op when telemetry is disabled.
func Init(settings *conf.TelemetrySettings, release string) error {
	return initWithTransport(settings, release, nil)
}

func initWithTransport(settings *conf.TelemetrySettings, release string, transport sentry.Transport) error {
	if settings == nil || !settings.Enabled {
		return nil
	}
	if settings.DSN == "" && transport == nil {
		return errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	initMu.Lock()
	defer initMu.Unlock()

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       settings.SampleRate,
		Environment:      settings.Environment,
		Release:          "plantdoc@" + release,
		AttachStacktrace: false,
		ServerName:       "",
		Transport:        transport,
		BeforeSend:       applyPrivacyFilters,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetPrivacyScrubber(privacy.ScrubMessage)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized = true

	GetLogger().Info("error telemetry enabled",
		logger.String("environment", settings.Environment),
		logger.Float64("sample_rate", settings.SampleRate))
	return nil
}

// applyPrivacyFilters strips host identity and free-form data from events.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil
	event.Message = privacy.ScrubMessage(event.Message)

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	initMu.Lock()
	enabled := initialized
	initMu.Unlock()
	if enabled {
		sentry.Flush(timeout)
	}
}

// Shutdown flushes pending events and detaches the error reporter.
func Shutdown(timeout time.Duration) {
	Flush(timeout)

	initMu.Lock()
	defer initMu.Unlock()
	if initialized {
		errors.SetTelemetryReporter(nil)
		initialized = false
	}
}
