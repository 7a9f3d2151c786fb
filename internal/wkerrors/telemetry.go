package wkerrors

import (
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter forwards errors built with PriorityHigh or
// PriorityCritical to an external error-tracking system. Optional: if none is installed, Build() is a
// pure allocation with no I/O.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter using sentry-go. Build
// hands it only errors whose Priority is PriorityHigh or
// PriorityCritical; errors without a priority are never reported.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter constructs a reporter. Call sentry.Init separately
// during process startup (config-driven DSN); this type only decides
// whether to forward.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (r *SentryReporter) IsEnabled() bool { return r != nil && r.enabled }

func (r *SentryReporter) ReportError(ee *EnhancedError) {
	if !r.IsEnabled() || ee == nil || ee.IsReported() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		for k, v := range ee.GetContext() {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(ee.Err)
	})
	ee.MarkReported()
}

var (
	reporter            TelemetryReporter
	reporterMu          sync.RWMutex
	hasActiveReporting atomic.Bool
)

// SetReporter installs the global telemetry reporter. Passing nil
// disables reporting.
func SetReporter(r TelemetryReporter) {
	reporterMu.Lock()
	reporter = r
	reporterMu.Unlock()
	hasActiveReporting.Store(r != nil && r.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}
	if ee.Priority != PriorityCritical && ee.Priority != PriorityHigh {
		return
	}
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r == nil || !r.IsEnabled() {
		return
	}
	r.ReportError(ee)
}
