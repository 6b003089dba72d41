package port

import (
	"time"

	"eicr-vision/internal/domain/entity"
)

// Notifier delivers user-visible messages (toasts) to a session.
type Notifier interface {
	Notify(n entity.Notification)
}

// MetricsRecorder collects pipeline counters.
type MetricsRecorder interface {
	ObserveUpload(ok bool, d time.Duration)
	ObserveAnalysis(outcome string, d time.Duration)
	ObserveQuality(score float64, warned bool)
	ObserveExport(ok bool)
}

// Analysis outcomes reported to MetricsRecorder.
const (
	OutcomeSuccess     = "success"
	OutcomeNoFindings  = "no_findings"
	OutcomeDegraded    = "degraded"
	OutcomeUploadError = "upload_error"
	OutcomeTransport   = "transport_error"
	OutcomeApplication = "application_error"
	OutcomeCanceled    = "canceled"
	OutcomeInvalid     = "invalid_input"
)

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveUpload(bool, time.Duration)      {}
func (NopMetrics) ObserveAnalysis(string, time.Duration) {}
func (NopMetrics) ObserveQuality(float64, bool)          {}
func (NopMetrics) ObserveExport(bool)                    {}
