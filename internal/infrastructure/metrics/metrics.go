// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eicr-vision/internal/domain/port"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	uploadsTotal     *prometheus.CounterVec
	uploadDuration   prometheus.Histogram
	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	qualityScore     prometheus.Histogram
	qualityWarnings  prometheus.Counter
	exportsTotal     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eicr_uploads_total",
			Help: "Image uploads to object storage",
		}, []string{"status"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eicr_upload_duration_seconds",
			Help:    "Time taken to upload one image",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eicr_analyses_total",
			Help: "Analysis attempts by outcome",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eicr_analysis_duration_seconds",
			Help:    "Time from first upload to analysis result",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		qualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eicr_capture_quality_score",
			Help:    "Quality gate score of captured images",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		qualityWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eicr_capture_quality_warnings_total",
			Help: "Captures below the quality threshold",
		}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eicr_report_exports_total",
			Help: "PDF report exports",
		}, []string{"status"}),
	}

	collectors := []prometheus.Collector{
		m.uploadsTotal, m.uploadDuration,
		m.analysesTotal, m.analysisDuration,
		m.qualityScore, m.qualityWarnings,
		m.exportsTotal,
		prometheus.NewGoCollector(),
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

func (m *Metrics) ObserveUpload(ok bool, d time.Duration) {
	m.uploadsTotal.WithLabelValues(status(ok)).Inc()
	m.uploadDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveQuality(score float64, warned bool) {
	m.qualityScore.Observe(score)
	if warned {
		m.qualityWarnings.Inc()
	}
}

func (m *Metrics) ObserveExport(ok bool) {
	m.exportsTotal.WithLabelValues(status(ok)).Inc()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

var _ port.MetricsRecorder = (*Metrics)(nil)
