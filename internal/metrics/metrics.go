// Package metrics defines the Prometheus instrumentation for the voice
// pipeline. All collectors are created once at startup and injected into
// the components that record them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the service records.
type Metrics struct {
	// Exchange pipeline metrics.
	ExchangesStarted   *prometheus.CounterVec
	ExchangesCompleted *prometheus.CounterVec
	ExchangesFailed    *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec

	// Synthesis metrics.
	SynthesisRetries prometheus.Counter

	// Artifact store metrics.
	ArtifactsStored  prometheus.Gauge
	ArtifactBytes    prometheus.Gauge
	ArtifactsEvicted prometheus.Counter

	// HTTP API metrics.
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExchangesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monei_exchanges_started_total",
			Help: "Total number of exchanges started, by input path",
		}, []string{"path"}),
		ExchangesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monei_exchanges_completed_total",
			Help: "Total number of exchanges completed successfully, by input path",
		}, []string{"path"}),
		ExchangesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monei_exchanges_failed_total",
			Help: "Total number of failed exchanges, by input path and error kind",
		}, []string{"path", "kind"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monei_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
		SynthesisRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "monei_synthesis_retries_total",
			Help: "Total number of retried synthesis attempts",
		}),
		ArtifactsStored: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monei_artifacts_stored",
			Help: "Current number of stored audio artifacts",
		}),
		ArtifactBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monei_artifact_bytes",
			Help: "Current total size of stored audio artifacts in bytes",
		}),
		ArtifactsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "monei_artifacts_evicted_total",
			Help: "Total number of artifacts removed by TTL, size pressure or request",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monei_http_requests_total",
			Help: "Total number of HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "monei_http_request_duration_seconds",
			Help:    "HTTP request latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
