// Package metrics defines the Prometheus collectors used across the
// application. A single Metrics value is constructed at process start and
// passed to every component that records measurements; there is no
// package-level mutable registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registry *prometheus.Registry

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	ProviderRequests *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec

	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	EmailsSent   *prometheus.CounterVec
	EmailsFailed *prometheus.CounterVec
}

// New creates the application collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "weather_cache_hits_total",
			Help: "The total number of weather cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "weather_cache_misses_total",
			Help: "The total number of weather cache misses",
		}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_provider_requests_total",
			Help: "The total number of weather provider fetch attempts",
		}, []string{"provider"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_provider_failures_total",
			Help: "The total number of failed weather provider fetches",
		}, []string{"provider"}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "The total number of completed jobs by queue and job name",
		}, []string{"queue", "job"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "The total number of terminally failed jobs by queue and job name",
		}, []string{"queue", "job"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Job handler execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue", "job"}),
		EmailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "The total number of emails sent by type",
		}, []string{"type"}),
		EmailsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "The total number of email send failures by type",
		}, []string{"type"}),
	}
}

// Registry exposes the underlying registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
