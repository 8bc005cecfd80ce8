package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for the resolution engine. All record
// methods are safe on a nil receiver, so metrics stay optional.
type Metrics struct {
	config MetricsConfig

	resolutionsStarted   prometheus.Counter
	resolutionsCompleted *prometheus.CounterVec
	resolutionDuration   *prometheus.HistogramVec

	repositoryLoads *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec

	featuresResolved prometheus.Counter
	featuresSkipped  *prometheus.CounterVec

	directivesEmitted *prometheus.CounterVec
	warnings          *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resolutionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_started_total",
				Help:      "Total number of resolutions started",
			},
		),
		resolutionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_completed_total",
				Help:      "Total number of resolutions completed",
			},
			[]string{"status"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Duration of resolution runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		repositoryLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repository_loads_total",
				Help:      "Total number of repository descriptor loads",
			},
			[]string{"status"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repository_load_duration_seconds",
				Help:      "Duration of repository descriptor loads in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		featuresResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "features_resolved_total",
				Help:      "Total number of features translated into directives",
			},
		),
		featuresSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "features_skipped_total",
				Help:      "Total number of selected features skipped",
			},
			[]string{"reason"},
		),

		directivesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "directives_emitted_total",
				Help:      "Total number of provisioning directives emitted",
			},
			[]string{"kind"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warnings_total",
				Help:      "Total number of resolution warnings",
			},
			[]string{"code"},
		),
	}

	registry.MustRegister(
		m.resolutionsStarted,
		m.resolutionsCompleted,
		m.resolutionDuration,
		m.repositoryLoads,
		m.loadDuration,
		m.featuresResolved,
		m.featuresSkipped,
		m.directivesEmitted,
		m.warnings,
	)

	return m, nil
}

// RecordResolutionStarted increments the counter for started resolutions.
func (m *Metrics) RecordResolutionStarted() {
	if m == nil || m.resolutionsStarted == nil {
		return
	}
	m.resolutionsStarted.Inc()
}

// RecordResolutionCompleted records a finished resolution with its status
// and duration.
func (m *Metrics) RecordResolutionCompleted(status string, duration time.Duration) {
	if m == nil || m.resolutionsCompleted == nil {
		return
	}
	m.resolutionsCompleted.WithLabelValues(status).Inc()
	m.resolutionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRepositoryLoad records one descriptor load attempt.
func (m *Metrics) RecordRepositoryLoad(status string, duration time.Duration) {
	if m == nil || m.repositoryLoads == nil {
		return
	}
	m.repositoryLoads.WithLabelValues(status).Inc()
	m.loadDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFeatureResolved counts one feature translated into directives.
func (m *Metrics) RecordFeatureResolved() {
	if m == nil || m.featuresResolved == nil {
		return
	}
	m.featuresResolved.Inc()
}

// RecordFeatureSkipped counts one selected feature skipped for a reason.
func (m *Metrics) RecordFeatureSkipped(reason string) {
	if m == nil || m.featuresSkipped == nil {
		return
	}
	m.featuresSkipped.WithLabelValues(reason).Inc()
}

// RecordDirective counts one emitted directive by kind.
func (m *Metrics) RecordDirective(kind string) {
	if m == nil || m.directivesEmitted == nil {
		return
	}
	m.directivesEmitted.WithLabelValues(kind).Inc()
}

// RecordWarning counts one warning by code.
func (m *Metrics) RecordWarning(code string) {
	if m == nil || m.warnings == nil {
		return
	}
	m.warnings.WithLabelValues(code).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics endpoint.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}
