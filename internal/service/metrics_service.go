package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-registration-portal/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the portal.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	registryDuration *prometheus.HistogramVec
	registryTotal    *prometheus.CounterVec
	submissions      *prometheus.CounterVec
	activeSessions   prometheus.Gauge

	registryCalls uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	registryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_request_duration_seconds",
		Help:    "Duration of calls to the registration server",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	registryTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_requests_total",
		Help: "Calls to the registration server by outcome",
	}, []string{"operation", "outcome"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registration_submissions_total",
		Help: "Settled registration submissions by form and outcome",
	}, []string{"form", "outcome"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_sessions_active",
		Help: "Form sessions currently held in memory",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, registryDuration, registryTotal, submissions, activeSessions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		registryDuration: registryDuration,
		registryTotal:    registryTotal,
		submissions:      submissions,
		activeSessions:   activeSessions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveRegistryCall records one outbound call to the registration server.
func (m *MetricsService) ObserveRegistryCall(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.registryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.registryTotal.WithLabelValues(operation, outcome).Inc()
	atomic.AddUint64(&m.registryCalls, 1)
}

// ObserveSubmission records a settled submission attempt.
func (m *MetricsService) ObserveSubmission(form string, kind models.OutcomeKind) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(form, string(kind)).Inc()
}

// SetActiveSessions updates the live session gauge.
func (m *MetricsService) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// RegistryCalls returns the number of outbound calls observed so far.
func (m *MetricsService) RegistryCalls() uint64 {
	if m == nil {
		return 0
	}
	return atomic.LoadUint64(&m.registryCalls)
}
