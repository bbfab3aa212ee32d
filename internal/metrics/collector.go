// Package metrics exposes Prometheus counters for commands, recognition
// state and provider calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ynot/internal/domain"
)

// Collector owns a private registry so several instances (tests, the desktop
// app and the CLI) never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	recognitionTransitions *prometheus.CounterVec
	providerRequests       *prometheus.CounterVec
	queueDrops             prometheus.Counter

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Commands dispatched, by intent and outcome status",
		}, []string{"intent", "status"}),
		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time from transcript to spoken reply",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"intent"}),
		recognitionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_transitions_total",
			Help:      "Recognition state changes, by target state",
		}, []string{"state"}),
		providerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "External information provider calls",
		}, []string{"provider", "result"}),
		queueDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_queue_dropped_total",
			Help:      "Voice transcripts dropped because the dispatch queue was full",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Control API requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Control API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (c *Collector) ObserveDispatch(intent string, status domain.OutcomeStatus, seconds float64) {
	c.dispatchTotal.WithLabelValues(intent, string(status)).Inc()
	c.dispatchDuration.WithLabelValues(intent).Observe(seconds)
}

func (c *Collector) ObserveRecognition(state domain.RecognitionState) {
	c.recognitionTransitions.WithLabelValues(string(state)).Inc()
}

func (c *Collector) ObserveProvider(provider string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.providerRequests.WithLabelValues(provider, result).Inc()
}

func (c *Collector) ObserveQueueDrop() {
	c.queueDrops.Inc()
}

// RecordHTTPRequest records one control API request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
