package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alert_dispatch"

// Metrics stores Prometheus collectors used by the API, the worker and the
// dispatch engine.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	dispatchTotal       *prometheus.CounterVec
	dispatchAttempts    *prometheus.HistogramVec
	providerSendSeconds *prometheus.HistogramVec
	rateLimitedTotal    *prometheus.CounterVec
	retryScheduledTotal *prometheus.CounterVec
	dispatchInflight    *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Dispatch outcomes by provider and result (success or failure reason).",
			},
			[]string{"provider", "result"},
		),
		dispatchAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts",
				Help:      "Provider send attempts made per dispatch.",
				Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
			},
			[]string{"provider"},
		),
		providerSendSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_send_duration_seconds",
				Help:      "Single provider send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		rateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Dispatches rejected by the rate limiter, by limit.",
			},
			[]string{"limit"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_scheduled_total",
				Help:      "Total number of provider retries scheduled.",
			},
			[]string{"provider"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight dispatches grouped by source.",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchTotal,
		m.dispatchAttempts,
		m.providerSendSeconds,
		m.rateLimitedTotal,
		m.retryScheduledTotal,
		m.dispatchInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

// ObserveDispatch records the final outcome of one dispatch call.
func (m *Metrics) ObserveDispatch(result domain.DeliveryResult) {
	if m == nil {
		return
	}
	provider := normalizeLabel(result.Provider)
	outcome := "success"
	if !result.Success {
		outcome = normalizeLabel(result.FailureReason.String())
	}
	m.dispatchTotal.WithLabelValues(provider, outcome).Inc()
	m.dispatchAttempts.WithLabelValues(provider).Observe(float64(result.AttemptsMade))
}

func (m *Metrics) ObserveProviderSend(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerSendSeconds.WithLabelValues(normalizeLabel(provider)).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncRateLimited(limit string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(normalizeLabel(limit)).Inc()
}

func (m *Metrics) IncRetryScheduled(provider string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncInflight(source string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *Metrics) DecInflight(source string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeLabel(source)).Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
