package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Buckets extend to the 60s default request timeout.
var (
	httpBuckets     = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60}
	upstreamBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec
	analysesTotal         *prometheus.CounterVec
	analysisDuration      *prometheus.HistogramVec
	modelInfo             *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinsight_http_requests_total",
				Help: "HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labinsight_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: httpBuckets,
			},
			[]string{"route", "method"},
		),
		upstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinsight_upstream_requests_total",
				Help: "Calls to the model backend by endpoint and result class.",
			},
			[]string{"endpoint", "result"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labinsight_upstream_request_duration_seconds",
				Help:    "Model backend call latency by endpoint and result class.",
				Buckets: upstreamBuckets,
			},
			[]string{"endpoint", "result"},
		),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labinsight_analyses_total",
				Help: "Report analyses by outcome.",
			},
			[]string{"outcome"},
		),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labinsight_analysis_duration_seconds",
				Help:    "End-to-end report analysis latency by outcome.",
				Buckets: upstreamBuckets,
			},
			[]string{"outcome"},
		),
		modelInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "labinsight_model_info",
				Help: "Configured model backend, always 1.",
			},
			[]string{"provider", "model"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.upstreamRequestsTotal,
		m.upstreamDuration,
		m.analysesTotal,
		m.analysisDuration,
		m.modelInfo,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetModel(provider, model string) {
	if m == nil {
		return
	}
	m.modelInfo.Reset()
	m.modelInfo.WithLabelValues(provider, model).Set(1)
}

func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "UNKNOWN"
	}
	m.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

func (m *Metrics) ObserveUpstream(endpoint string, status int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	result := UpstreamResult(status, err)
	m.upstreamRequestsTotal.WithLabelValues(endpoint, result).Inc()
	m.upstreamDuration.WithLabelValues(endpoint, result).Observe(duration.Seconds())
}

func (m *Metrics) ObserveAnalysis(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// UpstreamResult buckets a backend call into a low-cardinality class. A zero
// status means no HTTP response was received.
func UpstreamResult(status int, err error) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	case status >= 200 && status < 300 && err == nil:
		return "ok"
	case status >= 200 && status < 300:
		return "decode_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if err != nil {
		return "transport_error"
	}
	return "unknown"
}
