package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UploadMetrics captures counters for the ingestion pipeline.
type UploadMetrics interface {
	IncUploadsReceived(encoding string)
	IncUploadsCompleted(mode, status string)
	ObserveUploadBytes(sizeBytes float64)
}

// HTTPMetrics captures request metrics for the HTTP surface.
type HTTPMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements UploadMetrics without emitting anything.
type Noop struct{}

func (Noop) IncUploadsReceived(string)          {}
func (Noop) IncUploadsCompleted(string, string) {}
func (Noop) ObserveUploadBytes(float64)         {}

// NoopHTTP implements HTTPMetrics without emitting anything.
type NoopHTTP struct{}

func (NoopHTTP) ObserveRequest(string, string, string, float64) {}

// Prom implements UploadMetrics backed by Prometheus collectors.
type Prom struct {
	uploadsReceived  *prometheus.CounterVec
	uploadsCompleted *prometheus.CounterVec
	uploadBytes      prometheus.Histogram
	once             sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		uploadsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_received_total",
			Help:      "Upload requests received by encoding",
		}, []string{"encoding"}),
		uploadsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_completed_total",
			Help:      "Uploads completed by mode and status",
		}, []string{"mode", "status"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_bytes",
			Help:      "Size of accepted upload payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
	p.once.Do(func() {
		prometheus.MustRegister(p.uploadsReceived, p.uploadsCompleted, p.uploadBytes)
	})
	return p
}

func (p *Prom) IncUploadsReceived(encoding string) {
	p.uploadsReceived.WithLabelValues(encoding).Inc()
}

func (p *Prom) IncUploadsCompleted(mode, status string) {
	p.uploadsCompleted.WithLabelValues(mode, status).Inc()
}

func (p *Prom) ObserveUploadBytes(sizeBytes float64) {
	p.uploadBytes.Observe(sizeBytes)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP metrics ---

type httpProm struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	once     sync.Once
}

// NewHTTPProm constructs an HTTPMetrics with a counter and latency histogram.
func NewHTTPProm(namespace string) HTTPMetrics {
	h := &httpProm{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	h.once.Do(func() {
		prometheus.MustRegister(h.requests, h.latency)
	})
	return h
}

func (h *httpProm) ObserveRequest(method, route, status string, durationSeconds float64) {
	h.requests.WithLabelValues(method, route, status).Inc()
	h.latency.WithLabelValues(method, route).Observe(durationSeconds)
}
