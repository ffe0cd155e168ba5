package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quillscribe"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	gatherer prometheus.Gatherer

	refreshes        *prometheus.CounterVec
	refreshDuration  *prometheus.HistogramVec
	refreshModels    *prometheus.GaugeVec
	refreshFailures  *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	loginAttempts    *prometheus.CounterVec
	signups          prometheus.Counter
	contactPublished *prometheus.CounterVec
	contactProcessed *prometheus.CounterVec
	contactBatch     prometheus.Histogram
	contactDepth     prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewPrometheus registers the application collectors on reg.
func NewPrometheus(reg *prometheus.Registry) *PrometheusRecorder {
	f := promauto.With(reg)

	return &PrometheusRecorder{
		gatherer: reg,
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "refresh_total",
			Help:      "Completed model refreshes",
		}, []string{"provider", "source"}),
		refreshDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "refresh_duration_seconds",
			Help:      "Model refresh duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		refreshModels: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "snapshot_models",
			Help:      "Models in the latest snapshot",
		}, []string{"provider"}),
		refreshFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "refresh_failures_total",
			Help:      "Failed model refreshes",
		}, []string{"provider"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "fallback_total",
			Help:      "Refreshes served from the static fallback list",
		}, []string{"provider"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "snapshot_cache_total",
			Help:      "Snapshot cache lookups",
		}, []string{"provider", "result"}),
		loginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		signups: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "signups_total",
			Help:      "Accounts created",
		}),
		contactPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "published_total",
			Help:      "Contact messages published to the stream",
		}, []string{"status"}),
		contactProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "processed_total",
			Help:      "Contact message delivery outcomes",
		}, []string{"status"}),
		contactBatch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "batch_size",
			Help:      "Messages per worker batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50},
		}),
		contactDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "queue_depth",
			Help:      "Pending entries in the contact stream",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// ObserveModelRefresh records a completed refresh.
func (p *PrometheusRecorder) ObserveModelRefresh(provider, source string, duration time.Duration, models int) {
	p.refreshes.WithLabelValues(provider, source).Inc()
	p.refreshDuration.WithLabelValues(provider).Observe(duration.Seconds())
	p.refreshModels.WithLabelValues(provider).Set(float64(models))
}

// IncModelRefreshFailure records a failed refresh.
func (p *PrometheusRecorder) IncModelRefreshFailure(provider string) {
	p.refreshFailures.WithLabelValues(provider).Inc()
}

// IncProviderFallback records a fallback to static models.
func (p *PrometheusRecorder) IncProviderFallback(provider string) {
	p.fallbacks.WithLabelValues(provider).Inc()
}

// IncSnapshotCacheHit records a snapshot cache hit.
func (p *PrometheusRecorder) IncSnapshotCacheHit(provider string) {
	p.cacheLookups.WithLabelValues(provider, "hit").Inc()
}

// IncSnapshotCacheMiss records a snapshot cache miss.
func (p *PrometheusRecorder) IncSnapshotCacheMiss(provider string) {
	p.cacheLookups.WithLabelValues(provider, "miss").Inc()
}

// IncLoginAttempt records a login by result.
func (p *PrometheusRecorder) IncLoginAttempt(result string) {
	p.loginAttempts.WithLabelValues(result).Inc()
}

// IncSignup records an account creation.
func (p *PrometheusRecorder) IncSignup() {
	p.signups.Inc()
}

// IncContactPublished records a contact publish by status.
func (p *PrometheusRecorder) IncContactPublished(status string) {
	p.contactPublished.WithLabelValues(status).Inc()
}

// IncContactProcessed records a contact delivery outcome.
func (p *PrometheusRecorder) IncContactProcessed(status string) {
	p.contactProcessed.WithLabelValues(status).Inc()
}

// ObserveContactBatchSize records the size of a worker batch.
func (p *PrometheusRecorder) ObserveContactBatchSize(size int) {
	p.contactBatch.Observe(float64(size))
}

// SetContactQueueDepth records the pending stream length.
func (p *PrometheusRecorder) SetContactQueueDepth(depth int64) {
	p.contactDepth.Set(float64(depth))
}

// ObserveHTTPRequest records a served request.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
