// Package metrics exposes Prometheus collectors for the legislature crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchRetriesTotal          prometheus.Counter
	politenessDelaySeconds     prometheus.Histogram
	rateLimitWaitSeconds       *prometheus.HistogramVec
	entitiesTotal              *prometheus.CounterVec
	unresolvedIdentitiesTotal  prometheus.Counter
	runsTotal                  *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legislature_fetch_requests_total",
				Help: "Total number of upstream API fetches, labeled by endpoint class and outcome.",
			},
			[]string{"class", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legislature_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legislature_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by endpoint class.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"class"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "legislature_fetch_retries_total",
				Help: "Total number of retried upstream fetch attempts.",
			},
		)

		politenessDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "legislature_politeness_delay_seconds",
				Help:    "Histogram of post-request courtesy delays.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "legislature_rate_limit_wait_seconds",
				Help:    "Histogram of time spent waiting for a request token, labeled by site.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"site"},
		)

		entitiesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legislature_entities_total",
				Help: "Total number of entities visited, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		unresolvedIdentitiesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "legislature_unresolved_identities_total",
				Help: "Total number of legislator profiles without a canonical id.",
			},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legislature_runs_total",
				Help: "Total number of crawl passes, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one finished upstream fetch.
func ObserveFetch(rawURL, class, outcome string, bytesFetched int, duration time.Duration) {
	Init()
	fetchRequestsTotal.WithLabelValues(class, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(class).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(SanitizeSite(rawURL)).Add(float64(bytesFetched))
	}
}

// ObserveRetry increments the retry counter.
func ObserveRetry() {
	Init()
	fetchRetriesTotal.Inc()
}

// ObservePolitenessDelay records a post-request delay.
func ObservePolitenessDelay(duration time.Duration) {
	Init()
	politenessDelaySeconds.Observe(duration.Seconds())
}

// ObserveRateLimitWait records time spent blocked on the request limiter.
func ObserveRateLimitWait(site string, duration time.Duration) {
	Init()
	rateLimitWaitSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveEntity counts an entity visit; status is fetched, skipped or failed.
func ObserveEntity(kind, status string) {
	Init()
	entitiesTotal.WithLabelValues(kind, status).Inc()
}

// ObserveUnresolvedIdentity counts a profile that needs manual mapping.
func ObserveUnresolvedIdentity() {
	Init()
	unresolvedIdentitiesTotal.Inc()
}

// ObserveRun counts a finished crawl pass.
func ObserveRun(status string) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
