// Package metrics exposes Prometheus collectors for the HTTP API and view tracking.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiblog_http_requests_total",
		Help: "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aiblog_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	viewsTracked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiblog_views_tracked_total",
		Help: "Blog views recorded, split by whether they counted as unique.",
	}, []string{"unique"})

	trackFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiblog_view_tracking_failures_total",
		Help: "View tracking attempts that failed and were swallowed.",
	})

	trackThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiblog_view_tracking_throttled_total",
		Help: "View tracking requests skipped by the per-IP rate limit.",
	})

	reportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aiblog_analytics_report_duration_seconds",
		Help:    "Time spent building analytics reports by kind and cache outcome.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms → 2.5s
	}, []string{"kind", "cache"})

	formSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiblog_form_submissions_total",
		Help: "Public form submissions by form and outcome.",
	}, []string{"form", "outcome"})
)

func init() {
	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		viewsTracked,
		trackFailures,
		trackThrottled,
		reportDuration,
		formSubmissions,
	)
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one HTTP request against its route template.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// CountView records a tracked view.
func CountView(unique bool) {
	viewsTracked.WithLabelValues(strconv.FormatBool(unique)).Inc()
}

// CountTrackFailure records a swallowed tracking error.
func CountTrackFailure() {
	trackFailures.Inc()
}

// CountTrackThrottled records a view skipped by rate limiting.
func CountTrackThrottled() {
	trackThrottled.Inc()
}

// ObserveReport records how long an analytics report took.
func ObserveReport(kind string, cached bool, duration time.Duration) {
	outcome := "miss"
	if cached {
		outcome = "hit"
	}
	reportDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

// CountForm records the outcome of a public form submission.
func CountForm(form, outcome string) {
	formSubmissions.WithLabelValues(form, outcome).Inc()
}
