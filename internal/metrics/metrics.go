package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

var (
	registerOnce sync.Once

	scoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_operations_total",
		Help:      "Score maintainer operations by kind, operation and outcome",
	}, []string{"kind", "op", "outcome"})
	scoreRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_tx_retries_total",
		Help:      "Score transactions retried after a serialization conflict",
	}, []string{"kind", "op"})
	scoreDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "score_operation_duration_seconds",
		Help:      "Duration of score maintainer operations including retries",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind", "op"})

	scoreEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_events_published_total",
		Help:      "Score change events handed to the message bus by result",
	}, []string{"result"})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(scoreOperations, scoreRetries, scoreDuration, scoreEvents, httpRequests, httpDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveScoreOperation(kind, op, outcome string, d time.Duration) {
	scoreOperations.WithLabelValues(kind, op, outcome).Inc()
	if outcome != "invalid" {
		scoreDuration.WithLabelValues(kind, op).Observe(d.Seconds())
	}
}

func IncScoreRetry(kind, op string) { scoreRetries.WithLabelValues(kind, op).Inc() }

func IncScoreEvent(result string) { scoreEvents.WithLabelValues(result).Inc() }

func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
