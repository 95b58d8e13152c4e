package aptner

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitsched",
		Name:      "aptner_requests_total",
		Help:      "Aptner API calls by operation and outcome",
	}, []string{
		"op",     // authenticate|list|create|delete
		"result", // ok|auth|expired|validation|not_found|remote
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "visitsched",
		Name:      "aptner_request_duration_seconds",
		Help:      "Latency of Aptner API round trips",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

func observe(op string, start time.Time, err error) {
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrSessionExpired):
		return "expired"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "remote"
	}
}
