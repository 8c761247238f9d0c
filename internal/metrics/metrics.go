package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values. Failed operations use the error kind code as outcome.
const (
	OutcomeOK = "ok"

	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	resourceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "resource",
			Name:      "operations_total",
			Help:      "Resource lifecycle operations by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"},
	)
	resourceOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "curator",
			Subsystem: "resource",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in a resource operation, including its transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "op"},
	)
	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "curator",
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Access policy decisions by verb.",
		}, []string{"verb", "decision"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{resourceOps, resourceOpDuration, accessDecisions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// already registered with this registerer: keep existing
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Enabled reports whether Register succeeded.
func Enabled() bool { return regOK.Load() }

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// The helpers below no-op until Register has been called.

// ObserveOperation records one finished resource operation.
func ObserveOperation(kind, op, outcome string, elapsed time.Duration) {
	if !regOK.Load() {
		return
	}
	resourceOps.WithLabelValues(kind, op, outcome).Inc()
	resourceOpDuration.WithLabelValues(kind, op).Observe(elapsed.Seconds())
}

func RecordAccess(verb string, allowed bool) {
	if !regOK.Load() {
		return
	}
	d := DecisionDeny
	if allowed {
		d = DecisionAllow
	}
	accessDecisions.WithLabelValues(verb, d).Inc()
}
