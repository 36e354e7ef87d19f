package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qg_mcp",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of server starts by mode.",
		}, []string{"mode"},
	)
	healthRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qg_mcp",
			Subsystem: "server",
			Name:      "health_requests_total",
			Help:      "Health endpoint requests by querygrid status.",
		}, []string{"querygrid"},
	)
	querygridProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "qg_mcp",
			Subsystem: "server",
			Name:      "querygrid_probe_duration_seconds",
			Help:      "QueryGrid Manager reachability probe duration.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serverStarts, healthRequests, querygridProbeDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(mode string) {
	if regOK.Load() {
		serverStarts.WithLabelValues(mode).Inc()
	}
}

func IncHealthRequest(querygridStatus string) {
	if regOK.Load() {
		healthRequests.WithLabelValues(querygridStatus).Inc()
	}
}

func ObserveQuerygridProbe(seconds float64) {
	if regOK.Load() {
		querygridProbeDuration.Observe(seconds)
	}
}
