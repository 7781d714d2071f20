// Package metrics exposes Prometheus collectors for the link lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkkeeper"

var (
	LinksCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_created_total",
		Help:      "Links created, by how the short code was chosen.",
	}, []string{"source"})
	Redirects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redirects_total",
		Help:      "Redirect lookups, by outcome.",
	}, []string{"outcome"})
	CodeCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "code_collisions_total",
		Help:      "Randomly generated short codes that were already taken.",
	})
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Link cache lookups, by result (hit, miss, corrupt, error).",
	}, []string{"result"})
	SweepDeactivated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_deactivated_total",
		Help:      "Links deactivated by background sweeps.",
	}, []string{"sweep"})
	SweepFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_failures_total",
		Help:      "Sweep iterations that failed or panicked.",
	}, []string{"sweep"})
	SweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Time spent in one sweep iteration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sweep"})
)

func init() {
	prometheus.MustRegister(
		LinksCreated,
		Redirects,
		CodeCollisions,
		CacheLookups,
		SweepDeactivated,
		SweepFailures,
		SweepDuration,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
