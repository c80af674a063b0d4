// Package metrics declares the Prometheus collectors shared across TalentFlow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentflow_cache_requests_total",
			Help: "Query cache reads by result (hit, miss, shared)",
		},
		[]string{"result"},
	)

	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentflow_cache_fetches_total",
			Help: "Backend fetches issued by the query cache by outcome (ok, error, discarded)",
		},
		[]string{"outcome"},
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentflow_mutations_total",
			Help: "Settled mutations by operation and outcome (committed, rolled_back)",
		},
		[]string{"op", "outcome"},
	)

	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "talentflow_mutation_duration_seconds",
			Help: "Time from optimistic apply to settlement",
		},
		[]string{"op"},
	)

	FaultsInjected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentflow_faults_injected_total",
			Help: "Simulated backend failures by operation",
		},
		[]string{"op"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talentflow_http_requests_total",
			Help: "API requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "talentflow_http_request_duration_seconds",
			Help: "API request latency by route pattern",
		},
		[]string{"route"},
	)

	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "talentflow_sse_clients",
			Help: "Connected server-sent event clients",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
