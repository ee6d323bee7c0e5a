// Package metrics holds the Prometheus collectors for dynamic dispatch, query execution and hit accounting.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeConfiguration = "configuration"
	OutcomeExecution     = "execution"
	OutcomeError         = "error"
)

// Hit accounting results. HitUndeduplicated is a hit counted while the dedup store was unreachable.
const (
	HitCounted        = "counted"
	HitDuplicate      = "duplicate"
	HitUndeduplicated = "undeduplicated"
	HitFailed         = "failed"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_dispatch_total",
			Help: "Total number of dynamic endpoint dispatches by outcome",
		},
		[]string{"method", "outcome"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_query_duration_seconds",
			Help:    "Duration of queries executed against target databases",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine", "status"},
	)

	hitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_hits_total",
			Help: "Hit accounting attempts by result",
		},
		[]string{"result"},
	)
)

// ObserveDispatch counts one dispatch with its outcome.
func ObserveDispatch(method, outcome string) {
	dispatchTotal.WithLabelValues(method, outcome).Inc()
}

// ObserveQuery records the duration of a query started at started.
func ObserveQuery(engine string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	queryDuration.WithLabelValues(engine, status).Observe(time.Since(started).Seconds())
}

// ObserveHit counts one hit accounting attempt with its result.
func ObserveHit(result string) {
	hitsTotal.WithLabelValues(result).Inc()
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
