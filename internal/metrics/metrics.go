// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExpensesPosted counts successfully posted expenses.
	ExpensesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_expenses_posted_total",
		Help: "Number of expenses posted to the ledger.",
	})

	// SettlementsExecuted counts settlement execute attempts by outcome.
	SettlementsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_settlements_executed_total",
		Help: "Number of settlement execute attempts by outcome.",
	}, []string{"outcome"})

	// SettlementsReclaimed counts expired settlements deleted by the sweep.
	SettlementsReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_settlements_reclaimed_total",
		Help: "Number of expired settlements reclaimed.",
	})

	// LedgerCorruptionTrips counts operations aborted on a broken ledger
	// invariant. Any non-zero value warrants investigation.
	LedgerCorruptionTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_ledger_corruption_trips_total",
		Help: "Number of operations aborted on a ledger corruption check.",
	})

	// SettlementExecuteDuration observes the latency of settlement
	// execution, transfer wait included.
	SettlementExecuteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tally_settlement_execute_duration_seconds",
		Help:    "Settlement execute latency, including the transfer wait.",
		Buckets: prometheus.DefBuckets,
	})

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request latency by method and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
