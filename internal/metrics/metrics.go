// FILE: metrics.go
// Package metrics – Prometheus metrics for the aggregation engine.
//
// Exposes:
//   • footprint_bars_emitted_total{symbol}         – V-bars successfully finalized
//   • footprint_bars_rejected_total{symbol}        – bars dropped for failing reconciliation
//   • footprint_days_committed_total{symbol}       – trade dates written to a year file
//   • footprint_no_data_dates_total{symbol}        – trade dates probed and found empty
//   • footprint_backfill_duration_seconds{symbol}  – wall time of one orchestrator.Run call
//
// Registered in init() and served at /metrics by the HTTP server that
// cmd/footprintctl starts before running any subcommand.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	barsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footprint_bars_emitted_total",
			Help: "V-bars successfully finalized and committed.",
		},
		[]string{"symbol"},
	)

	barsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footprint_bars_rejected_total",
			Help: "Bars dropped for failing ladder/total reconciliation.",
		},
		[]string{"symbol"},
	)

	daysCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footprint_days_committed_total",
			Help: "Trade dates written to a year file.",
		},
		[]string{"symbol"},
	)

	noDataDates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footprint_no_data_dates_total",
			Help: "Trade dates probed and found to have no activity.",
		},
		[]string{"symbol"},
	)

	backfillDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "footprint_backfill_duration_seconds",
			Help:    "Duration of one orchestrator.Run call.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(barsEmitted, barsRejected, daysCommitted, noDataDates, backfillDuration)
}

func AddBarsEmitted(symbol string, n float64)  { barsEmitted.WithLabelValues(symbol).Add(n) }
func IncBarsRejected(symbol string)            { barsRejected.WithLabelValues(symbol).Inc() }
func IncDaysCommitted(symbol string, n float64) { daysCommitted.WithLabelValues(symbol).Add(n) }
func IncNoDataDates(symbol string)             { noDataDates.WithLabelValues(symbol).Inc() }
func ObserveBackfillDuration(symbol string, seconds float64) {
	backfillDuration.WithLabelValues(symbol).Observe(seconds)
}
