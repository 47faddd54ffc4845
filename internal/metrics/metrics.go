// Package metrics exposes the Prometheus counters and gauges the engine and
// manager update, served on /metrics.
//
// Grounded on chidi150c-coinbase/metrics.go: package-level CounterVec/Gauge
// variables registered once in init(), with small exported Inc/Set helpers
// so callers never touch the prometheus API directly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_orders_placed_total",
			Help: "Orders admitted by the matching engine, by kind and direction.",
		},
		[]string{"kind", "direction"},
	)

	ordersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_orders_rejected_total",
			Help: "Orders rejected at admission, by error kind.",
		},
		[]string{"reason"},
	)

	fills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_fills_total",
			Help: "Orders settled by the resolver, by kind and direction.",
		},
		[]string{"kind", "direction"},
	)

	activeEngines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradesim_active_engines",
			Help: "Number of per-user engines held in the manager, running or not yet started.",
		},
	)

	idleEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradesim_idle_evictions_total",
			Help: "Engines stopped by the reaper for exceeding the idle window.",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced, ordersRejected, fills, activeEngines, idleEvictions)
}

// IncOrderPlaced records a successfully admitted order.
func IncOrderPlaced(kind, direction string) { ordersPlaced.WithLabelValues(kind, direction).Inc() }

// IncOrderRejected records an admission rejection, labeled with the
// apperr.Kind that caused it.
func IncOrderRejected(reason string) { ordersRejected.WithLabelValues(reason).Inc() }

// IncFill records a resolver settlement.
func IncFill(kind, direction string) { fills.WithLabelValues(kind, direction).Inc() }

// SetActiveEngines reports the manager's current live-engine count.
func SetActiveEngines(n int) { activeEngines.Set(float64(n)) }

// IncIdleEviction records a reaper-triggered stop.
func IncIdleEviction() { idleEvictions.Inc() }
