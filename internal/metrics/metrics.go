// Package metrics exposes the façade's and runner's Prometheus collectors:
// one GaugeVec/CounterVec per concern, incremented at call sites.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge the scenario engine exposes.
type Metrics struct {
	PreparesTotal   *prometheus.CounterVec
	RunsStarted     prometheus.Counter
	RunsActive      prometheus.Gauge
	TicksComputed   *prometheus.CounterVec
	SectorHealth    *prometheus.GaugeVec
	StoreErrors     *prometheus.CounterVec
	BreakerOpenTrip *prometheus.CounterVec
}

// New registers and returns a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PreparesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scenario_engine_prepares_total",
			Help: "Total number of scenario prepare calls by hazard type.",
		}, []string{"hazard_type"}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scenario_engine_runs_started_total",
			Help: "Total number of simulation runs started.",
		}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scenario_engine_runs_active",
			Help: "Number of runs currently retained in the registry.",
		}),
		TicksComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scenario_engine_ticks_computed_total",
			Help: "Total number of ticks precomputed, by city.",
		}, []string{"city"}),
		SectorHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scenario_engine_sector_health",
			Help: "Most recently observed per-sector health percent, by run and sector.",
		}, []string{"sim_run_id", "sector"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scenario_engine_store_errors_total",
			Help: "Total store operation errors, by operation.",
		}, []string{"operation"}),
		BreakerOpenTrip: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scenario_engine_breaker_trips_total",
			Help: "Total circuit breaker state transitions to open, by breaker name.",
		}, []string{"breaker"}),
	}

	reg.MustRegister(
		m.PreparesTotal, m.RunsStarted, m.RunsActive, m.TicksComputed,
		m.SectorHealth, m.StoreErrors, m.BreakerOpenTrip,
	)
	return m
}
