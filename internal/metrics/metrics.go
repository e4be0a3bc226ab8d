package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus collectors on a private registry
// so tests can create instances without collector name collisions.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal         prometheus.Counter
	DecisionsTotal      *prometheus.CounterVec
	TradesTotal         *prometheus.CounterVec
	ExchangeErrorsTotal *prometheus.CounterVec
	OpenPositions       prometheus.Gauge
	LastConfidence      prometheus.Gauge
	AvailableMargin     prometheus.Gauge
}

// New creates all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gmo_bot_cycles_total",
			Help: "Completed decision cycles.",
		}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmo_bot_decisions_total",
			Help: "Evaluation outcomes by kind.",
		}, []string{"outcome"}),
		TradesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmo_bot_trades_total",
			Help: "Executed exchange actions.",
		}, []string{"side", "event"}),
		ExchangeErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmo_bot_exchange_errors_total",
			Help: "Exchange call failures by kind.",
		}, []string{"kind"}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gmo_bot_open_positions",
			Help: "Open positions at the last reconciliation.",
		}),
		LastConfidence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gmo_bot_last_confidence",
			Help: "Confidence of the most recent evaluation.",
		}),
		AvailableMargin: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gmo_bot_available_margin_jpy",
			Help: "Available margin reported by the exchange.",
		}),
	}
}
