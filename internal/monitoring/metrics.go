package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_decisions_total",
			Help: "Guard decisions by guard and outcome",
		},
		[]string{"guard", "decision"},
	)
	OrphansFixed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orphans_fixed_total",
			Help: "Orphaned rows reassigned to the quarantine tenant, by table",
		},
		[]string{"table"},
	)
	ErrorsCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_captured_total",
			Help: "Failures persisted by the error capture middleware, by kind",
		},
		[]string{"kind"},
	)
)

func InitMetrics() {
	err := prometheus.Register(GuardDecisions)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register GuardDecisions metric")
	}

	err = prometheus.Register(OrphansFixed)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register OrphansFixed metric")
	}

	err = prometheus.Register(ErrorsCaptured)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register ErrorsCaptured metric")
	}
}
