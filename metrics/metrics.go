package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for BacktestsTotal.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
)

var (
	BacktestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gotsopt_backtests_total",
			Help: "Total number of parameter combinations backtested (by outcome).",
		},
		[]string{"outcome"},
	)

	TradesSimulated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gotsopt_trades_simulated_total",
			Help: "Total number of simulated trades closed across all runs.",
		},
	)

	BestScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gotsopt_optimizer_best_score",
			Help: "Best score found so far by the running search (by symbol and mode).",
		},
		[]string{"symbol", "mode"},
	)

	ProgressRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gotsopt_optimizer_progress_ratio",
			Help: "Fraction of the parameter space evaluated by the running search.",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(BacktestsTotal, TradesSimulated, BestScore, ProgressRatio)
}
