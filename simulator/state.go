package simulator

import (
	"time"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/indicators"
	"github.com/evdnx/gotsopt/performance"
	"github.com/evdnx/gotsopt/types"
)

// Phase is the simulator's position state.
type Phase int

const (
	Flat Phase = iota
	InPosition
)

func (p Phase) String() string {
	if p == InPosition {
		return "in_position"
	}
	return "flat"
}

// Position is the single open simulated position.
type Position struct {
	OpenTime    time.Time
	IsLong      bool
	Entry       float64
	Stop        float64
	Target      float64
	Lots        float64
	Regime      types.Regime
	RiskPercent float64
}

// SimulationState is everything one run mutates. Each run owns its state, so
// concurrent runs over the same bars never share anything writable.
type SimulationState struct {
	Phase    Phase
	Position Position
	Stats    performance.BacktestStats
	Trades   []types.SimulatedTrade
	Warnings []string

	params config.ParameterSet
	warmUp int

	// Indicator series over the whole bar slice. Entry decisions only ever
	// read index i-1 when processing bar i.
	rsi    []float64
	atr    []float64
	atrAvg []float64

	mfi          *indicators.MFIFilter
	symbolWarned bool
}

// Params returns the parameter set the state was built for.
func (s *SimulationState) Params() config.ParameterSet { return s.params }

func (s *SimulationState) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}
