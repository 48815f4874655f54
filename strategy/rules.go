// Package strategy holds the oscillator entry rule, the volatility regime
// classifier and the stop/target bracket used by the simulator.
package strategy

import (
	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/types"
)

// Signal is the entry decision for one bar.
type Signal int

const (
	None Signal = iota
	Long
	Short
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "none"
	}
}

// Entry applies the oversold/overbought thresholds. Both comparisons are
// strict, so a reading exactly on a threshold does nothing.
func Entry(rsi float64, p config.ParameterSet) Signal {
	switch {
	case rsi < p.Oversold:
		return Long
	case rsi > p.Overbought:
		return Short
	default:
		return None
	}
}

// ClassifyRegime compares the current ATR with its trailing average.
// A cold (zero) average is treated as ranging.
func ClassifyRegime(atr, atrAvg float64, p config.ParameterSet) types.Regime {
	if atrAvg <= 0 {
		return types.RegimeRanging
	}
	ratio := atr / atrAvg
	switch {
	case ratio > p.BreakoutRatio:
		return types.RegimeBreakout
	case ratio > p.TrendRatio:
		return types.RegimeTrending
	default:
		return types.RegimeRanging
	}
}

// RiskFor returns the risk percentage bucket for the regime.
func RiskFor(regime types.Regime, p config.ParameterSet) float64 {
	switch regime {
	case types.RegimeBreakout:
		return p.RiskBreakout
	case types.RegimeTrending:
		return p.RiskTrending
	default:
		return p.RiskRanging
	}
}

// Bracket is the stop/target pair of a new position.
type Bracket struct {
	StopDistance float64
	Stop         float64
	Target       float64
}

// NewBracket derives stop and target prices from the entry price and ATR.
// ok is false when the stop distance is not positive (a flat market).
func NewBracket(entry, atr float64, isLong bool, p config.ParameterSet) (Bracket, bool) {
	dist := atr * p.SLMultiplier
	if !(dist > 0) {
		return Bracket{}, false
	}
	reward := dist * p.RewardRatio
	b := Bracket{StopDistance: dist}
	if isLong {
		b.Stop = entry - dist
		b.Target = entry + reward
	} else {
		b.Stop = entry + dist
		b.Target = entry - reward
	}
	return b, true
}

// StopHit reports whether the bar's range reaches the stop.
func StopHit(bar types.Bar, stop float64, isLong bool) bool {
	if isLong {
		return bar.Low <= stop
	}
	return bar.High >= stop
}

// TargetHit reports whether the bar's range reaches the target.
func TargetHit(bar types.Bar, target float64, isLong bool) bool {
	if isLong {
		return bar.High >= target
	}
	return bar.Low <= target
}
