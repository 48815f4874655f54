package risk

import (
	"errors"
	"math"

	"github.com/evdnx/gotsopt/config"
	"github.com/shopspring/decimal"
)

// ErrInvalidSymbolProperties flags zero tick size/value or pip size. LotSize
// still returns a usable lot (MinLot) alongside it; callers record a warning
// and carry on.
var ErrInvalidSymbolProperties = errors.New("invalid symbol properties: zero tick size, tick value or pip size")

// ValuePerPip is the account money one pip is worth for one lot.
func ValuePerPip(sym config.SymbolProperties) float64 {
	if sym.TickSize <= 0 {
		return 0
	}
	return sym.TickValue / sym.TickSize * sym.PipSize
}

// LotSize converts a risk percentage of balance and a stop distance (price
// units) into a tradable volume: floored to a multiple of LotStep, clamped to
// [MinLot, MaxLot].
func LotSize(balance, riskPercent, stopDistance float64, sym config.SymbolProperties) (float64, error) {
	valuePerPip := ValuePerPip(sym)
	if valuePerPip == 0 {
		return sym.MinLot, ErrInvalidSymbolProperties
	}
	if stopDistance <= 0 || balance <= 0 || riskPercent <= 0 {
		return sym.MinLot, nil
	}

	riskAmount := balance * riskPercent / 100
	stopPips := stopDistance / sym.PipSize
	raw := riskAmount / (stopPips * valuePerPip)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return sym.MaxLot, nil
	}

	// Round off binary float noise (0.49999999999999994) before flooring. Ten
	// places keeps a genuine shortfall such as 0.329999996 below its step.
	lots := decimal.NewFromFloat(raw).Round(10)
	if sym.LotStep > 0 {
		step := decimal.NewFromFloat(sym.LotStep)
		lots = lots.Div(step).Floor().Mul(step)
	}
	minLot := decimal.NewFromFloat(sym.MinLot)
	maxLot := decimal.NewFromFloat(sym.MaxLot)
	if lots.LessThan(minLot) {
		lots = minLot
	}
	if lots.GreaterThan(maxLot) {
		lots = maxLot
	}
	return lots.InexactFloat64(), nil
}

// PnL converts a price move on lots into account money. Invalid tick
// properties yield zero.
func PnL(entry, exit, lots float64, isLong bool, sym config.SymbolProperties) float64 {
	if sym.TickSize <= 0 {
		return 0
	}
	move := exit - entry
	if !isLong {
		move = -move
	}
	return move * sym.TickValue / sym.TickSize * lots
}
