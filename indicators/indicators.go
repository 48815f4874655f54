// Package indicators computes rolling technical values over a caller-owned
// bar window. Every function reads bars[0..index] only, so a value at index i
// never depends on a later bar.
package indicators

import (
	"math"

	"github.com/evdnx/gotsopt/types"
)

const (
	// NeutralRSI is returned while the oscillator is not warmed up.
	NeutralRSI = 50.0
	// NeutralATR is returned while the true range average is not warmed up.
	NeutralATR = 0.0
)

// RSI returns the relative strength oscillator at index, computed from the
// simple means of the trailing period close-to-close gains and losses.
// index < period returns NeutralRSI. A zero average loss returns 100.
func RSI(bars []types.Bar, index, period int) float64 {
	if period <= 0 || index < period || index >= len(bars) {
		return NeutralRSI
	}
	var gains, losses float64
	for j := index - period + 1; j <= index; j++ {
		d := bars[j].Close - bars[j-1].Close
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// TrueRange of bars[index] against the previous close.
func TrueRange(bars []types.Bar, index int) float64 {
	b := bars[index]
	tr := b.High - b.Low
	if index == 0 {
		return tr
	}
	prev := bars[index-1].Close
	return math.Max(tr, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
}

// ATR returns the mean true range of the trailing period bars ending at
// index. index < period returns NeutralATR.
func ATR(bars []types.Bar, index, period int) float64 {
	if period <= 0 || index < period || index >= len(bars) {
		return NeutralATR
	}
	var sum float64
	for j := index - period + 1; j <= index; j++ {
		sum += TrueRange(bars, j)
	}
	return sum / float64(period)
}

// ATRAverage returns the mean of ATR(atrPeriod) over the trailing avgPeriod
// indices ending at index. It stays 0 until every ATR in that window is warm.
func ATRAverage(bars []types.Bar, index, atrPeriod, avgPeriod int) float64 {
	if avgPeriod <= 0 || index >= len(bars) || index-avgPeriod+1 < atrPeriod {
		return 0
	}
	var sum float64
	for j := index - avgPeriod + 1; j <= index; j++ {
		sum += ATR(bars, j, atrPeriod)
	}
	return sum / float64(avgPeriod)
}

// RSISeries evaluates RSI at every index of bars.
func RSISeries(bars []types.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = RSI(bars, i, period)
	}
	return out
}

// ATRSeries evaluates ATR at every index of bars.
func ATRSeries(bars []types.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = ATR(bars, i, period)
	}
	return out
}

// ATRAverageSeries derives ATRAverage at every index from a precomputed
// ATRSeries. Values are identical to calling ATRAverage per index.
func ATRAverageSeries(atr []float64, atrPeriod, avgPeriod int) []float64 {
	out := make([]float64, len(atr))
	if avgPeriod <= 0 {
		return out
	}
	for i := range atr {
		if i-avgPeriod+1 < atrPeriod {
			continue
		}
		var sum float64
		for j := i - avgPeriod + 1; j <= i; j++ {
			sum += atr[j]
		}
		out[i] = sum / float64(avgPeriod)
	}
	return out
}
