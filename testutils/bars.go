package testutils

import (
	"math/rand/v2"
	"time"

	"github.com/evdnx/gotsopt/types"
)

// Epoch is the timestamp of the first synthetic bar.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// BarsFromCloses builds hourly bars whose high/low sit halfRange above and
// below the close. Open is the previous close (the first bar opens at its
// own close).
func BarsFromCloses(closes []float64, halfRange float64) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = types.Bar{
			Time:   Epoch.Add(time.Duration(i) * time.Hour),
			Open:   open,
			High:   c + halfRange,
			Low:    c - halfRange,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

// FlatBars returns n bars with open = high = low = close = price.
func FlatBars(n int, price float64) []types.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return BarsFromCloses(closes, 0)
}

// OversoldThenRally returns n bars (n >= 12) whose true range is fixed at
// 0.0010. Closes alternate by ±0.0001 up to bar 9, drop 0.0005 at bar 10 and
// then rise 0.0005 per bar. With a 5-bar oscillator the only oversold reading
// (≈22) is at bar 10.
func OversoldThenRally(n int) []types.Bar {
	closes := make([]float64, n)
	closes[0] = 1.1000
	for i := 1; i < n; i++ {
		var d float64
		switch {
		case i < 10 && i%2 == 1:
			d = 0.0001
		case i < 10:
			d = -0.0001
		case i == 10:
			d = -0.0005
		default:
			d = 0.0005
		}
		closes[i] = closes[i-1] + d
	}
	return BarsFromCloses(closes, 0.0005)
}

// RandomWalk returns n bars from a seeded random walk starting at 1.1000.
// The same seed always yields the same series.
func RandomWalk(n int, seed uint64) []types.Bar {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	closes := make([]float64, n)
	price := 1.1000
	for i := range closes {
		price += (rng.Float64() - 0.5) * 0.0020
		closes[i] = price
	}
	bars := BarsFromCloses(closes, 0.0004)
	for i := range bars {
		wick := rng.Float64() * 0.0006
		bars[i].High += wick
		bars[i].Low -= 0.0006 - wick
		bars[i].Volume = 500 + rng.Float64()*1000
	}
	return bars
}
