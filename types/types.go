package types

import "time"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Bar is a single OHLCV candle. A series of bars is ordered by strictly
// increasing Time and is never mutated once loaded.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type ExitReason string

const (
	ExitStopLoss   ExitReason = "StopLoss"
	ExitTakeProfit ExitReason = "TakeProfit"
	ExitEndOfData  ExitReason = "EndOfData"
)

// Regime is the coarse volatility classification used to pick a risk bucket.
type Regime string

const (
	RegimeRanging  Regime = "ranging"
	RegimeTrending Regime = "trending"
	RegimeBreakout Regime = "breakout"
)

// SimulatedTrade is one closed simulated position.
type SimulatedTrade struct {
	OpenTime    time.Time  `json:"open_time"`
	CloseTime   time.Time  `json:"close_time"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	StopLoss    float64    `json:"stop_loss"`
	TakeProfit  float64    `json:"take_profit"`
	LotSize     float64    `json:"lot_size"`
	IsLong      bool       `json:"is_long"`
	PnL         float64    `json:"pnl"`
	ExitReason  ExitReason `json:"exit_reason"`
	Regime      Regime     `json:"regime"`
	RiskPercent float64    `json:"risk_percent"`
}

// Side reports the trade direction using the order side vocabulary.
func (t SimulatedTrade) Side() Side {
	if t.IsLong {
		return Buy
	}
	return Sell
}
