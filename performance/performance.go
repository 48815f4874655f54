// Package performance folds simulated trades into a running balance curve
// and summary statistics.
package performance

import "github.com/evdnx/gotsopt/types"

// BacktestStats is mutated by Record as trades arrive and completed by
// Finalize once the series is exhausted. Every derived ratio is 0 when its
// denominator is 0; none is ever NaN or infinite.
type BacktestStats struct {
	StartingBalance float64 `json:"starting_balance"`
	TotalTrades     int     `json:"total_trades"`
	WinningTrades   int     `json:"winning_trades"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"` // positive magnitude
	PeakBalance     float64 `json:"peak_balance"`
	CurrentBalance  float64 `json:"current_balance"`
	MaxDrawdown     float64 `json:"max_drawdown"`

	// Derived by Finalize.
	NetProfit          float64 `json:"net_profit"`
	WinRate            float64 `json:"win_rate"` // fraction in [0,1]
	ProfitFactor       float64 `json:"profit_factor"`
	AvgWin             float64 `json:"avg_win"`
	AvgLoss            float64 `json:"avg_loss"` // positive magnitude
	RiskRewardRatio    float64 `json:"risk_reward_ratio"`
	Expectancy         float64 `json:"expectancy"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
}

// NewStats returns stats for an account that starts at balance.
func NewStats(balance float64) BacktestStats {
	return BacktestStats{
		StartingBalance: balance,
		PeakBalance:     balance,
		CurrentBalance:  balance,
	}
}

// Record folds one closed trade into stats.
func Record(trade types.SimulatedTrade, stats *BacktestStats) {
	stats.TotalTrades++
	if trade.PnL > 0 {
		stats.WinningTrades++
		stats.GrossProfit += trade.PnL
	} else {
		stats.GrossLoss += -trade.PnL
	}
	stats.CurrentBalance += trade.PnL
	if stats.CurrentBalance > stats.PeakBalance {
		stats.PeakBalance = stats.CurrentBalance
	}
	if dd := stats.PeakBalance - stats.CurrentBalance; dd > stats.MaxDrawdown {
		stats.MaxDrawdown = dd
	}
}

// Finalize computes the derived ratios. It is idempotent.
func Finalize(stats *BacktestStats) {
	stats.NetProfit = stats.CurrentBalance - stats.StartingBalance
	losing := stats.TotalTrades - stats.WinningTrades

	stats.WinRate = safeDiv(float64(stats.WinningTrades), float64(stats.TotalTrades))
	stats.ProfitFactor = safeDiv(stats.GrossProfit, stats.GrossLoss)
	stats.AvgWin = safeDiv(stats.GrossProfit, float64(stats.WinningTrades))
	stats.AvgLoss = safeDiv(stats.GrossLoss, float64(losing))
	stats.RiskRewardRatio = safeDiv(stats.AvgWin, stats.AvgLoss)
	stats.Expectancy = stats.WinRate*stats.AvgWin - (1-stats.WinRate)*stats.AvgLoss
	if stats.TotalTrades == 0 {
		stats.Expectancy = 0
	}
	stats.MaxDrawdownPercent = safeDiv(stats.MaxDrawdown, stats.StartingBalance) * 100
}

// Aggregate replays trades from a fresh account and returns finalized stats.
func Aggregate(balance float64, trades []types.SimulatedTrade) BacktestStats {
	stats := NewStats(balance)
	for _, t := range trades {
		Record(t, &stats)
	}
	Finalize(&stats)
	return stats
}

// EquityCurve returns the balance after each trade, starting balance first.
func EquityCurve(balance float64, trades []types.SimulatedTrade) []float64 {
	curve := make([]float64, 0, len(trades)+1)
	curve = append(curve, balance)
	for _, t := range trades {
		balance += t.PnL
		curve = append(curve, balance)
	}
	return curve
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
