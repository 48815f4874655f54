package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SymbolProperties are the broker-style contract specs the position sizer
// needs.
type SymbolProperties struct {
	PipSize   float64 `json:"pip_size"`   // price units per pip, e.g. 0.0001
	TickValue float64 `json:"tick_value"` // account money per tick per lot
	TickSize  float64 `json:"tick_size"`  // price units per tick
	MinLot    float64 `json:"min_lot"`
	MaxLot    float64 `json:"max_lot"`
	LotStep   float64 `json:"lot_step"`
}

// DefaultSymbolProperties matches a standard 5-digit FX major.
func DefaultSymbolProperties() SymbolProperties {
	return SymbolProperties{
		PipSize:   0.0001,
		TickValue: 1,
		TickSize:  0.00001,
		MinLot:    0.01,
		MaxLot:    100,
		LotStep:   0.01,
	}
}

// Validate checks the volume constraints. Zero tick size or value is NOT an
// error here: the sizer falls back to MinLot and the run carries a warning.
func (s SymbolProperties) Validate() error {
	if s.MinLot <= 0 {
		return fmt.Errorf("MinLot (%g) must be positive", s.MinLot)
	}
	if s.MaxLot < s.MinLot {
		return fmt.Errorf("MaxLot (%g) must not be below MinLot (%g)", s.MaxLot, s.MinLot)
	}
	if s.LotStep <= 0 {
		return errors.New("LotStep must be positive")
	}
	if s.PipSize < 0 || s.TickSize < 0 || s.TickValue < 0 {
		return errors.New("PipSize, TickSize and TickValue cannot be negative")
	}
	return nil
}

// OptimizationMode selects the score used to rank grid results.
type OptimizationMode string

const (
	ModeNetProfit    OptimizationMode = "net_profit"
	ModeProfitFactor OptimizationMode = "profit_factor"
	ModeSharpeLike   OptimizationMode = "sharpe_like"
	ModeCustomScore  OptimizationMode = "custom"
)

// ParseMode maps a user-facing name onto an OptimizationMode.
func ParseMode(s string) (OptimizationMode, error) {
	switch OptimizationMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNetProfit, "netprofit":
		return ModeNetProfit, nil
	case ModeProfitFactor, "profitfactor", "pf":
		return ModeProfitFactor, nil
	case ModeSharpeLike, "sharpelike", "sharpe":
		return ModeSharpeLike, nil
	case ModeCustomScore, "customscore", "custom_score":
		return ModeCustomScore, nil
	}
	return "", fmt.Errorf("unknown optimization mode %q", s)
}

// ScoreWeights are the CustomScore coefficients. The stock weighting is a
// heuristic; callers may override any of it.
type ScoreWeights struct {
	NetProfit    float64 `json:"net_profit"`
	ProfitFactor float64 `json:"profit_factor"`
	WinRate      float64 `json:"win_rate"`
	Drawdown     float64 `json:"drawdown"`
}

// DefaultScoreWeights returns 0.4/0.3/0.2/0.1.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{NetProfit: 0.4, ProfitFactor: 0.3, WinRate: 0.2, Drawdown: 0.1}
}

// BacktestConfig drives a single optimization search.
type BacktestConfig struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	StartingBalance float64          `json:"starting_balance"`
	Mode            OptimizationMode `json:"mode"`
	MinTrades       int              `json:"min_trades"`
	MinWinRate      float64          `json:"min_win_rate"` // fraction in [0,1]
	Weights         ScoreWeights     `json:"weights"`

	// TopN bounds the ranked list; Workers bounds parallel backtests
	// (0 = GOMAXPROCS); ProgressEvery is the progress notification cadence in
	// combinations (0 = every 100).
	TopN          int `json:"top_n"`
	Workers       int `json:"workers"`
	ProgressEvery int `json:"progress_every"`

	// MFIConfirm enables the money-flow confirmation filter on entries.
	MFIConfirm bool `json:"mfi_confirm"`

	Properties SymbolProperties `json:"properties"`
}

// DefaultBacktestConfig returns a config ready for a 10k account.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		Timeframe:       "1h",
		StartingBalance: 10_000,
		Mode:            ModeNetProfit,
		MinTrades:       10,
		MinWinRate:      0,
		Weights:         DefaultScoreWeights(),
		TopN:            10,
		ProgressEvery:   100,
		Properties:      DefaultSymbolProperties(),
	}
}

// Validate returns the first configuration problem, if any.
func (c *BacktestConfig) Validate() error {
	if c.StartingBalance <= 0 {
		return fmt.Errorf("StartingBalance (%g) must be positive", c.StartingBalance)
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.MinTrades < 0 {
		return errors.New("MinTrades cannot be negative")
	}
	if c.MinWinRate < 0 || c.MinWinRate > 1 {
		return fmt.Errorf("MinWinRate (%g) must be a fraction within [0,1]", c.MinWinRate)
	}
	if c.TopN <= 0 {
		return errors.New("TopN must be positive")
	}
	if c.Workers < 0 {
		return errors.New("Workers cannot be negative")
	}
	if c.ProgressEvery < 0 {
		return errors.New("ProgressEvery cannot be negative")
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.End.After(c.Start) {
		return errors.New("End must be after Start")
	}
	return c.Properties.Validate()
}
