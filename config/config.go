package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ParameterSet holds all tunable knobs of the oscillator/ATR rule set.
// It is a value type: the optimizer produces one per grid point and nothing
// mutates it afterwards.
type ParameterSet struct {
	// Indicator lookbacks
	RSIPeriod    int `json:"rsi_period"`     // default 14
	ATRPeriod    int `json:"atr_period"`     // default 14
	ATRAvgPeriod int `json:"atr_avg_period"` // default 20, trailing ATR mean for regime detection

	// Oscillator thresholds
	Oversold   float64 `json:"oversold"`   // default 30
	Overbought float64 `json:"overbought"` // default 70

	// Regime classification (current ATR / trailing ATR mean)
	TrendRatio    float64 `json:"trend_ratio"`    // default 1.2
	BreakoutRatio float64 `json:"breakout_ratio"` // default 2.0

	// Risk buckets, percent of balance per trade
	RiskRanging  float64 `json:"risk_ranging"`  // default 0.5
	RiskTrending float64 `json:"risk_trending"` // default 1.0
	RiskBreakout float64 `json:"risk_breakout"` // default 1.5

	// Stop / target geometry
	SLMultiplier float64 `json:"sl_multiplier"` // stop distance = ATR * SLMultiplier
	RewardRatio  float64 `json:"reward_ratio"`  // target distance = stop distance * RewardRatio
}

// Parameter names, as used by optimizer dimensions and reports.
const (
	ParamRSIPeriod     = "rsi_period"
	ParamATRPeriod     = "atr_period"
	ParamATRAvgPeriod  = "atr_avg_period"
	ParamOversold      = "oversold"
	ParamOverbought    = "overbought"
	ParamTrendRatio    = "trend_ratio"
	ParamBreakoutRatio = "breakout_ratio"
	ParamRiskRanging   = "risk_ranging"
	ParamRiskTrending  = "risk_trending"
	ParamRiskBreakout  = "risk_breakout"
	ParamSLMultiplier  = "sl_multiplier"
	ParamRewardRatio   = "reward_ratio"
)

// ParamNames lists every tunable name in report order.
var ParamNames = []string{
	ParamRSIPeriod, ParamATRPeriod, ParamATRAvgPeriod,
	ParamOversold, ParamOverbought,
	ParamTrendRatio, ParamBreakoutRatio,
	ParamRiskRanging, ParamRiskTrending, ParamRiskBreakout,
	ParamSLMultiplier, ParamRewardRatio,
}

// IsIntegerParam reports whether the named knob holds a bar count.
func IsIntegerParam(name string) bool {
	return name == ParamRSIPeriod || name == ParamATRPeriod || name == ParamATRAvgPeriod
}

// ErrUnknownParameter is returned for a name not in ParamNames.
var ErrUnknownParameter = errors.New("unknown parameter")

// DefaultParameterSet returns the stock configuration.
func DefaultParameterSet() ParameterSet {
	return ParameterSet{
		RSIPeriod:     14,
		ATRPeriod:     14,
		ATRAvgPeriod:  20,
		Oversold:      30,
		Overbought:    70,
		TrendRatio:    1.2,
		BreakoutRatio: 2.0,
		RiskRanging:   0.5,
		RiskTrending:  1.0,
		RiskBreakout:  1.5,
		SLMultiplier:  1.5,
		RewardRatio:   2.0,
	}
}

// With returns a copy of p with the named knob set to v. Integer knobs are
// rounded to the nearest whole number.
func (p ParameterSet) With(name string, v float64) (ParameterSet, error) {
	switch name {
	case ParamRSIPeriod:
		p.RSIPeriod = int(math.Round(v))
	case ParamATRPeriod:
		p.ATRPeriod = int(math.Round(v))
	case ParamATRAvgPeriod:
		p.ATRAvgPeriod = int(math.Round(v))
	case ParamOversold:
		p.Oversold = v
	case ParamOverbought:
		p.Overbought = v
	case ParamTrendRatio:
		p.TrendRatio = v
	case ParamBreakoutRatio:
		p.BreakoutRatio = v
	case ParamRiskRanging:
		p.RiskRanging = v
	case ParamRiskTrending:
		p.RiskTrending = v
	case ParamRiskBreakout:
		p.RiskBreakout = v
	case ParamSLMultiplier:
		p.SLMultiplier = v
	case ParamRewardRatio:
		p.RewardRatio = v
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return p, nil
}

// Get returns the named knob as a float64.
func (p ParameterSet) Get(name string) (float64, error) {
	switch name {
	case ParamRSIPeriod:
		return float64(p.RSIPeriod), nil
	case ParamATRPeriod:
		return float64(p.ATRPeriod), nil
	case ParamATRAvgPeriod:
		return float64(p.ATRAvgPeriod), nil
	case ParamOversold:
		return p.Oversold, nil
	case ParamOverbought:
		return p.Overbought, nil
	case ParamTrendRatio:
		return p.TrendRatio, nil
	case ParamBreakoutRatio:
		return p.BreakoutRatio, nil
	case ParamRiskRanging:
		return p.RiskRanging, nil
	case ParamRiskTrending:
		return p.RiskTrending, nil
	case ParamRiskBreakout:
		return p.RiskBreakout, nil
	case ParamSLMultiplier:
		return p.SLMultiplier, nil
	case ParamRewardRatio:
		return p.RewardRatio, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
}

// String renders the set as name=value pairs in ParamNames order.
func (p ParameterSet) String() string {
	parts := make([]string, 0, len(ParamNames))
	for _, name := range ParamNames {
		v, _ := p.Get(name)
		parts = append(parts, fmt.Sprintf("%s=%g", name, v))
	}
	return strings.Join(parts, " ")
}

// Validate checks that all knobs are within sensible bounds and returns the
// first problem found.
func (p ParameterSet) Validate() error {
	if p.RSIPeriod <= 0 {
		return errors.New("RSIPeriod must be positive")
	}
	if p.ATRPeriod <= 0 {
		return errors.New("ATRPeriod must be positive")
	}
	if p.ATRAvgPeriod <= 0 {
		return errors.New("ATRAvgPeriod must be positive")
	}
	if p.Oversold < 0 || p.Overbought > 100 {
		return fmt.Errorf("oscillator thresholds (%g/%g) must lie within [0,100]", p.Oversold, p.Overbought)
	}
	if p.Oversold >= p.Overbought {
		return fmt.Errorf("Oversold (%g) must be below Overbought (%g)", p.Oversold, p.Overbought)
	}
	if p.TrendRatio <= 0 {
		return fmt.Errorf("TrendRatio (%g) must be positive", p.TrendRatio)
	}
	if p.BreakoutRatio < p.TrendRatio {
		return fmt.Errorf("BreakoutRatio (%g) must not be below TrendRatio (%g)", p.BreakoutRatio, p.TrendRatio)
	}
	buckets := []struct {
		name string
		pct  float64
	}{
		{"RiskRanging", p.RiskRanging},
		{"RiskTrending", p.RiskTrending},
		{"RiskBreakout", p.RiskBreakout},
	}
	for _, b := range buckets {
		if b.pct < 0 || b.pct > 100 {
			return fmt.Errorf("%s (%g) must be within [0,100]", b.name, b.pct)
		}
	}
	if p.SLMultiplier <= 0 {
		return fmt.Errorf("SLMultiplier (%g) must be positive", p.SLMultiplier)
	}
	if p.RewardRatio <= 0 {
		return fmt.Errorf("RewardRatio (%g) must be positive", p.RewardRatio)
	}
	return nil
}
