// Package simulator replays a bar series through the single-position state
// machine: exit check, then entry check, for every bar, and a forced close at
// the end of the data.
package simulator

import (
	"errors"
	"fmt"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/indicators"
	"github.com/evdnx/gotsopt/logger"
	"github.com/evdnx/gotsopt/metrics"
	"github.com/evdnx/gotsopt/performance"
	"github.com/evdnx/gotsopt/risk"
	"github.com/evdnx/gotsopt/strategy"
	"github.com/evdnx/gotsopt/types"
)

// ErrInsufficientData is returned when the series does not extend past the
// warm-up window. Nothing is simulated in that case.
var ErrInsufficientData = errors.New("insufficient data")

// Simulator holds the per-search settings shared by every run. It carries no
// per-run state and is safe for concurrent use.
type Simulator struct {
	Log             logger.Logger
	Symbol          string
	Properties      config.SymbolProperties
	StartingBalance float64
	MFIConfirm      bool

	// TradeHook, when set, receives every closed trade. It is called from
	// whichever goroutine runs the backtest.
	TradeHook func(types.SimulatedTrade)
}

// New builds a Simulator from a backtest configuration.
func New(cfg config.BacktestConfig, log logger.Logger) *Simulator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Simulator{
		Log:             log,
		Symbol:          cfg.Symbol,
		Properties:      cfg.Properties,
		StartingBalance: cfg.StartingBalance,
		MFIConfirm:      cfg.MFIConfirm,
	}
}

// Result is the outcome of one completed run.
type Result struct {
	Stats    performance.BacktestStats `json:"stats"`
	Trades   []types.SimulatedTrade    `json:"trades"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// WarmUp is the index of the first bar that may open a position: the
// signal bar before it has a warm oscillator and a warm ATR average.
func WarmUp(p config.ParameterSet) int {
	return max(p.RSIPeriod+1, p.ATRPeriod+p.ATRAvgPeriod)
}

// NewState validates the inputs and precomputes the indicator series.
func (s *Simulator) NewState(bars []types.Bar, params config.ParameterSet) (*SimulationState, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	warm := WarmUp(params)
	if len(bars) <= warm {
		return nil, fmt.Errorf("%w: %d bars, warm-up needs more than %d", ErrInsufficientData, len(bars), warm)
	}

	atr := indicators.ATRSeries(bars, params.ATRPeriod)
	state := &SimulationState{
		Phase:  Flat,
		Stats:  performance.NewStats(s.StartingBalance),
		params: params,
		warmUp: warm,
		rsi:    indicators.RSISeries(bars, params.RSIPeriod),
		atr:    atr,
		atrAvg: indicators.ATRAverageSeries(atr, params.ATRPeriod, params.ATRAvgPeriod),
	}
	if s.MFIConfirm {
		f, err := indicators.NewMFIFilter()
		if err != nil {
			s.logger().Warn("mfi_filter_unavailable", logger.Err(err))
			state.warn("mfi filter unavailable: " + err.Error())
		} else {
			state.mfi = f
		}
	}
	return state, nil
}

// Run simulates the whole series and returns finalized statistics.
func (s *Simulator) Run(bars []types.Bar, params config.ParameterSet) (*Result, error) {
	state, err := s.NewState(bars, params)
	if err != nil {
		return nil, err
	}
	for i := range bars {
		s.Step(state, bars, i)
	}
	s.Finish(state, bars)
	metrics.TradesSimulated.Add(float64(len(state.Trades)))
	return &Result{Stats: state.Stats, Trades: state.Trades, Warnings: state.Warnings}, nil
}

// Step applies bar i: exit check if in a position, then entry check if flat.
// Bars must be stepped in order, starting at 0. The last bar never opens a
// position: it would close at its own entry price.
func (s *Simulator) Step(state *SimulationState, bars []types.Bar, i int) {
	bar := bars[i]
	if state.Phase == InPosition {
		s.checkExit(state, bar)
	}
	if state.Phase == Flat && i >= state.warmUp && i < len(bars)-1 {
		s.checkEntry(state, bars, i)
	}
	if state.mfi != nil {
		if err := state.mfi.Add(bar); err != nil {
			s.logger().Warn("mfi_filter_add_failed", logger.Int("index", i), logger.Err(err))
			state.warn(fmt.Sprintf("mfi filter disabled at bar %d: %v", i, err))
		}
	}
}

// Finish closes any open position at the last close and finalizes stats.
func (s *Simulator) Finish(state *SimulationState, bars []types.Bar) {
	if state.Phase == InPosition && len(bars) > 0 {
		last := bars[len(bars)-1]
		s.close(state, last, last.Close, types.ExitEndOfData)
	}
	performance.Finalize(&state.Stats)
}

// checkExit tests the stop before the target, so a bar that spans both
// closes at the stop.
func (s *Simulator) checkExit(state *SimulationState, bar types.Bar) {
	pos := state.Position
	switch {
	case strategy.StopHit(bar, pos.Stop, pos.IsLong):
		s.close(state, bar, pos.Stop, types.ExitStopLoss)
	case strategy.TargetHit(bar, pos.Target, pos.IsLong):
		s.close(state, bar, pos.Target, types.ExitTakeProfit)
	}
}

func (s *Simulator) checkEntry(state *SimulationState, bars []types.Bar, i int) {
	p := state.params
	signal := strategy.Entry(state.rsi[i-1], p)
	if signal == strategy.None {
		return
	}
	isLong := signal == strategy.Long
	if state.mfi != nil {
		if isLong && !state.mfi.ConfirmLong() || !isLong && !state.mfi.ConfirmShort() {
			return
		}
	}

	atr := state.atr[i-1]
	entry := bars[i].Close
	bracket, ok := strategy.NewBracket(entry, atr, isLong, p)
	if !ok {
		return
	}
	regime := strategy.ClassifyRegime(atr, state.atrAvg[i-1], p)
	riskPct := strategy.RiskFor(regime, p)

	lots, err := risk.LotSize(state.Stats.CurrentBalance, riskPct, bracket.StopDistance, s.Properties)
	if errors.Is(err, risk.ErrInvalidSymbolProperties) && !state.symbolWarned {
		state.symbolWarned = true
		state.warn(err.Error())
		s.logger().Warn("invalid_symbol_properties",
			logger.String("symbol", s.Symbol),
			logger.Float64("tick_size", s.Properties.TickSize),
			logger.Float64("tick_value", s.Properties.TickValue),
			logger.Float64("min_lot", s.Properties.MinLot),
		)
	}

	state.Phase = InPosition
	state.Position = Position{
		OpenTime:    bars[i].Time,
		IsLong:      isLong,
		Entry:       entry,
		Stop:        bracket.Stop,
		Target:      bracket.Target,
		Lots:        lots,
		Regime:      regime,
		RiskPercent: riskPct,
	}
}

func (s *Simulator) close(state *SimulationState, bar types.Bar, price float64, reason types.ExitReason) {
	pos := state.Position
	trade := types.SimulatedTrade{
		OpenTime:    pos.OpenTime,
		CloseTime:   bar.Time,
		EntryPrice:  pos.Entry,
		ExitPrice:   price,
		StopLoss:    pos.Stop,
		TakeProfit:  pos.Target,
		LotSize:     pos.Lots,
		IsLong:      pos.IsLong,
		PnL:         risk.PnL(pos.Entry, price, pos.Lots, pos.IsLong, s.Properties),
		ExitReason:  reason,
		Regime:      pos.Regime,
		RiskPercent: pos.RiskPercent,
	}
	state.Trades = append(state.Trades, trade)
	performance.Record(trade, &state.Stats)
	state.Phase = Flat
	state.Position = Position{}

	s.logger().Debug("trade_closed",
		logger.String("symbol", s.Symbol),
		logger.String("side", string(trade.Side())),
		logger.String("reason", string(reason)),
		logger.Float64("pnl", trade.PnL),
		logger.Float64("balance", state.Stats.CurrentBalance),
	)
	if s.TradeHook != nil {
		s.TradeHook(trade)
	}
}

func (s *Simulator) logger() logger.Logger {
	if s.Log == nil {
		return logger.NewNop()
	}
	return s.Log
}
