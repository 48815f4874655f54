package simulator

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/testutils"
	"github.com/evdnx/gotsopt/types"
)

// fastParams uses 5-bar windows so the synthetic series warm up by bar 10.
// Overbought is pinned at 100 so the strict short rule can never fire.
func fastParams() config.ParameterSet {
	p := config.DefaultParameterSet()
	p.RSIPeriod = 5
	p.ATRPeriod = 5
	p.ATRAvgPeriod = 5
	p.Oversold = 30
	p.Overbought = 100
	p.SLMultiplier = 1.5
	p.RewardRatio = 2.0
	return p
}

func newSim(t *testing.T) (*Simulator, *testutils.MockLogger) {
	t.Helper()
	log := testutils.NewMockLogger()
	cfg := config.DefaultBacktestConfig()
	cfg.Symbol = "EURUSD"
	return New(cfg, log), log
}

/*
-----------------------------------------------------------------------
Test 1 – Oversold at bar 10, rally afterwards → one long, take-profit.
-----------------------------------------------------------------------
*/
func TestRun_OversoldThenRally(t *testing.T) {
	sim, _ := newSim(t)
	bars := testutils.OversoldThenRally(100)

	res, err := sim.Run(bars, fastParams())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Trades) != 1 || res.Stats.TotalTrades != 1 {
		t.Fatalf("expected exactly one trade, got %d (%+v)", len(res.Trades), res.Trades)
	}
	tr := res.Trades[0]
	if !tr.IsLong {
		t.Fatal("expected a long trade")
	}
	if !tr.OpenTime.Equal(bars[11].Time) || tr.EntryPrice != bars[11].Close {
		t.Fatalf("expected entry at bar 11 close %v, got %v @ %v", bars[11].Close, tr.OpenTime, tr.EntryPrice)
	}
	if tr.ExitReason != types.ExitTakeProfit {
		t.Fatalf("expected TakeProfit, got %s", tr.ExitReason)
	}
	if !tr.CloseTime.Before(bars[len(bars)-1].Time) {
		t.Fatal("take-profit should fire well before the last bar")
	}
	if math.Abs(tr.StopLoss-1.0986) > 1e-9 || math.Abs(tr.TakeProfit-1.1031) > 1e-9 {
		t.Fatalf("unexpected bracket stop=%v target=%v", tr.StopLoss, tr.TakeProfit)
	}
	if tr.Regime != types.RegimeRanging || tr.RiskPercent != 0.5 {
		t.Fatalf("expected ranging regime at 0.5%% risk, got %s %v", tr.Regime, tr.RiskPercent)
	}
	if tr.LotSize != 0.33 {
		t.Fatalf("expected 0.33 lots, got %v", tr.LotSize)
	}
	if tr.PnL <= 0 || math.Abs(tr.PnL-99) > 1e-6 {
		t.Fatalf("expected pnl ≈ 99, got %v", tr.PnL)
	}
	if math.Abs(res.Stats.NetProfit-tr.PnL) > 1e-9 || res.Stats.WinRate != 1 {
		t.Fatalf("stats do not reflect the trade: %+v", res.Stats)
	}
}

/*
-----------------------------------------------------------------------
Test 2 – A flat market has zero ATR, so nothing ever opens.
-----------------------------------------------------------------------
*/
func TestRun_FlatMarketNoTrades(t *testing.T) {
	sim, _ := newSim(t)
	res, err := sim.Run(testutils.FlatBars(100, 1.1), config.DefaultParameterSet())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Stats.TotalTrades != 0 || len(res.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", res.Stats.TotalTrades)
	}
	if res.Stats.ProfitFactor != 0 || res.Stats.WinRate != 0 {
		t.Fatalf("expected zeroed ratios, got %+v", res.Stats)
	}
}

/*
-----------------------------------------------------------------------
Test 3 – Series no longer than the warm-up window is rejected.
-----------------------------------------------------------------------
*/
func TestRun_InsufficientData(t *testing.T) {
	sim, _ := newSim(t)
	p := fastParams()
	if WarmUp(p) != 10 {
		t.Fatalf("WarmUp = %d, want 10", WarmUp(p))
	}
	res, err := sim.Run(testutils.OversoldThenRally(12)[:10], p)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if res != nil {
		t.Fatal("no partial result may be returned")
	}
	if _, err := sim.Run(testutils.OversoldThenRally(12)[:11], p); err != nil {
		t.Fatalf("one bar past warm-up should run, got %v", err)
	}
}

func TestRun_NoEntryOnLastBar(t *testing.T) {
	sim, _ := newSim(t)
	p := fastParams()

	// The oversold signal of bar 10 would fill on bar 11, the last one.
	res, err := sim.Run(testutils.OversoldThenRally(12), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Trades) != 0 || res.Stats.TotalTrades != 0 {
		t.Fatalf("expected no trade opened on the last bar, got %+v", res.Trades)
	}

	bars := testutils.OversoldThenRally(13)
	res, err = sim.Run(bars, p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Trades) != 1 || !res.Trades[0].OpenTime.Equal(bars[11].Time) {
		t.Fatalf("expected one trade opened at bar 11, got %+v", res.Trades)
	}
	if res.Trades[0].CloseTime.Equal(res.Trades[0].OpenTime) {
		t.Fatal("trade must not close on its entry bar")
	}
}

func TestRun_InvalidParameters(t *testing.T) {
	sim, _ := newSim(t)
	p := fastParams()
	p.Oversold = 80
	p.Overbought = 20
	if _, err := sim.Run(testutils.OversoldThenRally(50), p); err == nil {
		t.Fatal("expected a validation error")
	}
}

/*
-----------------------------------------------------------------------
Test 4 – A bar that spans both stop and target closes at the stop.
-----------------------------------------------------------------------
*/
func TestRun_SameBarStopWins(t *testing.T) {
	sim, _ := newSim(t)
	bars := testutils.OversoldThenRally(30)
	c11 := bars[11].Close
	bars[12].High = c11 + 0.01
	bars[12].Low = c11 - 0.01

	res, err := sim.Run(bars, fastParams())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Trades) == 0 {
		t.Fatal("expected a trade")
	}
	tr := res.Trades[0]
	if tr.ExitReason != types.ExitStopLoss {
		t.Fatalf("expected StopLoss on the ambiguous bar, got %s", tr.ExitReason)
	}
	if tr.ExitPrice != tr.StopLoss || !tr.CloseTime.Equal(bars[12].Time) {
		t.Fatalf("expected exit at the stop on bar 12, got %v @ %v", tr.ExitPrice, tr.CloseTime)
	}
	if tr.PnL >= 0 {
		t.Fatalf("stop-out must lose money, got %v", tr.PnL)
	}
}

/*
-----------------------------------------------------------------------
Test 5 – Untouchable bracket → the only exit is EndOfData at the last bar.
-----------------------------------------------------------------------
*/
func TestRun_EndOfDataOnly(t *testing.T) {
	sim, _ := newSim(t)
	p := fastParams()
	p.SLMultiplier = 100
	bars := testutils.OversoldThenRally(40)

	res, err := sim.Run(bars, p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(res.Trades))
	}
	last := bars[len(bars)-1]
	tr := res.Trades[0]
	if tr.ExitReason != types.ExitEndOfData {
		t.Fatalf("expected EndOfData, got %s", tr.ExitReason)
	}
	if !tr.CloseTime.Equal(last.Time) || tr.ExitPrice != last.Close {
		t.Fatalf("expected close at the last bar, got %v @ %v", tr.CloseTime, tr.ExitPrice)
	}
	if tr.LotSize != config.DefaultSymbolProperties().MinLot {
		t.Fatalf("a wide stop should size at MinLot, got %v", tr.LotSize)
	}
}

/*
-----------------------------------------------------------------------
Test 6 – Identical inputs give byte-identical stats.
-----------------------------------------------------------------------
*/
func TestRun_Deterministic(t *testing.T) {
	sim, _ := newSim(t)
	bars := testutils.RandomWalk(600, 7)
	p := fastParams()
	p.Oversold = 40
	p.Overbought = 60

	a, err := sim.Run(bars, p)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	b, err := sim.Run(bars, p)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatal("two runs over the same input differ")
	}
}

/*
-----------------------------------------------------------------------
Test 7 – Positions never overlap and the balance adds up.
-----------------------------------------------------------------------
*/
func TestRun_SinglePositionInvariant(t *testing.T) {
	sim, _ := newSim(t)
	p := fastParams()
	p.Oversold = 45
	p.Overbought = 55
	p.SLMultiplier = 1
	p.RewardRatio = 1

	for seed := uint64(1); seed <= 5; seed++ {
		bars := testutils.RandomWalk(400, seed)
		state, err := sim.NewState(bars, p)
		if err != nil {
			t.Fatalf("seed %d: NewState failed: %v", seed, err)
		}
		open := 0
		for i := range bars {
			before := len(state.Trades)
			wasOpen := state.Phase == InPosition
			sim.Step(state, bars, i)
			closed := len(state.Trades) - before
			if closed > 1 {
				t.Fatalf("seed %d bar %d: %d trades closed on one bar", seed, i, closed)
			}
			if closed == 1 && !wasOpen {
				t.Fatalf("seed %d bar %d: closed a position that was not open", seed, i)
			}
			if state.Phase == InPosition {
				open++
			}
		}
		sim.Finish(state, bars)
		if state.Phase != Flat {
			t.Fatalf("seed %d: position left open after Finish", seed)
		}
		if open == 0 || len(state.Trades) < 2 {
			t.Fatalf("seed %d: series too quiet to exercise the invariant (%d trades)", seed, len(state.Trades))
		}

		sum := 0.0
		for k, tr := range state.Trades {
			sum += tr.PnL
			if k > 0 && tr.OpenTime.Before(state.Trades[k-1].CloseTime) {
				t.Fatalf("seed %d: trade %d opened before trade %d closed", seed, k, k-1)
			}
		}
		if math.Abs(state.Stats.CurrentBalance-(state.Stats.StartingBalance+sum)) > 1e-6 {
			t.Fatalf("seed %d: balance %v != start + Σpnl", seed, state.Stats.CurrentBalance)
		}
	}
}

/*
-----------------------------------------------------------------------
Test 8 – Zero tick size: warn once, size at MinLot, keep running.
-----------------------------------------------------------------------
*/
func TestRun_InvalidSymbolPropertiesWarnsOnce(t *testing.T) {
	sim, log := newSim(t)
	sim.Properties.TickSize = 0

	p := fastParams()
	p.Oversold = 45
	p.Overbought = 55
	res, err := sim.Run(testutils.RandomWalk(400, 3), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Trades) < 2 {
		t.Fatalf("expected several trades, got %d", len(res.Trades))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", res.Warnings)
	}
	if n := log.Count("warn", "invalid_symbol_properties"); n != 1 {
		t.Fatalf("expected one warning log, got %d", n)
	}
	if sym, ok := log.FieldString("invalid_symbol_properties", "symbol"); !ok || sym != "EURUSD" {
		t.Fatalf("expected symbol field EURUSD, got %q", sym)
	}
	for _, tr := range res.Trades {
		if tr.LotSize != sim.Properties.MinLot || tr.PnL != 0 {
			t.Fatalf("expected MinLot and zero pnl, got %v / %v", tr.LotSize, tr.PnL)
		}
	}
}

func TestRun_TradeHookSeesEveryTrade(t *testing.T) {
	sim, _ := newSim(t)
	var seen []types.SimulatedTrade
	sim.TradeHook = func(tr types.SimulatedTrade) { seen = append(seen, tr) }

	p := fastParams()
	p.Oversold = 45
	p.Overbought = 55
	res, err := sim.Run(testutils.RandomWalk(300, 11), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(seen) != len(res.Trades) {
		t.Fatalf("hook saw %d trades, result has %d", len(seen), len(res.Trades))
	}
}

func TestRun_MFIConfirmation(t *testing.T) {
	sim, _ := newSim(t)
	sim.MFIConfirm = true
	p := fastParams()
	p.Oversold = 45
	p.Overbought = 55
	bars := testutils.RandomWalk(400, 5)

	a, err := sim.Run(bars, p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := sim.Run(bars, p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if a.Stats != b.Stats {
		t.Fatal("filtered runs must be deterministic")
	}
	for k := 1; k < len(a.Trades); k++ {
		if a.Trades[k].OpenTime.Before(a.Trades[k-1].CloseTime) {
			t.Fatal("filtered run produced overlapping trades")
		}
	}
}
