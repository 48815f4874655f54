package optimizer

import (
	"errors"
	"testing"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/performance"
)

func TestDimensionValues(t *testing.T) {
	cases := []struct {
		dim  Dimension
		want []float64
	}{
		{Dimension{Name: "a", Min: 0.1, Max: 0.5, Step: 0.1}, []float64{0.1, 0.2, 0.3, 0.4, 0.5}},
		{Dimension{Name: "a", Min: 1, Max: 2, Step: 0.3}, []float64{1, 1.3, 1.6, 1.9}},
		{Dimension{Name: "a", Min: 5, Max: 5, Step: 1}, []float64{5}},
		{Dimension{Name: "a", Min: 5, Max: 9, Step: 0}, []float64{5}},
		{Dimension{Name: "a", Min: 5, Max: 6, Step: 3}, []float64{5}},
	}
	for _, c := range cases {
		got, err := c.dim.Values()
		if err != nil {
			t.Fatalf("%s: %v", c.dim, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("%s: got %v, want %v", c.dim, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%s: value %d = %v, want %v", c.dim, i, got[i], c.want[i])
			}
		}
	}
}

func TestNewSpaceRejects(t *testing.T) {
	base := config.DefaultParameterSet()
	if _, err := NewSpace(base, Dimension{Name: "nope", Min: 1, Max: 2, Step: 1}); !errors.Is(err, config.ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	bad := []Dimension{
		{Name: config.ParamOversold, Min: 1, Max: 2, Step: -1},
		{Name: config.ParamOversold, Min: 3, Max: 2, Step: 1},
		{Name: config.ParamRSIPeriod, Min: 5, Max: 6, Step: 0.5},
		{Name: config.ParamATRPeriod, Min: 5.5, Max: 5.5},
		{Name: config.ParamATRAvgPeriod, Min: 10, Max: 20.5, Step: 5},
	}
	for _, d := range bad {
		if _, err := NewSpace(base, d); err == nil {
			t.Fatalf("expected %s to be rejected", d)
		}
	}
	if _, err := NewSpace(base, Dimension{Name: config.ParamOversold, Min: 20, Max: 21, Step: 0.5}); err != nil {
		t.Fatalf("fractional step on a threshold must be accepted: %v", err)
	}
	dup := Dimension{Name: config.ParamOversold, Min: 1, Max: 2, Step: 1}
	if _, err := NewSpace(base, dup, dup); err == nil {
		t.Fatal("expected duplicate dimension to be rejected")
	}
}

func TestSpaceEnumeration(t *testing.T) {
	s, err := NewSpace(config.DefaultParameterSet(),
		Dimension{Name: config.ParamRSIPeriod, Min: 10, Max: 14, Step: 2},
		Dimension{Name: config.ParamRewardRatio, Min: 1, Max: 2, Step: 1},
	)
	if err != nil {
		t.Fatalf("NewSpace failed: %v", err)
	}
	if s.Size() != 6 {
		t.Fatalf("expected 6 combinations, got %d", s.Size())
	}
	want := []struct {
		period int
		reward float64
	}{{10, 1}, {10, 2}, {12, 1}, {12, 2}, {14, 1}, {14, 2}}

	n := 0
	for i, p := range s.All() {
		if i != n {
			t.Fatalf("index %d out of order", i)
		}
		if p.RSIPeriod != want[i].period || p.RewardRatio != want[i].reward {
			t.Fatalf("combination %d = (%d, %v), want %+v", i, p.RSIPeriod, p.RewardRatio, want[i])
		}
		if p.ATRPeriod != 14 || p.Oversold != 30 {
			t.Fatal("knobs without a dimension must keep their base value")
		}
		if s.At(i) != p {
			t.Fatalf("At(%d) disagrees with All", i)
		}
		n++
	}
	if n != 6 {
		t.Fatalf("All yielded %d combinations", n)
	}

	stopped := 0
	for range s.All() {
		stopped++
		if stopped == 2 {
			break
		}
	}
	if stopped != 2 {
		t.Fatal("iteration did not stop on break")
	}
}

func TestSpaceWithoutDimensions(t *testing.T) {
	base := config.DefaultParameterSet()
	s, err := NewSpace(base)
	if err != nil {
		t.Fatalf("NewSpace failed: %v", err)
	}
	if s.Size() != 1 || s.At(0) != base {
		t.Fatal("an empty space is the base parameter set alone")
	}
}

func TestScoreModes(t *testing.T) {
	stats := performance.BacktestStats{
		StartingBalance:    10_000,
		NetProfit:          500,
		ProfitFactor:       1.5,
		WinRate:            0.6,
		MaxDrawdownPercent: 4,
	}
	w := config.DefaultScoreWeights()
	if got := Score(config.ModeNetProfit, stats, w); got != 500 {
		t.Fatalf("net profit score %v", got)
	}
	if got := Score(config.ModeProfitFactor, stats, w); got != 1.5 {
		t.Fatalf("profit factor score %v", got)
	}
	if got := Score(config.ModeSharpeLike, stats, w); got != 125 {
		t.Fatalf("sharpe-like score %v, want 125", got)
	}
	// 0.4*5 + 0.3*1.5 + 0.2*60 + 0.1*96
	want := 2 + 0.45 + 12 + 9.6
	if got := Score(config.ModeCustomScore, stats, w); got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("custom score %v, want %v", got, want)
	}

	stats.MaxDrawdownPercent = 0
	if got := Score(config.ModeSharpeLike, stats, w); got != 500 {
		t.Fatalf("zero drawdown must not blow up the sharpe-like score, got %v", got)
	}

	// Sub-1% drawdowns divide as they are.
	a := performance.BacktestStats{NetProfit: 100, MaxDrawdownPercent: 0.2}
	b := performance.BacktestStats{NetProfit: 300, MaxDrawdownPercent: 0.9}
	sa, sb := Score(config.ModeSharpeLike, a, w), Score(config.ModeSharpeLike, b, w)
	if sa < 500-1e-9 || sa > 500+1e-9 {
		t.Fatalf("sharpe-like score %v, want 500", sa)
	}
	if sb < 333.33-0.01 || sb > 333.34 {
		t.Fatalf("sharpe-like score %v, want 333.33", sb)
	}
	if sa <= sb {
		t.Fatal("lower drawdown per unit profit must rank first")
	}
}

func TestRankingTiebreaks(t *testing.T) {
	mk := func(idx int, score, dd float64) Result {
		return Result{Index: idx, Score: score, Stats: performance.BacktestStats{MaxDrawdownPercent: dd}}
	}
	a := []Result{mk(4, 10, 5), mk(1, 12, 9)}
	b := []Result{mk(2, 10, 3), mk(0, 10, 5), mk(3, 1, 0)}

	got := mergeTop(4, a, b)
	wantIdx := []int{1, 2, 0, 4}
	if len(got) != 4 {
		t.Fatalf("expected 4 results, got %d", len(got))
	}
	for i, r := range got {
		if r.Index != wantIdx[i] {
			t.Fatalf("rank %d = index %d, want %d", i, r.Index, wantIdx[i])
		}
	}
	if again := mergeTop(4, b, a); !equalIdx(again, wantIdx) {
		t.Fatal("merge depends on the order of partial lists")
	}

	top := newTopN(2)
	for _, r := range append(a, b...) {
		top.add(r)
	}
	if !equalIdx(top.items, wantIdx[:2]) {
		t.Fatalf("bounded top-N kept %+v", top.items)
	}
}

func equalIdx(rs []Result, idx []int) bool {
	if len(rs) != len(idx) {
		return false
	}
	for i := range rs {
		if rs[i].Index != idx[i] {
			return false
		}
	}
	return true
}
