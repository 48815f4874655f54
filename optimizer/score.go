package optimizer

import (
	"cmp"
	"slices"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/performance"
)

// Result is one valid, scored combination.
type Result struct {
	Index      int                       `json:"index"`
	Parameters config.ParameterSet       `json:"parameters"`
	Stats      performance.BacktestStats `json:"stats"`
	Score      float64                   `json:"score"`
}

// Score ranks finalized stats under mode.
func Score(mode config.OptimizationMode, stats performance.BacktestStats, w config.ScoreWeights) float64 {
	switch mode {
	case config.ModeProfitFactor:
		return stats.ProfitFactor
	case config.ModeSharpeLike:
		// A run that never drew down scores its raw profit.
		if stats.MaxDrawdownPercent == 0 {
			return stats.NetProfit
		}
		return stats.NetProfit / stats.MaxDrawdownPercent
	case config.ModeCustomScore:
		returnPct := 0.0
		if stats.StartingBalance != 0 {
			returnPct = stats.NetProfit / stats.StartingBalance * 100
		}
		return w.NetProfit*returnPct +
			w.ProfitFactor*stats.ProfitFactor +
			w.WinRate*stats.WinRate*100 +
			w.Drawdown*(100-stats.MaxDrawdownPercent)
	default:
		return stats.NetProfit
	}
}

// compareResults orders by score descending, then drawdown ascending, then
// index ascending. It is a total order, so any merge of the same results
// sorts the same way.
func compareResults(a, b Result) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Stats.MaxDrawdownPercent, b.Stats.MaxDrawdownPercent); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// topN is a bounded list kept in ranking order.
type topN struct {
	n     int
	items []Result
}

func newTopN(n int) *topN { return &topN{n: n, items: make([]Result, 0, n)} }

func (t *topN) add(r Result) {
	pos, _ := slices.BinarySearchFunc(t.items, r, compareResults)
	if pos >= t.n {
		return
	}
	t.items = slices.Insert(t.items, pos, r)
	if len(t.items) > t.n {
		t.items = t.items[:t.n]
	}
}

// mergeTop combines partial lists into one ranking of at most n results.
func mergeTop(n int, parts ...[]Result) []Result {
	var all []Result
	for _, p := range parts {
		all = append(all, p...)
	}
	slices.SortFunc(all, compareResults)
	if len(all) > n {
		all = all[:n]
	}
	return all
}
