package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/optimizer"
	"github.com/evdnx/gotsopt/performance"
	"github.com/evdnx/gotsopt/types"
)

func sampleSummary() *optimizer.Summary {
	win := performance.Aggregate(10_000, []types.SimulatedTrade{{PnL: 1500}, {PnL: -265.5}, {PnL: 0}})
	flat := performance.Aggregate(10_000, []types.SimulatedTrade{{PnL: 10}, {PnL: -10}})
	p1 := config.DefaultParameterSet()
	p2, _ := p1.With(config.ParamOversold, 25)
	top := []optimizer.Result{
		{Index: 4, Parameters: p1, Stats: win, Score: win.NetProfit},
		{Index: 0, Parameters: p2, Stats: flat, Score: flat.NetProfit},
	}
	return &optimizer.Summary{
		RunID:          "8a4c",
		Symbol:         "EURUSD",
		Mode:           config.ModeNetProfit,
		Total:          6,
		Evaluated:      6,
		ValidResults:   2,
		InvalidResults: 4,
		Invalid:        map[optimizer.InvalidReason]int{optimizer.ReasonMinTrades: 4},
		Best:           &top[0],
		Top:            top,
		Started:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:       2 * time.Second,
	}
}

/*
-----------------------------------------------------------------------
Test 1 – JSON carries every reported field.
-----------------------------------------------------------------------
*/
func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sampleSummary()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	best, ok := doc["best"].(map[string]any)
	if !ok {
		t.Fatalf("best missing: %s", buf.String())
	}
	for _, key := range []string{
		"symbol", "parameters", "total_trades", "win_rate", "net_profit",
		"profit_factor", "max_drawdown_percent", "expectancy", "risk_reward_ratio",
	} {
		if _, ok := best[key]; !ok {
			t.Fatalf("best lacks %q", key)
		}
	}
	params := best["parameters"].(map[string]any)
	if len(params) != len(config.ParamNames) {
		t.Fatalf("expected %d parameters, got %d", len(config.ParamNames), len(params))
	}
	if best["net_profit"].(float64) != 1234.5 || best["total_trades"].(float64) != 3 {
		t.Fatalf("unexpected best %v", best)
	}
	if doc["invalid"].(map[string]any)["min_trades"].(float64) != 4 {
		t.Fatal("invalid tallies missing")
	}
	if len(doc["top"].([]any)) != 2 {
		t.Fatal("expected two ranked rows")
	}
}

/*
-----------------------------------------------------------------------
Test 2 – CSV has a header and one row per ranked result.
-----------------------------------------------------------------------
*/
func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleSummary()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not CSV: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(recs))
	}
	head := CSVHeader()
	if strings.Join(recs[0], ",") != strings.Join(head, ",") {
		t.Fatalf("unexpected header %v", recs[0])
	}
	col := func(name string) int {
		for i, h := range head {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing", name)
		return -1
	}
	if recs[1][col("symbol")] != "EURUSD" || recs[1][col("net_profit")] != "1234.5" {
		t.Fatalf("unexpected first row %v", recs[1])
	}
	if recs[2][col("oversold")] != "25" || recs[2][col("rank")] != "2" {
		t.Fatalf("unexpected second row %v", recs[2])
	}
}

/*
-----------------------------------------------------------------------
Test 3 – Text report: header, best parameters, grouped numbers.
-----------------------------------------------------------------------
*/
func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatText, sampleSummary()); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"EURUSD", "mode=net_profit", "Best parameters", "rsi_period",
		"reward_ratio", "1,234.50", "33.3%", "profit factor", "R:R",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("text report lacks %q:\n%s", want, out)
		}
	}
}

func TestWriteTextNoResults(t *testing.T) {
	sum := sampleSummary()
	sum.Top, sum.Best = nil, nil
	sum.Diagnostic = "all 6 combinations rejected, mostly min_trades"
	var buf bytes.Buffer
	if err := WriteText(&buf, sum); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Diagnostic: all 6") || !strings.Contains(buf.String(), "No result") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "Table": FormatText, "CSV": FormatCSV, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected an error for xml")
	}
	if err := Write(&bytes.Buffer{}, FormatJSON, nil); err == nil {
		t.Fatal("expected an error for a nil summary")
	}
}
