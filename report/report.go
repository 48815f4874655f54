// Package report renders optimizer summaries as a text table, CSV or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/optimizer"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format selects the renderer.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts text, table, csv or json (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Write renders sum to w in the given format.
func Write(w io.Writer, f Format, sum *optimizer.Summary) error {
	if sum == nil {
		return errors.New("summary cannot be nil")
	}
	switch f {
	case FormatText:
		return WriteText(w, sum)
	case FormatCSV:
		return WriteCSV(w, sum)
	case FormatJSON:
		return WriteJSON(w, sum)
	}
	return fmt.Errorf("unknown report format %q", f)
}

// Row is one ranked combination flattened for output.
type Row struct {
	Rank               int                `json:"rank"`
	Symbol             string             `json:"symbol"`
	Score              float64            `json:"score"`
	Parameters         map[string]float64 `json:"parameters"`
	TotalTrades        int                `json:"total_trades"`
	WinRate            float64            `json:"win_rate"`
	NetProfit          float64            `json:"net_profit"`
	ProfitFactor       float64            `json:"profit_factor"`
	MaxDrawdownPercent float64            `json:"max_drawdown_percent"`
	Expectancy         float64            `json:"expectancy"`
	RiskRewardRatio    float64            `json:"risk_reward_ratio"`
}

// Rows flattens sum.Top in rank order.
func Rows(sum *optimizer.Summary) []Row {
	rows := make([]Row, 0, len(sum.Top))
	for i, res := range sum.Top {
		params := make(map[string]float64, len(config.ParamNames))
		for _, name := range config.ParamNames {
			v, _ := res.Parameters.Get(name)
			params[name] = v
		}
		rows = append(rows, Row{
			Rank:               i + 1,
			Symbol:             sum.Symbol,
			Score:              res.Score,
			Parameters:         params,
			TotalTrades:        res.Stats.TotalTrades,
			WinRate:            res.Stats.WinRate,
			NetProfit:          res.Stats.NetProfit,
			ProfitFactor:       res.Stats.ProfitFactor,
			MaxDrawdownPercent: res.Stats.MaxDrawdownPercent,
			Expectancy:         res.Stats.Expectancy,
			RiskRewardRatio:    res.Stats.RiskRewardRatio,
		})
	}
	return rows
}

// document is the JSON shape.
type document struct {
	RunID          string         `json:"run_id"`
	Symbol         string         `json:"symbol"`
	Mode           string         `json:"mode"`
	Total          int            `json:"total"`
	Evaluated      int            `json:"evaluated"`
	ValidResults   int            `json:"valid_results"`
	InvalidResults int            `json:"invalid_results"`
	Invalid        map[string]int `json:"invalid"`
	Diagnostic     string         `json:"diagnostic,omitempty"`
	Canceled       bool           `json:"canceled"`
	Started        time.Time      `json:"started"`
	DurationMs     int64          `json:"duration_ms"`
	Best           *Row           `json:"best"`
	Top            []Row          `json:"top"`
}

func WriteJSON(w io.Writer, sum *optimizer.Summary) error {
	doc := document{
		RunID:          sum.RunID,
		Symbol:         sum.Symbol,
		Mode:           string(sum.Mode),
		Total:          sum.Total,
		Evaluated:      sum.Evaluated,
		ValidResults:   sum.ValidResults,
		InvalidResults: sum.InvalidResults,
		Invalid:        make(map[string]int, len(sum.Invalid)),
		Diagnostic:     sum.Diagnostic,
		Canceled:       sum.Canceled,
		Started:        sum.Started.UTC(),
		DurationMs:     sum.Duration.Milliseconds(),
		Top:            Rows(sum),
	}
	for reason, n := range sum.Invalid {
		doc.Invalid[string(reason)] = n
	}
	if len(doc.Top) > 0 {
		doc.Best = &doc.Top[0]
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// CSVHeader is the column order of WriteCSV.
func CSVHeader() []string {
	head := []string{"rank", "symbol", "score"}
	head = append(head, config.ParamNames...)
	return append(head,
		"total_trades", "win_rate", "net_profit", "profit_factor",
		"max_drawdown_percent", "expectancy", "risk_reward_ratio",
	)
}

// WriteCSV emits one row per ranked result, best first.
func WriteCSV(w io.Writer, sum *optimizer.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return err
	}
	for _, r := range Rows(sum) {
		rec := []string{strconv.Itoa(r.Rank), r.Symbol, ftoa(r.Score)}
		for _, name := range config.ParamNames {
			rec = append(rec, ftoa(r.Parameters[name]))
		}
		rec = append(rec,
			strconv.Itoa(r.TotalTrades),
			ftoa(r.WinRate),
			ftoa(r.NetProfit),
			ftoa(r.ProfitFactor),
			ftoa(r.MaxDrawdownPercent),
			ftoa(r.Expectancy),
			ftoa(r.RiskRewardRatio),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteText prints a run header, the best combination's parameters and a
// ranked table.
func WriteText(w io.Writer, sum *optimizer.Summary) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Run %s  %s  mode=%s\n", sum.RunID, sum.Symbol, sum.Mode)
	p.Fprintf(w, "Combinations: %d evaluated of %d, %d valid, %d filtered",
		sum.Evaluated, sum.Total, sum.ValidResults, sum.InvalidResults)
	if sum.Canceled {
		p.Fprintf(w, " (canceled)")
	}
	p.Fprintf(w, "  in %v\n", sum.Duration.Round(time.Millisecond))
	if sum.Diagnostic != "" {
		p.Fprintf(w, "Diagnostic: %s\n", sum.Diagnostic)
	}

	rows := Rows(sum)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No result passed the filters.")
		return err
	}

	best := rows[0]
	p.Fprintf(w, "\nBest parameters for %s:\n", best.Symbol)
	for _, name := range config.ParamNames {
		p.Fprintf(w, "  %-16s %v\n", name, best.Parameters[name])
	}

	p.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tscore\ttrades\twin rate\tnet profit\tprofit factor\tmax dd %\texpectancy\tR:R\t")
	for _, r := range rows {
		p.Fprintf(tw, "%d\t%.2f\t%d\t%.1f%%\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			r.Rank, r.Score, r.TotalTrades, r.WinRate*100, r.NetProfit,
			r.ProfitFactor, r.MaxDrawdownPercent, r.Expectancy, r.RiskRewardRatio)
	}
	return tw.Flush()
}
