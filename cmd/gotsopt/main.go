// Command gotsopt loads a bar series, grid-searches the oscillator/ATR rule
// set over it and prints a ranked report.
//
//	gotsopt -symbol EURUSD -timeframe 1h -start 2024-01-01 \
//	    -range oversold=20:35:5 -range sl_multiplier=1:2:0.5 -format text
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/logger"
	"github.com/evdnx/gotsopt/optimizer"
	"github.com/evdnx/gotsopt/report"
	"github.com/evdnx/gotsopt/store"
	"github.com/evdnx/gotsopt/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "gotsopt:", err)
		os.Exit(1)
	}
}

type options struct {
	envFile     string
	symbol      string
	timeframe   string
	start, end  string
	format      string
	out         string
	saveBars    string
	metricsAddr string
	logLevel    string
	cfg         config.BacktestConfig
	ranges      rangeFlags
	app         *config.AppConfig
}

func parseFlags(args []string) (*options, error) {
	o := &options{cfg: config.DefaultBacktestConfig()}
	var mode string
	weights := o.cfg.Weights

	fs := flag.NewFlagSet("gotsopt", flag.ContinueOnError)
	fs.StringVar(&o.envFile, "env", ".env", "dotenv file with GOTSOPT_* settings")
	fs.StringVar(&o.symbol, "symbol", "EURUSD", "symbol to load")
	fs.StringVar(&o.timeframe, "timeframe", o.cfg.Timeframe, "bar timeframe, e.g. 1h")
	fs.StringVar(&o.start, "start", "", "first bar time (RFC3339 or YYYY-MM-DD), inclusive")
	fs.StringVar(&o.end, "end", "", "last bar time, exclusive")
	fs.Float64Var(&o.cfg.StartingBalance, "balance", o.cfg.StartingBalance, "starting balance (env GOTSOPT_BALANCE)")
	fs.StringVar(&mode, "mode", string(o.cfg.Mode), "net_profit, profit_factor, sharpe_like or custom")
	fs.IntVar(&o.cfg.MinTrades, "min-trades", o.cfg.MinTrades, "minimum trades for a valid result")
	fs.Float64Var(&o.cfg.MinWinRate, "min-win-rate", o.cfg.MinWinRate, "minimum win rate, fraction in [0,1]")
	fs.IntVar(&o.cfg.TopN, "top", o.cfg.TopN, "ranked results to keep")
	fs.IntVar(&o.cfg.Workers, "workers", 0, "parallel backtests, 0 = GOMAXPROCS (env GOTSOPT_WORKERS)")
	fs.IntVar(&o.cfg.ProgressEvery, "progress-every", o.cfg.ProgressEvery, "log progress every N combinations")
	fs.BoolVar(&o.cfg.MFIConfirm, "mfi", false, "require money-flow confirmation on entries")
	fs.Float64Var(&weights.NetProfit, "w-net-profit", weights.NetProfit, "custom score weight of return %")
	fs.Float64Var(&weights.ProfitFactor, "w-profit-factor", weights.ProfitFactor, "custom score weight of profit factor")
	fs.Float64Var(&weights.WinRate, "w-win-rate", weights.WinRate, "custom score weight of win rate")
	fs.Float64Var(&weights.Drawdown, "w-drawdown", weights.Drawdown, "custom score weight of drawdown headroom")
	fs.Float64Var(&o.cfg.Properties.PipSize, "pip-size", o.cfg.Properties.PipSize, "price units per pip")
	fs.Float64Var(&o.cfg.Properties.TickSize, "tick-size", o.cfg.Properties.TickSize, "price units per tick")
	fs.Float64Var(&o.cfg.Properties.TickValue, "tick-value", o.cfg.Properties.TickValue, "account money per tick per lot")
	fs.Float64Var(&o.cfg.Properties.MinLot, "min-lot", o.cfg.Properties.MinLot, "smallest tradable volume")
	fs.Float64Var(&o.cfg.Properties.MaxLot, "max-lot", o.cfg.Properties.MaxLot, "largest tradable volume")
	fs.Float64Var(&o.cfg.Properties.LotStep, "lot-step", o.cfg.Properties.LotStep, "volume increment")
	fs.Var(&o.ranges, "range", "parameter range name=min:max:step (repeatable)")
	fs.StringVar(&o.format, "format", "text", "report format: text, csv or json")
	fs.StringVar(&o.out, "out", "", "write the report to this file instead of stdout")
	fs.StringVar(&o.saveBars, "save-bars", "", "also write the loaded bars to this CSV file")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// The dotenv file fills only what the command line left unset.
	app, err := config.LoadEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	o.app = app
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["balance"] {
		o.cfg.StartingBalance = config.EnvFloat("GOTSOPT_BALANCE", o.cfg.StartingBalance)
	}
	if !set["workers"] {
		o.cfg.Workers = config.EnvInt("GOTSOPT_WORKERS", o.cfg.Workers)
	}
	if o.logLevel != "" {
		app.LogLevel = o.logLevel
	}
	if o.metricsAddr != "" {
		app.MetricsAddr = o.metricsAddr
	}

	m, err := config.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	o.cfg.Mode = m
	o.cfg.Weights = weights
	o.cfg.Symbol = o.symbol
	o.cfg.Timeframe = o.timeframe
	if o.cfg.Start, err = parseTime(o.start); err != nil {
		return nil, err
	}
	if o.cfg.End, err = parseTime(o.end); err != nil {
		return nil, err
	}
	if !o.cfg.End.IsZero() && !o.cfg.End.After(o.cfg.Start) {
		return nil, errors.New("-end must be after -start")
	}
	if len(o.ranges) == 0 {
		return nil, errors.New("at least one -range is required")
	}
	if _, err := report.ParseFormat(o.format); err != nil {
		return nil, err
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	app := opts.app

	log, err := logger.NewZapLogger(app.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.MetricsAddr != "" {
		srv := serveMetrics(app.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	bars, err := loadBars(ctx, app, opts, log)
	if err != nil {
		return err
	}

	space, err := optimizer.NewSpace(config.DefaultParameterSet(), opts.ranges...)
	if err != nil {
		return err
	}
	opt, err := optimizer.New(opts.cfg, space, log)
	if err != nil {
		return err
	}

	progress := make(chan optimizer.Progress, 16)
	opt.Progress = progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			log.Info("search_progress",
				logger.Int("done", p.Done),
				logger.Int("total", p.Total),
				logger.Int("valid", p.Valid),
				logger.Float64("best_score", p.BestScore),
			)
		}
	}()

	sum, runErr := opt.Run(ctx, bars)
	close(progress)
	<-done

	if sum == nil {
		return runErr
	}
	if err := writeReport(sum, opts, stdout); err != nil {
		return err
	}
	if app.ResultsDSN != "" {
		if err := persist(context.WithoutCancel(ctx), app.ResultsDSN, sum, log); err != nil {
			return err
		}
	}
	// A canceled or empty search still prints what it has.
	return runErr
}

// openStore is replaced in tests.
var openStore = store.Open

func loadBars(ctx context.Context, app *config.AppConfig, opts *options, log logger.Logger) ([]types.Bar, error) {
	src, err := openStore(ctx, app, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", app.StoreDriver, err)
	}
	defer src.Close()

	bars, err := src.GetBars(ctx, opts.cfg.Symbol, opts.cfg.Timeframe, opts.cfg.Start, opts.cfg.End)
	if err != nil {
		return nil, err
	}
	log.Info("bars_loaded",
		logger.String("store", app.StoreDriver),
		logger.String("symbol", opts.cfg.Symbol),
		logger.String("timeframe", opts.cfg.Timeframe),
		logger.Int("bars", len(bars)),
	)

	if opts.saveBars != "" {
		f, err := os.Create(opts.saveBars)
		if err != nil {
			return nil, err
		}
		if err := store.WriteCSV(f, bars); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	return bars, nil
}

func writeReport(sum *optimizer.Summary, opts *options, stdout io.Writer) error {
	format, _ := report.ParseFormat(opts.format)
	if opts.out == "" {
		return report.Write(stdout, format, sum)
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	if err := report.Write(f, format, sum); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func persist(ctx context.Context, dsn string, sum *optimizer.Summary, log logger.Logger) error {
	repo, err := store.OpenResultRepository(dsn)
	if err != nil {
		return fmt.Errorf("results db: %w", err)
	}
	defer repo.Close()
	if err := repo.Save(ctx, sum); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	log.Info("results_saved", logger.String("run_id", sum.RunID), logger.Int("rows", len(sum.Top)))
	return nil
}

func serveMetrics(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics_server_failed", logger.Err(err))
		}
	}()
	log.Info("metrics_server_started", logger.String("addr", addr))
	return srv
}
