// Package optimizer runs a grid search over a parameter Space: one backtest
// per combination, spread across a worker pool, filtered by minimum sample
// constraints and ranked by the configured score.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/logger"
	"github.com/evdnx/gotsopt/metrics"
	"github.com/evdnx/gotsopt/simulator"
	"github.com/evdnx/gotsopt/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNoValidCombinations is returned, together with a summary, when every
// combination was filtered out.
var ErrNoValidCombinations = errors.New("no valid parameter combinations")

// InvalidReason names the filter that rejected a combination.
type InvalidReason string

const (
	ReasonMinTrades         InvalidReason = "min_trades"
	ReasonMinWinRate        InvalidReason = "min_win_rate"
	ReasonInsufficientData  InvalidReason = "insufficient_data"
	ReasonInvalidParameters InvalidReason = "invalid_parameters"
)

// reasonOrder breaks ties when picking the dominant reason.
var reasonOrder = []InvalidReason{
	ReasonMinTrades, ReasonMinWinRate, ReasonInsufficientData, ReasonInvalidParameters,
}

// Progress is a snapshot sent while a search runs.
type Progress struct {
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Valid     int     `json:"valid"`
	Invalid   int     `json:"invalid"`
	BestScore float64 `json:"best_score"`
}

// Summary is the outcome of a search. Top is ranked best first; Best is
// Top[0] or nil.
type Summary struct {
	RunID          string                  `json:"run_id"`
	Symbol         string                  `json:"symbol"`
	Mode           config.OptimizationMode `json:"mode"`
	Total          int                     `json:"total"`
	Evaluated      int                     `json:"evaluated"`
	ValidResults   int                     `json:"valid_results"`
	InvalidResults int                     `json:"invalid_results"`
	Invalid        map[InvalidReason]int   `json:"invalid"`
	Best           *Result                 `json:"best,omitempty"`
	Top            []Result                `json:"top"`
	Diagnostic     string                  `json:"diagnostic,omitempty"`
	Started        time.Time               `json:"started"`
	Duration       time.Duration           `json:"duration"`
	Canceled       bool                    `json:"canceled"`
}

// Optimizer searches a Space with the settings of one BacktestConfig.
type Optimizer struct {
	Config config.BacktestConfig
	Space  *Space
	Log    logger.Logger

	// Progress, when set, receives a snapshot every Config.ProgressEvery
	// combinations. Sends never block: a slow reader misses snapshots.
	Progress chan<- Progress

	sim *simulator.Simulator
}

// New validates cfg and prepares an optimizer over space.
func New(cfg config.BacktestConfig, space *Space, log logger.Logger) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	if space == nil {
		return nil, errors.New("nil parameter space")
	}
	if log == nil {
		log = logger.NewNop()
	}
	mode, _ := config.ParseMode(string(cfg.Mode))
	cfg.Mode = mode
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = 100
	}
	return &Optimizer{
		Config: cfg,
		Space:  space,
		Log:    log,
		sim:    simulator.New(cfg, log),
	}, nil
}

// partial is one worker's private view of the search.
type partial struct {
	top     *topN
	valid   int
	invalid int
	reasons map[InvalidReason]int
}

// Run evaluates every combination of the space over bars. bars are shared
// read-only by all workers.
//
// On cancellation the summary of what was evaluated is returned together with
// the context error. When nothing passes the filters the summary carries a
// diagnostic and the error wraps ErrNoValidCombinations.
func (o *Optimizer) Run(ctx context.Context, bars []types.Bar) (*Summary, error) {
	cfg := o.Config
	total := o.Space.Size()
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(1, min(workers, total))

	sum := &Summary{
		RunID:   uuid.NewString(),
		Symbol:  cfg.Symbol,
		Mode:    cfg.Mode,
		Total:   total,
		Invalid: make(map[InvalidReason]int),
		Started: time.Now(),
	}
	o.Log.Info("optimizer_started",
		logger.String("run_id", sum.RunID),
		logger.String("symbol", cfg.Symbol),
		logger.String("mode", string(cfg.Mode)),
		logger.Int("combinations", total),
		logger.Int("workers", workers),
		logger.Int("bars", len(bars)),
	)

	prog := &tracker{total: total}
	prog.best.Store(math.Float64bits(math.Inf(-1)))

	jobs := make(chan int)
	parts := make([]*partial, workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range total {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := range workers {
		part := &partial{top: newTopN(cfg.TopN), reasons: make(map[InvalidReason]int)}
		parts[w] = part
		g.Go(func() error {
			for idx := range jobs {
				if gctx.Err() != nil {
					return nil
				}
				o.evaluate(idx, bars, part, prog)
			}
			return nil
		})
	}
	_ = g.Wait()

	tops := make([][]Result, 0, len(parts))
	for _, p := range parts {
		tops = append(tops, p.top.items)
		sum.ValidResults += p.valid
		sum.InvalidResults += p.invalid
		for r, n := range p.reasons {
			sum.Invalid[r] += n
		}
	}
	sum.Top = mergeTop(cfg.TopN, tops...)
	if len(sum.Top) > 0 {
		best := sum.Top[0]
		sum.Best = &best
		metrics.BestScore.WithLabelValues(cfg.Symbol, string(cfg.Mode)).Set(best.Score)
	}
	sum.Evaluated = sum.ValidResults + sum.InvalidResults
	sum.Duration = time.Since(sum.Started)
	o.sendProgress(prog.snapshot())

	if err := ctx.Err(); err != nil && sum.Evaluated < total {
		sum.Canceled = true
		o.Log.Warn("optimizer_canceled",
			logger.String("run_id", sum.RunID),
			logger.Int("evaluated", sum.Evaluated),
			logger.Int("total", total),
			logger.Err(err),
		)
		return sum, err
	}

	if sum.ValidResults == 0 {
		sum.Diagnostic = o.diagnose(sum)
		o.Log.Warn("optimizer_no_valid_combinations",
			logger.String("run_id", sum.RunID),
			logger.String("diagnostic", sum.Diagnostic),
		)
		return sum, fmt.Errorf("%w: %s", ErrNoValidCombinations, sum.Diagnostic)
	}

	o.Log.Info("optimizer_finished",
		logger.String("run_id", sum.RunID),
		logger.Int("valid", sum.ValidResults),
		logger.Int("invalid", sum.InvalidResults),
		logger.Float64("best_score", sum.Best.Score),
		logger.Duration("elapsed", sum.Duration),
	)
	return sum, nil
}

// evaluate runs one combination and files it into the worker's partial.
func (o *Optimizer) evaluate(idx int, bars []types.Bar, part *partial, t *tracker) {
	cfg := o.Config
	params := o.Space.At(idx)

	res, err := o.sim.Run(bars, params)
	var reason InvalidReason
	switch {
	case errors.Is(err, simulator.ErrInsufficientData):
		reason = ReasonInsufficientData
	case err != nil:
		reason = ReasonInvalidParameters
	case res.Stats.TotalTrades < cfg.MinTrades:
		reason = ReasonMinTrades
	case res.Stats.WinRate < cfg.MinWinRate:
		reason = ReasonMinWinRate
	}

	if reason != "" {
		part.invalid++
		part.reasons[reason]++
		metrics.BacktestsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		o.Log.Debug("combination_rejected",
			logger.Int("index", idx),
			logger.String("reason", string(reason)),
			logger.String("params", params.String()),
		)
		o.tick(t.record(false, 0))
		return
	}

	score := Score(cfg.Mode, res.Stats, cfg.Weights)
	part.valid++
	part.top.add(Result{Index: idx, Parameters: params, Stats: res.Stats, Score: score})
	metrics.BacktestsTotal.WithLabelValues(metrics.OutcomeValid).Inc()
	o.tick(t.record(true, score))
}

// tick emits progress on the configured cadence.
func (o *Optimizer) tick(p Progress) {
	if p.Done%o.Config.ProgressEvery != 0 && p.Done != p.Total {
		return
	}
	metrics.ProgressRatio.WithLabelValues(o.Config.Symbol).Set(float64(p.Done) / float64(max(p.Total, 1)))
	o.Log.Debug("optimizer_progress",
		logger.Int("done", p.Done),
		logger.Int("total", p.Total),
		logger.Int("valid", p.Valid),
		logger.Float64("best_score", p.BestScore),
	)
	o.sendProgress(p)
}

func (o *Optimizer) sendProgress(p Progress) {
	if o.Progress == nil {
		return
	}
	select {
	case o.Progress <- p:
	default:
	}
}

// diagnose names the filter that rejected the most combinations.
func (o *Optimizer) diagnose(sum *Summary) string {
	if sum.Total == 0 {
		return "parameter space is empty"
	}
	var top InvalidReason
	for _, r := range reasonOrder {
		if sum.Invalid[r] > sum.Invalid[top] {
			top = r
		}
	}
	if top == "" {
		return "no combination was evaluated"
	}
	n := sum.Invalid[top]
	var detail string
	switch top {
	case ReasonMinTrades:
		detail = fmt.Sprintf("fewer than %d trades", o.Config.MinTrades)
	case ReasonMinWinRate:
		detail = fmt.Sprintf("win rate below %.2f", o.Config.MinWinRate)
	case ReasonInsufficientData:
		detail = "bar series shorter than the warm-up window"
	case ReasonInvalidParameters:
		detail = "parameter set failed validation"
	}
	return fmt.Sprintf("%s filter eliminated %d of %d combinations (%s)", top, n, sum.Evaluated, detail)
}

// tracker holds the shared counters behind progress snapshots.
type tracker struct {
	total   int
	done    atomic.Int64
	valid   atomic.Int64
	invalid atomic.Int64
	best    atomic.Uint64 // float64 bits
}

func (t *tracker) record(valid bool, score float64) Progress {
	if valid {
		t.valid.Add(1)
		for {
			old := t.best.Load()
			if score <= math.Float64frombits(old) || t.best.CompareAndSwap(old, math.Float64bits(score)) {
				break
			}
		}
	} else {
		t.invalid.Add(1)
	}
	t.done.Add(1)
	return t.snapshot()
}

func (t *tracker) snapshot() Progress {
	p := Progress{
		Done:    int(t.done.Load()),
		Total:   t.total,
		Valid:   int(t.valid.Load()),
		Invalid: int(t.invalid.Load()),
	}
	if best := math.Float64frombits(t.best.Load()); !math.IsInf(best, -1) {
		p.BestScore = best
	}
	return p
}
