package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/evdnx/gotsopt/logger"
	"github.com/evdnx/gotsopt/types"
	"golang.org/x/time/rate"
)

const binancePageLimit = 1500

// klineFetcher is one paged klines request; start and end are Unix millis.
type klineFetcher func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error)

// BinanceStore backfills bars from the Binance futures klines endpoint.
// Requests are rate limited and retried with exponential backoff.
type BinanceStore struct {
	log        logger.Logger
	limiter    *rate.Limiter
	fetch      klineFetcher
	maxRetries int
	backoff    time.Duration
	pageLimit  int
}

func NewBinanceStore(apiKey, secretKey string, log logger.Logger) *BinanceStore {
	if log == nil {
		log = logger.NewNop()
	}
	client := futures.NewClient(apiKey, secretKey)
	client.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	fetch := func(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]*futures.Kline, error) {
		return client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(limit).
			Do(ctx)
	}
	return &BinanceStore{
		log:        log,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		fetch:      fetch,
		maxRetries: 3,
		backoff:    100 * time.Millisecond,
		pageLimit:  binancePageLimit,
	}
}

// GetBars pages through [start, end). A zero end means now; start is
// required because the endpoint otherwise returns only the latest page.
func (b *BinanceStore) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]types.Bar, error) {
	if start.IsZero() {
		return nil, errors.New("binance store: start time is required")
	}
	if end.IsZero() {
		end = time.Now()
	}
	endMs := end.UnixMilli()

	var bars []types.Bar
	for cur := start.UnixMilli(); cur < endMs; {
		page, err := b.klines(ctx, symbol, timeframe, cur, endMs-1)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, k := range page {
			if k.OpenTime >= endMs {
				continue
			}
			bar, err := klineToBar(k)
			if err != nil {
				return nil, err
			}
			bars = append(bars, bar)
		}
		b.log.Debug("binance_page_fetched",
			logger.String("symbol", symbol),
			logger.String("interval", timeframe),
			logger.Int("klines", len(page)),
		)
		cur = page[len(page)-1].OpenTime + 1
		if len(page) < b.pageLimit {
			break
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, symbol, timeframe)
	}
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func (b *BinanceStore) Close() error { return nil }

// klines performs one paged request with limiter and retries.
func (b *BinanceStore) klines(ctx context.Context, symbol, interval string, start, end int64) ([]*futures.Kline, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := b.fetch(ctx, symbol, interval, start, end, b.pageLimit)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if attempt == b.maxRetries {
			break
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * b.backoff
		b.log.Warn("binance_klines_retry",
			logger.String("symbol", symbol),
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
			logger.Err(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, lastErr)
}

func klineToBar(k *futures.Kline) (types.Bar, error) {
	var vals [5]float64
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("kline %d: %w", k.OpenTime, err)
		}
		vals[i] = v
	}
	return types.Bar{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
