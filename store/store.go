// Package store loads historical bar series for the optimizer and persists
// search summaries.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evdnx/gotsopt/config"
	"github.com/evdnx/gotsopt/logger"
	"github.com/evdnx/gotsopt/types"
)

var (
	// ErrNotFound means the store holds no bars for the request.
	ErrNotFound = errors.New("no bars found")
	// ErrUnorderedSeries means the bar times are not strictly increasing.
	ErrUnorderedSeries = errors.New("bar series is not strictly increasing in time")
	// ErrMalformedBar flags a bar whose high is below its low.
	ErrMalformedBar = errors.New("malformed bar")
)

// BarStore supplies ordered OHLCV series. start and end bound the open time
// as [start, end); a zero bound is open.
type BarStore interface {
	GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]types.Bar, error)
	Close() error
}

// ValidateSeries checks the ordering and shape the simulator relies on.
func ValidateSeries(bars []types.Bar) error {
	for i, b := range bars {
		if b.High < b.Low {
			return fmt.Errorf("%w at index %d: high %g < low %g", ErrMalformedBar, i, b.High, b.Low)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: index %d (%s) after %s", ErrUnorderedSeries, i,
				b.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// inRange reports whether t falls in [start, end) with zero bounds open.
func inRange(t, start, end time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

// Open builds the store selected by app.StoreDriver.
func Open(ctx context.Context, app *config.AppConfig, log logger.Logger) (BarStore, error) {
	switch app.StoreDriver {
	case config.DriverCSV:
		return NewCSVStore(app.StoreDSN), nil
	case config.DriverPostgres:
		return NewPostgresStore(ctx, app.StoreDSN)
	case config.DriverClickHouse:
		return NewClickHouseStore(ctx, app.StoreDSN)
	case config.DriverBinance:
		return NewBinanceStore(app.Binance.APIKey, app.Binance.SecretKey, log), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", app.StoreDriver)
}
