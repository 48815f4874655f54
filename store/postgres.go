package store

import (
	"context"
	"fmt"
	"time"

	"github.com/evdnx/gotsopt/types"
	"github.com/jackc/pgx/v5/pgxpool"
)

// barsQuery reads the binance.kline hypertable keyed through
// binance.symbol_intervals.
const barsQuery = `
	SELECT kd.open_time, kd.open, kd.high, kd.low, kd.close, kd.volume
	FROM binance.kline AS kd
	JOIN binance.symbol_intervals AS si ON kd.symbol_interval_id = si.symbol_interval_id
	WHERE si.symbol = $1
	  AND si.interval = $2
	  AND ($3::timestamptz IS NULL OR kd.open_time >= $3)
	  AND ($4::timestamptz IS NULL OR kd.open_time < $4)
	ORDER BY kd.open_time`

// PostgresStore reads bars from a Postgres/TimescaleDB kline schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]types.Bar, error) {
	rows, err := p.pool.Query(ctx, barsQuery, symbol, timeframe, nullTime(start), nullTime(end))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var b types.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = b.Time.UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, symbol, timeframe)
	}
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// nullTime maps an open bound to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
