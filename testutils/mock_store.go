package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/evdnx/gotsopt/types"
)

// ErrMockNotFound is returned by MockStore for an unknown symbol/timeframe.
var ErrMockNotFound = errors.New("mock store: no bars")

// MockStore is an in-memory bar store keyed by symbol and timeframe.
type MockStore struct {
	mu     sync.Mutex
	series map[string][]types.Bar
	calls  int
	closed bool
}

func NewMockStore() *MockStore {
	return &MockStore{series: make(map[string][]types.Bar)}
}

// Put registers bars for symbol/timeframe.
func (m *MockStore) Put(symbol, timeframe string, bars []types.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol+"|"+timeframe] = bars
}

func (m *MockStore) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	bars, ok := m.series[symbol+"|"+timeframe]
	if !ok {
		return nil, ErrMockNotFound
	}
	var out []types.Bar
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Calls returns how many GetBars requests were served.
func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
