package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"PstrykSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Series and errors are keyed by direction and date; a missing entry yields
// a generated day (or an empty one when Empty is set).
type MockFetcher struct {
	Location *time.Location
	Empty    bool
	Delay    time.Duration

	mu     sync.Mutex
	series map[string]model.DaySeries
	errs   map[string]error
	calls  atomic.Int64
}

// NewMockFetcher creates a mock that generates days in loc.
func NewMockFetcher(loc *time.Location) *MockFetcher {
	return &MockFetcher{
		Location: loc,
		series:   make(map[string]model.DaySeries),
		errs:     make(map[string]error),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func mockKey(dir model.Direction, date model.Date) string {
	return string(dir) + "@" + string(date)
}

// SetSeries fixes the series returned for dir on date.
func (m *MockFetcher) SetSeries(dir model.Direction, date model.Date, s model.DaySeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[mockKey(dir, date)] = s
}

// SetError makes every fetch of dir on date fail with err. A nil err clears it.
func (m *MockFetcher) SetError(dir model.Direction, date model.Date, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, mockKey(dir, date))
		return
	}
	m.errs[mockKey(dir, date)] = err
}

// Calls returns the number of FetchDay invocations.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func (m *MockFetcher) FetchDay(ctx context.Context, dir model.Direction, date model.Date) (model.DaySeries, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return model.DaySeries{}, &NetworkError{Endpoint: "mock", Timeout: true, Err: ctx.Err()}
		case <-time.After(m.Delay):
		}
	}

	m.mu.Lock()
	err, failing := m.errs[mockKey(dir, date)]
	s, fixed := m.series[mockKey(dir, date)]
	m.mu.Unlock()

	if failing {
		return model.DaySeries{}, err
	}
	if fixed {
		return s, nil
	}
	if m.Empty {
		return model.EmptySeries(date), nil
	}
	return GenerateDay(date, m.Location, dir)
}

// GenerateDay builds a 24-hour day with a morning and evening peak.
func GenerateDay(date model.Date, loc *time.Location, dir model.Direction) (model.DaySeries, error) {
	start, err := date.Start(loc)
	if err != nil {
		return model.DaySeries{}, fmt.Errorf("generate day: %w", err)
	}
	base := decimal.RequireFromString("0.45")
	if dir == model.DirectionSell {
		base = decimal.RequireFromString("0.30")
	}
	points := make([]model.PricePoint, 0, 24)
	for t := start; model.DateOf(t) == date; t = t.Add(time.Hour) {
		h := t.Hour()
		var bump int64
		switch {
		case h >= 7 && h <= 9:
			bump = 25
		case h >= 17 && h <= 20:
			bump = 40
		case h >= 1 && h <= 4:
			bump = -20
		default:
			bump = int64(h % 5)
		}
		points = append(points, model.PricePoint{Time: t, Price: base.Add(decimal.New(bump, -2))})
	}
	s, _ := model.NewDaySeries(date, loc, points)
	return s, nil
}
