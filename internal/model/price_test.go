package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warsaw(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)
	return loc
}

func TestNewPricePoint_RejectsUnalignedTimestamp(t *testing.T) {
	loc := warsaw(t)

	_, err := NewPricePoint(time.Date(2026, 10, 18, 13, 30, 0, 0, loc), decimal.NewFromFloat(0.5))
	assert.Error(t, err)

	p, err := NewPricePoint(time.Date(2026, 10, 18, 13, 0, 0, 0, loc), decimal.NewFromFloat(-0.05))
	require.NoError(t, err)
	assert.Equal(t, 13, p.Hour())
	assert.True(t, p.Price.IsNegative())
}

func TestPricePoint_EqualIgnoresRepresentation(t *testing.T) {
	loc := warsaw(t)
	ts := time.Date(2026, 10, 18, 5, 0, 0, 0, loc)

	a := PricePoint{Time: ts, Price: decimal.RequireFromString("0.10")}
	b := PricePoint{Time: ts.UTC(), Price: decimal.RequireFromString("0.1")}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(PricePoint{Time: ts, Price: decimal.RequireFromString("0.11")}))
}

func TestFloorHour(t *testing.T) {
	loc := warsaw(t)

	got := FloorHour(time.Date(2026, 10, 18, 14, 59, 59, 999, loc))
	assert.True(t, got.Equal(time.Date(2026, 10, 18, 14, 0, 0, 0, loc)))

	// 2026-10-25 02:30 CET happens after the clocks went back; the floor must
	// stay in the same (second) 02:00 hour.
	secondPass := time.Date(2026, 10, 25, 0, 30, 0, 0, time.UTC).Add(time.Hour).In(loc)
	require.Equal(t, 2, secondPass.Hour())
	assert.True(t, FloorHour(secondPass).Equal(time.Date(2026, 10, 25, 1, 0, 0, 0, time.UTC)))
}

func TestNewDaySeries_NormalisesPoints(t *testing.T) {
	loc := warsaw(t)
	date := Date("2026-10-18")
	at := func(h int) time.Time { return time.Date(2026, 10, 18, h, 0, 0, 0, loc) }

	points := []PricePoint{
		{Time: at(3), Price: decimal.NewFromInt(3)},
		{Time: at(1), Price: decimal.NewFromInt(1)},
		{Time: at(1), Price: decimal.NewFromInt(11)},                                // duplicate hour, last wins
		{Time: at(2).Add(15 * time.Minute), Price: decimal.NewFromInt(2)},             // not aligned
		{Time: time.Date(2026, 10, 19, 0, 0, 0, 0, loc), Price: decimal.NewFromInt(9)}, // next day
		{Time: at(0).UTC(), Price: decimal.NewFromInt(0)},                             // converted into loc
	}

	series, discarded := NewDaySeries(date, loc, points)
	assert.Equal(t, 3, discarded)
	require.Equal(t, 3, series.Len())
	assert.Equal(t, 0, series.Points[0].Hour())
	assert.Equal(t, 1, series.Points[1].Hour())
	assert.True(t, series.Points[1].Price.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, 3, series.Points[2].Hour())
	assert.NoError(t, series.Validate())

	p, ok := series.At(at(3))
	require.True(t, ok)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(3)))
	_, ok = series.At(at(4))
	assert.False(t, ok)
}

func TestDaySeries_ValidateRejectsDisorder(t *testing.T) {
	loc := warsaw(t)
	at := func(h int) time.Time { return time.Date(2026, 10, 18, h, 0, 0, 0, loc) }

	s := DaySeries{Date: "2026-10-18", Points: []PricePoint{
		{Time: at(2), Price: decimal.NewFromInt(1)},
		{Time: at(1), Price: decimal.NewFromInt(1)},
	}}
	assert.Error(t, s.Validate())

	s = DaySeries{Date: "2026-10-19", Points: []PricePoint{{Time: at(2), Price: decimal.NewFromInt(1)}}}
	assert.Error(t, s.Validate())

	assert.NoError(t, EmptySeries("2026-10-19").Validate())
	assert.Error(t, DaySeries{}.Validate())
}

func TestDate_Next(t *testing.T) {
	assert.Equal(t, Date("2026-11-01"), Date("2026-10-31").Next())
	assert.Equal(t, Date("2027-01-01"), Date("2026-12-31").Next())
}

func TestCacheRecord_EqualAfterJSONRoundTrip(t *testing.T) {
	loc := warsaw(t)
	series, _ := NewDaySeries("2026-10-18", loc, []PricePoint{
		{Time: time.Date(2026, 10, 18, 0, 0, 0, 0, loc), Price: decimal.RequireFromString("0.50")},
		{Time: time.Date(2026, 10, 18, 1, 0, 0, 0, loc), Price: decimal.RequireFromString("-0.10")},
	})
	rec := &CacheRecord{
		Version:     CacheVersion,
		RetrievedAt: time.Date(2026, 10, 18, 10, 5, 0, 0, loc),
		Buy:         CachedDirection{Today: series, Tomorrow: EmptySeries("2026-10-19")},
		Sell:        CachedDirection{Today: series, Tomorrow: EmptySeries("2026-10-19")},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded CacheRecord
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, rec.Equal(&decoded))
	assert.NoError(t, decoded.Validate())

	decoded.Sell.Today.Points[0].Price = decimal.NewFromInt(7)
	assert.False(t, rec.Equal(&decoded))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("sell")
	require.NoError(t, err)
	assert.Equal(t, DirectionSell, d)

	_, err = ParseDirection("hold")
	assert.Error(t, err)
}
