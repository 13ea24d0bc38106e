package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is a refresh cycle state or outcome.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateSuccess  State = "success"
	StateDegraded State = "degraded"
	StateFailed   State = "failed"
)

// Source tells where a published series came from.
type Source string

const (
	SourceFresh    Source = "fresh"
	SourceCache    Source = "cache"
	SourcePrevious Source = "previous"
	SourceNone     Source = "none"
)

// HourEntry is one element of the upcoming cheap/expensive hour lists.
type HourEntry struct {
	Time  time.Time       `json:"timestamp"`
	Hour  int             `json:"hour"`
	Price decimal.Decimal `json:"price"`
	Date  Date            `json:"date"`
}

// DirectionSnapshot is the published state of one direction.
type DirectionSnapshot struct {
	Direction      Direction      `json:"direction"`
	PricesToday    DaySeries      `json:"prices_today"`
	PricesTomorrow DaySeries      `json:"prices_tomorrow"`
	Today          Classification `json:"today"`
	Tomorrow       Classification `json:"tomorrow"`
	CurrentPrice   *PricePoint    `json:"current_price,omitempty"`
	NextHourPrice  *PricePoint    `json:"next_hour_price,omitempty"`
	IsCheap        bool           `json:"is_cheap"`
	IsExpensive    bool           `json:"is_expensive"`
	CheapHours     []HourEntry    `json:"cheap_hours"`
	ExpensiveHours []HourEntry    `json:"expensive_hours"`
	TodaySource    Source         `json:"today_source"`
	TomorrowSource Source         `json:"tomorrow_source"`
	Stale          bool           `json:"stale"`
}

// PriceSnapshot is the unit of published state.
type PriceSnapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	RetrievedAt time.Time         `json:"retrieved_at"`
	Outcome     State             `json:"outcome"`
	Stale       bool              `json:"stale"`
	Buy         DirectionSnapshot `json:"buy"`
	Sell        DirectionSnapshot `json:"sell"`
}

// Direction returns the snapshot for d.
func (s *PriceSnapshot) Direction(d Direction) *DirectionSnapshot {
	if d == DirectionSell {
		return &s.Sell
	}
	return &s.Buy
}

// Equal compares the published prices and flags. GeneratedAt and
// RetrievedAt are per-cycle metadata and are ignored.
func (s *PriceSnapshot) Equal(o *PriceSnapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Outcome == o.Outcome &&
		s.Stale == o.Stale &&
		s.Buy.Equal(&o.Buy) &&
		s.Sell.Equal(&o.Sell)
}

func (d *DirectionSnapshot) Equal(o *DirectionSnapshot) bool {
	return d.Direction == o.Direction &&
		d.PricesToday.Equal(o.PricesToday) &&
		d.PricesTomorrow.Equal(o.PricesTomorrow) &&
		d.Today.Equal(o.Today) &&
		d.Tomorrow.Equal(o.Tomorrow) &&
		pointPtrEqual(d.CurrentPrice, o.CurrentPrice) &&
		pointPtrEqual(d.NextHourPrice, o.NextHourPrice) &&
		d.IsCheap == o.IsCheap &&
		d.IsExpensive == o.IsExpensive &&
		hoursEqual(d.CheapHours, o.CheapHours) &&
		hoursEqual(d.ExpensiveHours, o.ExpensiveHours) &&
		d.TodaySource == o.TodaySource &&
		d.TomorrowSource == o.TomorrowSource &&
		d.Stale == o.Stale
}

func pointPtrEqual(a, b *PricePoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func hoursEqual(a, b []HourEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Time.Equal(b[i].Time) || a[i].Hour != b[i].Hour || !a[i].Price.Equal(b[i].Price) || a[i].Date != b[i].Date {
			return false
		}
	}
	return true
}
