package model

import (
	"fmt"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day (YYYY-MM-DD) in the configured time zone.
type Date string

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date(s), nil
}

// Start returns local midnight of the day in loc.
func (d Date) Start(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", d, err)
	}
	return t, nil
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return ""
	}
	return Date(t.AddDate(0, 0, 1).Format(dateLayout))
}

// DaySeries is the ordered set of hourly prices for one calendar day.
// Points are strictly increasing in time and all fall on Date.
type DaySeries struct {
	Date   Date         `json:"date"`
	Points []PricePoint `json:"points"`
}

// NewDaySeries converts points to loc, drops those not on date or not hour
// aligned, sorts them and keeps the last value seen for a duplicated hour.
// It returns the number of points discarded.
func NewDaySeries(date Date, loc *time.Location, points []PricePoint) (DaySeries, int) {
	byTime := make(map[int64]PricePoint, len(points))
	discarded := 0
	for _, p := range points {
		local := PricePoint{Time: p.Time.In(loc), Price: p.Price}
		if DateOf(local.Time) != date || !IsHourAligned(local.Time) {
			discarded++
			continue
		}
		key := local.Time.Unix()
		if _, dup := byTime[key]; dup {
			discarded++
		}
		byTime[key] = local
	}

	out := make([]PricePoint, 0, len(byTime))
	for _, p := range byTime {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	return DaySeries{Date: date, Points: out}, discarded
}

// EmptySeries returns a series for date with no points.
func EmptySeries(date Date) DaySeries {
	return DaySeries{Date: date, Points: []PricePoint{}}
}

func (s DaySeries) Len() int { return len(s.Points) }

func (s DaySeries) IsEmpty() bool { return len(s.Points) == 0 }

// At returns the point starting at instant t.
func (s DaySeries) At(t time.Time) (PricePoint, bool) {
	for _, p := range s.Points {
		if p.Time.Equal(t) {
			return p, true
		}
	}
	return PricePoint{}, false
}

// In returns a copy with every timestamp converted to loc.
func (s DaySeries) In(loc *time.Location) DaySeries {
	out := DaySeries{Date: s.Date, Points: make([]PricePoint, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i] = PricePoint{Time: p.Time.In(loc), Price: p.Price}
	}
	return out
}

// Validate checks ordering and that every point belongs to Date. Dates are
// compared in each point's own location.
func (s DaySeries) Validate() error {
	if _, err := ParseDate(string(s.Date)); err != nil {
		return err
	}
	for i, p := range s.Points {
		if !IsHourAligned(p.Time) {
			return fmt.Errorf("point %d at %s is not hour aligned", i, p.Time.Format(time.RFC3339))
		}
		if DateOf(p.Time) != s.Date {
			return fmt.Errorf("point %d at %s is outside %s", i, p.Time.Format(time.RFC3339), s.Date)
		}
		if i > 0 && !s.Points[i-1].Before(p) {
			return fmt.Errorf("point %d at %s is not after its predecessor", i, p.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Equal compares dates and points by instant and numeric value.
func (s DaySeries) Equal(o DaySeries) bool {
	if s.Date != o.Date || len(s.Points) != len(o.Points) {
		return false
	}
	for i := range s.Points {
		if !s.Points[i].Equal(o.Points[i]) {
			return false
		}
	}
	return true
}
