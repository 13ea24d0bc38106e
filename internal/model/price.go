package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction selects the buy (consumer) or sell (prosumer) price series.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Directions lists both series in publication order.
var Directions = []Direction{DirectionBuy, DirectionSell}

// ParseDirection accepts "buy" or "sell".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionBuy, DirectionSell:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Day is a slot relative to "now": today or tomorrow.
type Day string

const (
	DayToday    Day = "today"
	DayTomorrow Day = "tomorrow"
)

// Days lists both slots in chronological order.
var Days = []Day{DayToday, DayTomorrow}

// SeriesKey identifies one of the four fetched series.
type SeriesKey struct {
	Direction Direction
	Day       Day
}

func (k SeriesKey) String() string { return string(k.Direction) + "/" + string(k.Day) }

// AllSeriesKeys returns buy/sell x today/tomorrow.
func AllSeriesKeys() []SeriesKey {
	keys := make([]SeriesKey, 0, 4)
	for _, d := range Directions {
		for _, day := range Days {
			keys = append(keys, SeriesKey{Direction: d, Day: day})
		}
	}
	return keys
}

// PricePoint is the price of one hour, starting at Time.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// NewPricePoint rejects timestamps that are not on an hour boundary.
func NewPricePoint(t time.Time, price decimal.Decimal) (PricePoint, error) {
	if !IsHourAligned(t) {
		return PricePoint{}, fmt.Errorf("timestamp %s is not hour aligned", t.Format(time.RFC3339Nano))
	}
	return PricePoint{Time: t, Price: price}, nil
}

// Equal compares the instant and the numeric price value.
func (p PricePoint) Equal(o PricePoint) bool {
	return p.Time.Equal(o.Time) && p.Price.Equal(o.Price)
}

// Before orders points by timestamp.
func (p PricePoint) Before(o PricePoint) bool {
	return p.Time.Before(o.Time)
}

// Hour returns the hour of day in the point's location.
func (p PricePoint) Hour() int { return p.Time.Hour() }

// IsHourAligned reports whether t has zero minutes, seconds and nanoseconds in its location.
func IsHourAligned(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// FloorHour truncates t to the start of its hour. Subtracting the wall
// clock remainder keeps the offset intact across DST transitions.
func FloorHour(t time.Time) time.Time {
	return t.Add(-(time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())))
}
