package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"PstrykSentinel/internal/model"
)

// Want selects which flag Upcoming filters on.
type Want int

const (
	WantCheap Want = iota
	WantExpensive
)

// Classify flags every hour of a single day. Thresholds are computed from
// that day alone and compared inclusively, so boundary ties share a flag.
func Classify(series model.DaySeries, rule ThresholdRule) model.Classification {
	prices := make([]decimal.Decimal, len(series.Points))
	for i, p := range series.Points {
		prices[i] = p.Price
	}
	cheap, expensive := rule.thresholds(prices)

	out := model.Classification{
		Date:               series.Date,
		Points:             make([]model.ClassifiedPrice, len(series.Points)),
		CheapThreshold:     cheap,
		ExpensiveThreshold: expensive,
	}
	for i, p := range series.Points {
		out.Points[i] = model.ClassifiedPrice{
			PricePoint:  p,
			IsCheap:     cheap.Valid && p.Price.LessThanOrEqual(cheap.Decimal),
			IsExpensive: expensive.Valid && p.Price.GreaterThanOrEqual(expensive.Decimal),
		}
	}
	return out
}

// Upcoming lists the flagged hours of today followed by tomorrow, starting
// at the hour containing now. The result is never nil.
func Upcoming(today, tomorrow model.Classification, now time.Time, want Want) []model.HourEntry {
	from := model.FloorHour(now)
	out := make([]model.HourEntry, 0)
	for _, c := range []model.Classification{today, tomorrow} {
		for _, cp := range c.Points {
			if cp.Time.Before(from) {
				continue
			}
			if (want == WantCheap && !cp.IsCheap) || (want == WantExpensive && !cp.IsExpensive) {
				continue
			}
			if n := len(out); n > 0 && !out[n-1].Time.Before(cp.Time) {
				continue
			}
			out = append(out, model.HourEntry{
				Time:  cp.Time,
				Hour:  cp.Hour(),
				Price: cp.Price,
				Date:  model.DateOf(cp.Time),
			})
		}
	}
	return out
}
