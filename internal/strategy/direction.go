package strategy

import (
	"time"

	"PstrykSentinel/internal/model"
)

// BuildDirection classifies both days of one direction and derives the
// values published for now.
func BuildDirection(dir model.Direction, today, tomorrow model.DaySeries, todaySrc, tomorrowSrc model.Source,
	rule ThresholdRule, now time.Time) model.DirectionSnapshot {

	todayCls := Classify(today, rule)
	tomorrowCls := Classify(tomorrow, rule)

	snap := model.DirectionSnapshot{
		Direction:      dir,
		PricesToday:    today,
		PricesTomorrow: tomorrow,
		Today:          todayCls,
		Tomorrow:       tomorrowCls,
		CheapHours:     Upcoming(todayCls, tomorrowCls, now, WantCheap),
		ExpensiveHours: Upcoming(todayCls, tomorrowCls, now, WantExpensive),
		TodaySource:    todaySrc,
		TomorrowSource: tomorrowSrc,
		Stale:          isStale(todaySrc) || isStale(tomorrowSrc),
	}

	hour := model.FloorHour(now)
	if cp, ok := lookup(hour, todayCls, tomorrowCls); ok {
		p := cp.PricePoint
		snap.CurrentPrice = &p
		snap.IsCheap = cp.IsCheap
		snap.IsExpensive = cp.IsExpensive
	}
	if cp, ok := lookup(hour.Add(time.Hour), todayCls, tomorrowCls); ok {
		p := cp.PricePoint
		snap.NextHourPrice = &p
	}
	return snap
}

func lookup(t time.Time, cls ...model.Classification) (model.ClassifiedPrice, bool) {
	for _, c := range cls {
		if cp, ok := c.Lookup(model.PricePoint{Time: t}); ok {
			return cp, true
		}
	}
	return model.ClassifiedPrice{}, false
}

func isStale(src model.Source) bool {
	return src == model.SourceCache || src == model.SourcePrevious
}
