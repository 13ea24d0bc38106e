package model

import "time"

// CacheVersion is the current on-disk CacheRecord layout.
const CacheVersion = 1

// CachedDirection holds both day slots of one direction.
type CachedDirection struct {
	Today    DaySeries `json:"today"`
	Tomorrow DaySeries `json:"tomorrow"`
}

// Slot returns the series stored for day.
func (c CachedDirection) Slot(day Day) DaySeries {
	if day == DayTomorrow {
		return c.Tomorrow
	}
	return c.Today
}

// CacheRecord is the last known good set of series.
type CacheRecord struct {
	Version     int             `json:"version"`
	RetrievedAt time.Time       `json:"retrieved_at"`
	Buy         CachedDirection `json:"buy_series"`
	Sell        CachedDirection `json:"sell_series"`
}

// Direction returns the cached series of d.
func (r *CacheRecord) Direction(d Direction) CachedDirection {
	if d == DirectionSell {
		return r.Sell
	}
	return r.Buy
}

// Series returns the cached series for key.
func (r *CacheRecord) Series(key SeriesKey) DaySeries {
	return r.Direction(key.Direction).Slot(key.Day)
}

// Validate checks every series invariant.
func (r *CacheRecord) Validate() error {
	for _, key := range AllSeriesKeys() {
		if err := r.Series(key).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Equal compares instants and decimal values rather than representations.
func (r *CacheRecord) Equal(o *CacheRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Version != o.Version || !r.RetrievedAt.Equal(o.RetrievedAt) {
		return false
	}
	for _, key := range AllSeriesKeys() {
		if !r.Series(key).Equal(o.Series(key)) {
			return false
		}
	}
	return true
}
