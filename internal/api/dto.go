package api

import (
	"time"

	"github.com/shopspring/decimal"

	"PstrykSentinel/internal/coordinator"
	"PstrykSentinel/internal/model"
	"PstrykSentinel/internal/recorder"
)

type hourPrice struct {
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

type hourEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Hour      int        `json:"hour"`
	Price     float64    `json:"price"`
	Date      model.Date `json:"date"`
}

type directionView struct {
	Direction          model.Direction `json:"direction"`
	CurrentPrice       *float64        `json:"current_price"`
	CurrentHour        *time.Time      `json:"current_hour"`
	NextHourPrice      *float64        `json:"next_hour_price"`
	NextHour           *time.Time      `json:"next_hour"`
	IsCheap            bool            `json:"is_cheap"`
	IsExpensive        bool            `json:"is_expensive"`
	CheapHours         []hourEntry     `json:"cheap_hours"`
	ExpensiveHours     []hourEntry     `json:"expensive_hours"`
	PricesToday        []hourPrice     `json:"prices_today"`
	PricesTomorrow     []hourPrice     `json:"prices_tomorrow"`
	CheapThreshold     *float64        `json:"cheap_threshold"`
	ExpensiveThreshold *float64        `json:"expensive_threshold"`
	TodaySource        model.Source    `json:"today_source"`
	TomorrowSource     model.Source    `json:"tomorrow_source"`
	Stale              bool            `json:"stale"`
	RetrievedAt        time.Time       `json:"retrieved_at"`
}

type snapshotView struct {
	GeneratedAt time.Time     `json:"generated_at"`
	RetrievedAt time.Time     `json:"retrieved_at"`
	Outcome     model.State   `json:"outcome"`
	Stale       bool          `json:"stale"`
	Buy         directionView `json:"buy"`
	Sell        directionView `json:"sell"`
}

type cycleView struct {
	ID            string    `json:"id"`
	Trigger       string    `json:"trigger"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Outcome       string    `json:"outcome"`
	Stale         bool      `json:"stale"`
	Failures      []string  `json:"failures"`
	BuyCurrent    *float64  `json:"buy_current"`
	SellCurrent   *float64  `json:"sell_current"`
	BuyCheap      int       `json:"buy_cheap_hours"`
	BuyExpensive  int       `json:"buy_expensive_hours"`
	SellCheap     int       `json:"sell_cheap_hours"`
	SellExpensive int       `json:"sell_expensive_hours"`
}

type refreshView struct {
	ID         string      `json:"id"`
	Trigger    string      `json:"trigger"`
	Outcome    model.State `json:"outcome"`
	Stale      bool        `json:"stale"`
	Failures   []string    `json:"failures"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

func newDirectionView(ds *model.DirectionSnapshot, retrievedAt time.Time) directionView {
	v := directionView{
		Direction:          ds.Direction,
		IsCheap:            ds.IsCheap,
		IsExpensive:        ds.IsExpensive,
		CheapHours:         newHourEntries(ds.CheapHours),
		ExpensiveHours:     newHourEntries(ds.ExpensiveHours),
		PricesToday:        newHourPrices(ds.PricesToday),
		PricesTomorrow:     newHourPrices(ds.PricesTomorrow),
		CheapThreshold:     nullFloat(ds.Today.CheapThreshold),
		ExpensiveThreshold: nullFloat(ds.Today.ExpensiveThreshold),
		TodaySource:        ds.TodaySource,
		TomorrowSource:     ds.TomorrowSource,
		Stale:              ds.Stale,
		RetrievedAt:        retrievedAt,
	}
	if p := ds.CurrentPrice; p != nil {
		f, t := p.Price.InexactFloat64(), p.Time
		v.CurrentPrice, v.CurrentHour = &f, &t
	}
	if p := ds.NextHourPrice; p != nil {
		f, t := p.Price.InexactFloat64(), p.Time
		v.NextHourPrice, v.NextHour = &f, &t
	}
	return v
}

func newSnapshotView(s *model.PriceSnapshot) *snapshotView {
	if s == nil {
		return nil
	}
	return &snapshotView{
		GeneratedAt: s.GeneratedAt,
		RetrievedAt: s.RetrievedAt,
		Outcome:     s.Outcome,
		Stale:       s.Stale,
		Buy:         newDirectionView(&s.Buy, s.RetrievedAt),
		Sell:        newDirectionView(&s.Sell, s.RetrievedAt),
	}
}

func newHourEntries(in []model.HourEntry) []hourEntry {
	out := make([]hourEntry, len(in))
	for i, e := range in {
		out[i] = hourEntry{Timestamp: e.Time, Hour: e.Hour, Price: e.Price.InexactFloat64(), Date: e.Date}
	}
	return out
}

func newHourPrices(s model.DaySeries) []hourPrice {
	out := make([]hourPrice, len(s.Points))
	for i, p := range s.Points {
		out[i] = hourPrice{Hour: p.Hour(), Price: p.Price.InexactFloat64()}
	}
	return out
}

func newCycleViews(events []recorder.CycleEvent) []cycleView {
	out := make([]cycleView, len(events))
	for i, e := range events {
		failures := e.Failures
		if failures == nil {
			failures = []string{}
		}
		out[i] = cycleView{
			ID:            e.ID,
			Trigger:       e.Trigger,
			StartedAt:     e.StartedAt,
			FinishedAt:    e.FinishedAt,
			Outcome:       e.Outcome,
			Stale:         e.Stale,
			Failures:      failures,
			BuyCurrent:    nullFloat(e.BuyCurrent),
			SellCurrent:   nullFloat(e.SellCurrent),
			BuyCheap:      e.BuyCheap,
			BuyExpensive:  e.BuyExpensive,
			SellCheap:     e.SellCheap,
			SellExpensive: e.SellExpensive,
		}
	}
	return out
}

func newRefreshView(res *coordinator.CycleResult) refreshView {
	return refreshView{
		ID:         res.ID,
		Trigger:    string(res.Trigger),
		Outcome:    res.Outcome,
		Stale:      res.Stale,
		Failures:   res.FailureList(),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
}

func nullFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
