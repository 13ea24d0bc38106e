package model

import "github.com/shopspring/decimal"

// TriggerType indicates what started a refresh cycle.
type TriggerType string

const (
	TriggerTick    TriggerType = "TICK"
	TriggerStartup TriggerType = "STARTUP"
	TriggerManual  TriggerType = "MANUAL"
)

// ClassifiedPrice is one hour with its cheap/expensive flags.
type ClassifiedPrice struct {
	PricePoint
	IsCheap     bool `json:"is_cheap"`
	IsExpensive bool `json:"is_expensive"`
}

// Classification is the result of classifying a single DaySeries.
// Thresholds are null when the day has fewer than two distinct prices.
type Classification struct {
	Date               Date                `json:"date"`
	Points             []ClassifiedPrice   `json:"points"`
	CheapThreshold     decimal.NullDecimal `json:"cheap_threshold"`
	ExpensiveThreshold decimal.NullDecimal `json:"expensive_threshold"`
}

// Lookup returns the classified point starting at the same instant as p.
func (c Classification) Lookup(p PricePoint) (ClassifiedPrice, bool) {
	for _, cp := range c.Points {
		if cp.Time.Equal(p.Time) {
			return cp, true
		}
	}
	return ClassifiedPrice{}, false
}

// CountCheap returns the number of hours flagged cheap.
func (c Classification) CountCheap() int {
	n := 0
	for _, cp := range c.Points {
		if cp.IsCheap {
			n++
		}
	}
	return n
}

// CountExpensive returns the number of hours flagged expensive.
func (c Classification) CountExpensive() int {
	n := 0
	for _, cp := range c.Points {
		if cp.IsExpensive {
			n++
		}
	}
	return n
}

// Equal compares points, flags and thresholds by value.
func (c Classification) Equal(o Classification) bool {
	if c.Date != o.Date || len(c.Points) != len(o.Points) {
		return false
	}
	for i := range c.Points {
		a, b := c.Points[i], o.Points[i]
		if !a.PricePoint.Equal(b.PricePoint) || a.IsCheap != b.IsCheap || a.IsExpensive != b.IsExpensive {
			return false
		}
	}
	return nullEqual(c.CheapThreshold, o.CheapThreshold) && nullEqual(c.ExpensiveThreshold, o.ExpensiveThreshold)
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
