package recorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleEvent is the persisted summary of one refresh cycle.
type CycleEvent struct {
	ID            string              `json:"id"`
	Trigger       string              `json:"trigger"` // "TICK", "STARTUP" or "MANUAL"
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	Outcome       string              `json:"outcome"` // "success", "degraded" or "failed"
	Stale         bool                `json:"stale"`
	Failures      []string            `json:"failures"`
	BuyCurrent    decimal.NullDecimal `json:"buy_current"`
	SellCurrent   decimal.NullDecimal `json:"sell_current"`
	BuyCheap      int                 `json:"buy_cheap_hours"`
	BuyExpensive  int                 `json:"buy_expensive_hours"`
	SellCheap     int                 `json:"sell_cheap_hours"`
	SellExpensive int                 `json:"sell_expensive_hours"`
}

// Recorder persists refresh history for diagnostics.
type Recorder interface {
	RecordCycle(evt *CycleEvent) error
	RecentCycles(limit int) ([]CycleEvent, error)
	Close() error
}
