package coordinator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"PstrykSentinel/internal/collector"
	"PstrykSentinel/internal/model"
	"PstrykSentinel/internal/strategy"
)

var (
	// ErrRefreshInProgress is returned when a cycle is already running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrTooSoon is returned for manual triggers inside the cooldown window.
	ErrTooSoon = errors.New("manual refresh requested too soon")
)

// Collector fetches the four series of one cycle.
type Collector interface {
	CollectAll(ctx context.Context, now time.Time) *collector.Batch
}

// CacheStore persists the last good record.
type CacheStore interface {
	Load() (*model.CacheRecord, bool)
	Save(rec *model.CacheRecord) error
}

// Options configure a Coordinator.
type Options struct {
	Rule           strategy.ThresholdRule
	Location       *time.Location
	ManualCooldown time.Duration
	Now            func() time.Time
}

// Status is the host-visible health of the refresh loop.
type Status struct {
	State         model.State `json:"state"`
	LastOutcome   model.State `json:"last_outcome,omitempty"`
	AuthFailed    bool        `json:"auth_failed"`
	LastError     string      `json:"last_error,omitempty"`
	LastAttemptAt time.Time   `json:"last_attempt_at"`
	LastSuccessAt time.Time   `json:"last_success_at"`
	Cycles        int64       `json:"cycles"`
}

// CycleResult describes one completed refresh cycle.
type CycleResult struct {
	ID         string                     `json:"id"`
	Trigger    model.TriggerType          `json:"trigger"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Outcome    model.State                `json:"outcome"`
	Stale      bool                       `json:"stale"`
	Failures   map[model.SeriesKey]string `json:"-"`
	Snapshot   *model.PriceSnapshot       `json:"-"`
}

// FailureList renders Failures in a stable order.
func (r *CycleResult) FailureList() []string {
	out := make([]string, 0, len(r.Failures))
	for k, msg := range r.Failures {
		out = append(out, k.String()+": "+msg)
	}
	sort.Strings(out)
	return out
}

type slot struct {
	series model.DaySeries
	source model.Source
	stale  bool
}

// Coordinator runs refresh cycles and owns the published snapshot.
type Coordinator struct {
	collector Collector
	cache     CacheStore
	rule      strategy.ThresholdRule
	loc       *time.Location
	cooldown  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	running atomic.Bool

	mu          sync.RWMutex
	slots       map[model.SeriesKey]slot
	retrievedAt time.Time
	outcome     model.State
	snapshot    *model.PriceSnapshot
	status      Status
	lastStart   time.Time
}

// New creates a Coordinator. Nothing is loaded until the first cycle.
func New(c Collector, store CacheStore, opts Options, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Coordinator{
		collector: c,
		cache:     store,
		rule:      opts.Rule,
		loc:       opts.Location,
		cooldown:  opts.ManualCooldown,
		now:       opts.Now,
		logger:    logger,
		slots:     make(map[model.SeriesKey]slot, 4),
		status:    Status{State: model.StateIdle},
	}
}

// Snapshot returns the last published snapshot, or nil before the first
// successful or degraded cycle.
func (c *Coordinator) Snapshot() *model.PriceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Status returns a copy of the current status.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Refresh runs one cycle: Idle -> Fetching -> {Success, Degraded, Failed} -> Idle.
func (c *Coordinator) Refresh(ctx context.Context, trigger model.TriggerType) (*CycleResult, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer c.running.Store(false)

	started := c.now()
	c.mu.Lock()
	if trigger == model.TriggerManual && c.cooldown > 0 && !c.lastStart.IsZero() &&
		started.Sub(c.lastStart) < c.cooldown {
		c.mu.Unlock()
		return nil, ErrTooSoon
	}
	c.lastStart = started
	c.status.State = model.StateFetching
	c.status.LastAttemptAt = started
	c.mu.Unlock()

	res := &CycleResult{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
		Failures:  make(map[model.SeriesKey]string),
	}
	c.logger.Info("refresh started", zap.String("cycle", res.ID), zap.String("trigger", string(trigger)))

	batch := c.collector.CollectAll(ctx, started)
	failures := batch.Failures()
	for k, err := range failures {
		res.Failures[k] = err.Error()
	}

	switch {
	case batch.HasAuthError():
		c.fail(res, failures)
	case len(failures) == 0:
		c.succeed(res, batch, started)
	default:
		c.degrade(res, batch, started)
	}

	res.FinishedAt = c.now()
	c.logger.Info("refresh finished",
		zap.String("cycle", res.ID),
		zap.String("outcome", string(res.Outcome)),
		zap.Bool("stale", res.Stale),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// fail leaves the published snapshot untouched and flags the credentials.
func (c *Coordinator) fail(res *CycleResult, failures map[model.SeriesKey]error) {
	var msg string
	for _, key := range model.AllSeriesKeys() {
		if err := failures[key]; collector.IsAuthError(err) {
			msg = err.Error()
			break
		}
	}
	c.logger.Error("pricing API rejected the token", zap.String("cycle", res.ID), zap.String("error", msg))

	c.mu.Lock()
	defer c.mu.Unlock()
	res.Outcome = model.StateFailed
	res.Snapshot = c.snapshot
	if c.snapshot != nil {
		res.Stale = c.snapshot.Stale
	}
	c.finish(model.StateFailed, msg)
	c.status.AuthFailed = true
}

func (c *Coordinator) succeed(res *CycleResult, batch *collector.Batch, started time.Time) {
	fresh := make(map[model.SeriesKey]slot, 4)
	for key, r := range batch.Results {
		fresh[key] = slot{series: r.Series, source: model.SourceFresh}
	}

	rec := &model.CacheRecord{Version: model.CacheVersion, RetrievedAt: started}
	rec.Buy = model.CachedDirection{
		Today:    fresh[model.SeriesKey{Direction: model.DirectionBuy, Day: model.DayToday}].series,
		Tomorrow: fresh[model.SeriesKey{Direction: model.DirectionBuy, Day: model.DayTomorrow}].series,
	}
	rec.Sell = model.CachedDirection{
		Today:    fresh[model.SeriesKey{Direction: model.DirectionSell, Day: model.DayToday}].series,
		Tomorrow: fresh[model.SeriesKey{Direction: model.DirectionSell, Day: model.DayTomorrow}].series,
	}
	if err := c.cache.Save(rec); err != nil {
		c.logger.Warn("failed to save price cache", zap.String("cycle", res.ID), zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = fresh
	c.retrievedAt = started
	c.outcome = model.StateSuccess
	c.publish(started)

	res.Outcome = model.StateSuccess
	res.Snapshot = c.snapshot
	res.Stale = c.snapshot.Stale
	c.finish(model.StateSuccess, "")
	c.status.AuthFailed = false
	c.status.LastSuccessAt = started
}

func (c *Coordinator) degrade(res *CycleResult, batch *collector.Batch, started time.Time) {
	cached, _ := c.cache.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[model.SeriesKey]slot, 4)
	anyFresh, usedCache := false, false
	for _, key := range model.AllSeriesKeys() {
		r := batch.Results[key]
		if r.Err == nil {
			next[key] = slot{series: r.Series, source: model.SourceFresh}
			anyFresh = true
			continue
		}
		s := c.fallback(key, r.Date, cached)
		if s.source == model.SourceCache {
			usedCache = true
		}
		next[key] = s
		c.logger.Warn("using fallback series",
			zap.String("cycle", res.ID),
			zap.String("series", key.String()),
			zap.String("source", string(s.source)),
			zap.String("series_date", string(s.series.Date)))
	}

	c.slots = next
	switch {
	case anyFresh:
		c.retrievedAt = started
	case usedCache:
		c.retrievedAt = cached.RetrievedAt
	}
	c.outcome = model.StateDegraded
	c.publish(started)

	res.Outcome = model.StateDegraded
	res.Snapshot = c.snapshot
	res.Stale = c.snapshot.Stale
	msg := ""
	if list := res.FailureList(); len(list) > 0 {
		msg = list[0]
	}
	c.finish(model.StateDegraded, msg)
	if anyFresh {
		c.status.AuthFailed = false
	}
}

// fallback picks a replacement for a failed slot. Data dated the slot's
// target day wins over data that merely occupied the same slot before.
func (c *Coordinator) fallback(key model.SeriesKey, target model.Date, cached *model.CacheRecord) slot {
	if cached != nil {
		dir := cached.Direction(key.Direction)
		for _, day := range model.Days {
			if s := dir.Slot(day); s.Date == target && !s.IsEmpty() {
				return slot{series: s.In(c.loc), source: model.SourceCache, stale: true}
			}
		}
	}
	for _, day := range model.Days {
		prev, ok := c.slots[model.SeriesKey{Direction: key.Direction, Day: day}]
		if ok && prev.series.Date == target && !prev.series.IsEmpty() {
			return slot{series: prev.series, source: model.SourcePrevious, stale: true}
		}
	}
	// A tomorrow slot never shows another day's prices.
	if key.Day == model.DayToday {
		if cached != nil {
			if s := cached.Series(key); s.Date != "" && s.Date < target {
				return slot{series: s.In(c.loc), source: model.SourceCache, stale: true}
			}
		}
		if prev, ok := c.slots[key]; ok && prev.series.Date != "" && prev.series.Date < target {
			return slot{series: prev.series, source: model.SourcePrevious, stale: true}
		}
	}
	return slot{series: model.EmptySeries(target), source: model.SourceNone, stale: true}
}

// Republish recomputes current/next-hour values and upcoming lists for the
// current time without fetching. When the calendar day has moved on, a
// stored tomorrow series dated today takes the place of today.
func (c *Coordinator) Republish() *model.PriceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil
	}
	now := c.now()
	c.rollover(model.DateOf(now.In(c.loc)))
	c.publish(now)
	return c.snapshot
}

func (c *Coordinator) rollover(today model.Date) {
	for _, dir := range model.Directions {
		todayKey := model.SeriesKey{Direction: dir, Day: model.DayToday}
		tomorrowKey := model.SeriesKey{Direction: dir, Day: model.DayTomorrow}
		cur, next := c.slots[todayKey], c.slots[tomorrowKey]
		if cur.series.Date == today || next.series.Date != today {
			continue
		}
		c.slots[todayKey] = next
		c.slots[tomorrowKey] = slot{series: model.EmptySeries(today.Next()), source: model.SourceNone}
		c.logger.Info("day rollover", zap.String("direction", string(dir)), zap.String("date", string(today)))
	}
}

// publish must be called with mu held.
func (c *Coordinator) publish(now time.Time) {
	local := now.In(c.loc)
	snap := &model.PriceSnapshot{
		GeneratedAt: local,
		RetrievedAt: c.retrievedAt,
		Outcome:     c.outcome,
	}
	for _, dir := range model.Directions {
		today := c.slotOrEmpty(model.SeriesKey{Direction: dir, Day: model.DayToday}, model.DateOf(local))
		tomorrow := c.slotOrEmpty(model.SeriesKey{Direction: dir, Day: model.DayTomorrow}, model.DateOf(local).Next())
		ds := strategy.BuildDirection(dir, today.series, tomorrow.series, today.source, tomorrow.source, c.rule, local)
		ds.Stale = ds.Stale || today.stale || tomorrow.stale
		*snap.Direction(dir) = ds
		snap.Stale = snap.Stale || ds.Stale
	}
	c.snapshot = snap
}

func (c *Coordinator) slotOrEmpty(key model.SeriesKey, date model.Date) slot {
	if s, ok := c.slots[key]; ok {
		return s
	}
	return slot{series: model.EmptySeries(date), source: model.SourceNone}
}

// finish must be called with mu held.
func (c *Coordinator) finish(outcome model.State, lastErr string) {
	c.status.State = model.StateIdle
	c.status.LastOutcome = outcome
	c.status.LastError = lastErr
	c.status.Cycles++
}
