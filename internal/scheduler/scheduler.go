package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"PstrykSentinel/internal/coordinator"
	"PstrykSentinel/internal/model"
	"PstrykSentinel/internal/notifier"
	"PstrykSentinel/internal/recorder"
)

// Refresher is the part of the coordinator the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context, trigger model.TriggerType) (*coordinator.CycleResult, error)
	Republish() *model.PriceSnapshot
	Snapshot() *model.PriceSnapshot
	Status() coordinator.Status
}

// Notifier delivers operator messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the cron jobs and reacts to cycle outcomes.
type Scheduler struct {
	Cron        *cron.Cron
	Coordinator Refresher
	Notifier    Notifier
	Recorder    recorder.Recorder
	Ctx         context.Context
	logger      *zap.Logger

	mu          sync.Mutex
	authAlerted bool
}

// NewScheduler creates a new Scheduler. Jobs run in loc and never overlap
// with themselves.
func NewScheduler(ctx context.Context, coord Refresher, n Notifier, rec recorder.Recorder, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	cl := cronLogger{l: logger.Named("cron").Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Coordinator: coord,
		Notifier:    n,
		Recorder:    rec,
		Ctx:         ctx,
		logger:      logger,
	}
}

// RefreshSpec returns the default refresh schedule for an interval.
func RefreshSpec(interval time.Duration) string {
	return "@every " + interval.String()
}

// RegisterAll registers the refresh and hourly republish jobs.
func (s *Scheduler) RegisterAll(refreshCron, republishCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.runCycle(model.TriggerTick) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(republishCron, s.republish); err != nil {
		return fmt.Errorf("register republish task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunRefreshNow executes a startup cycle immediately.
func (s *Scheduler) RunRefreshNow() {
	s.runCycle(model.TriggerStartup)
}

// TriggerRefresh runs a manual cycle on behalf of the host. The cycle runs on
// the scheduler context; ctx only bounds how long the caller waits for it.
func (s *Scheduler) TriggerRefresh(ctx context.Context) (*coordinator.CycleResult, error) {
	type outcome struct {
		res *coordinator.CycleResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Coordinator.Refresh(s.Ctx, model.TriggerManual)
		if err == nil {
			s.afterCycle(s.Ctx, res)
		}
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scheduler) runCycle(trigger model.TriggerType) {
	res, err := s.Coordinator.Refresh(s.Ctx, trigger)
	if err != nil {
		s.logger.Info("refresh skipped", zap.String("trigger", string(trigger)), zap.Error(err))
		return
	}
	s.afterCycle(s.Ctx, res)
}

func (s *Scheduler) republish() {
	if snap := s.Coordinator.Republish(); snap != nil {
		s.logger.Debug("snapshot republished", zap.Time("at", snap.GeneratedAt))
	}
}

func (s *Scheduler) afterCycle(ctx context.Context, res *coordinator.CycleResult) {
	if err := s.Recorder.RecordCycle(NewCycleEvent(res)); err != nil {
		s.logger.Error("record cycle", zap.String("cycle", res.ID), zap.Error(err))
	}

	s.mu.Lock()
	var msg string
	switch {
	case res.Outcome == model.StateFailed && !s.authAlerted:
		s.authAlerted = true
		msg = notifier.FormatAuthAlert(s.Coordinator.Status().LastError)
	case res.Outcome != model.StateFailed && s.authAlerted:
		s.authAlerted = false
		msg = notifier.FormatRecovered(res.Outcome)
	}
	s.mu.Unlock()

	if msg != "" {
		s.trySend(ctx, msg)
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	command, _, _ = strings.Cut(strings.TrimSpace(command), "@")
	switch command {
	case "/prices":
		return notifier.FormatPriceReport(s.Coordinator.Snapshot())
	case "/refresh":
		res, err := s.TriggerRefresh(ctx)
		switch {
		case errors.Is(err, coordinator.ErrRefreshInProgress):
			return "⏳ A refresh is already running."
		case errors.Is(err, coordinator.ErrTooSoon):
			return "⏳ Refreshed moments ago, try again in a minute."
		case err != nil:
			return fmt.Sprintf("❌ Refresh failed: %v", err)
		}
		if res.Snapshot == nil {
			return fmt.Sprintf("Refresh finished: %s", res.Outcome)
		}
		return fmt.Sprintf("Refresh finished: %s\n\n%s", res.Outcome, notifier.FormatPriceReport(res.Snapshot))
	case "/status":
		return notifier.FormatStatus(s.Coordinator.Status())
	default:
		return notifier.HelpText
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}

// NewCycleEvent summarises a cycle for the recorder.
func NewCycleEvent(res *coordinator.CycleResult) *recorder.CycleEvent {
	evt := &recorder.CycleEvent{
		ID:         res.ID,
		Trigger:    string(res.Trigger),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Outcome:    string(res.Outcome),
		Stale:      res.Stale,
		Failures:   res.FailureList(),
	}
	if snap := res.Snapshot; snap != nil {
		if p := snap.Buy.CurrentPrice; p != nil {
			evt.BuyCurrent.Decimal, evt.BuyCurrent.Valid = p.Price, true
		}
		if p := snap.Sell.CurrentPrice; p != nil {
			evt.SellCurrent.Decimal, evt.SellCurrent.Valid = p.Price, true
		}
		evt.BuyCheap = snap.Buy.Today.CountCheap()
		evt.BuyExpensive = snap.Buy.Today.CountExpensive()
		evt.SellCheap = snap.Sell.Today.CountCheap()
		evt.SellExpensive = snap.Sell.Today.CountExpensive()
	}
	return evt
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
