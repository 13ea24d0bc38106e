package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PstrykSentinel/internal/model"
)

// Result is the outcome of fetching one series.
type Result struct {
	Key      model.SeriesKey
	Date     model.Date
	Series   model.DaySeries
	Err      error
	Attempts int
}

// Batch holds the four results of one collection round.
type Batch struct {
	Today    model.Date
	Tomorrow model.Date
	Results  map[model.SeriesKey]Result
}

// Failures returns the keys whose fetch did not succeed.
func (b *Batch) Failures() map[model.SeriesKey]error {
	out := make(map[model.SeriesKey]error)
	for k, r := range b.Results {
		if r.Err != nil {
			out[k] = r.Err
		}
	}
	return out
}

// HasAuthError reports whether any fetch was rejected for credentials.
func (b *Batch) HasAuthError() bool {
	for _, r := range b.Results {
		if IsAuthError(r.Err) {
			return true
		}
	}
	return false
}

// Options tune per-attempt timeout and retry behaviour.
type Options struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// DefaultOptions mirrors the upstream client defaults.
func DefaultOptions() Options {
	return Options{Timeout: 10 * time.Second, Retries: 1, RetryDelay: 2 * time.Second}
}

// Collector fetches buy/sell x today/tomorrow concurrently.
type Collector struct {
	Fetcher  Fetcher
	Location *time.Location
	opts     Options
	logger   *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, loc *time.Location, opts Options, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Collector{Fetcher: fetcher, Location: loc, opts: opts, logger: logger}
}

// CollectAll fetches all four series for the calendar day of now and the
// next one. Individual failures are reported per key; the batch itself is
// always complete.
func (c *Collector) CollectAll(ctx context.Context, now time.Time) *Batch {
	today := model.DateOf(now.In(c.Location))
	batch := &Batch{
		Today:    today,
		Tomorrow: today.Next(),
		Results:  make(map[model.SeriesKey]Result, 4),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, key := range model.AllSeriesKeys() {
		key := key
		date := batch.Today
		if key.Day == model.DayTomorrow {
			date = batch.Tomorrow
		}
		g.Go(func() error {
			r := c.fetchWithRetry(ctx, key, date)
			mu.Lock()
			batch.Results[key] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

func (c *Collector) fetchWithRetry(ctx context.Context, key model.SeriesKey, date model.Date) Result {
	r := Result{Key: key, Date: date}
	for i := 0; i <= c.opts.Retries; i++ {
		r.Attempts = i + 1
		series, err := c.fetchOnce(ctx, key.Direction, date)
		if err == nil {
			r.Series, r.Err = series, nil
			return r
		}
		r.Err = err
		if !IsRetryable(err) || i == c.opts.Retries {
			break
		}
		backoff := c.opts.RetryDelay * time.Duration(1<<uint(i))
		c.logger.Warn("price fetch failed, retrying",
			zap.String("series", key.String()),
			zap.Int("attempt", i+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			r.Err = &NetworkError{Endpoint: c.Fetcher.Name(), Err: fmt.Errorf("retry aborted: %w", ctx.Err())}
			return r
		case <-time.After(backoff):
		}
	}
	c.logger.Warn("price fetch failed",
		zap.String("series", key.String()),
		zap.String("date", string(date)),
		zap.Int("attempts", r.Attempts),
		zap.Error(r.Err))
	return r
}

// fetchOnce bounds a single attempt. A fetcher that ignores its context
// still cannot hold the cycle past the deadline.
func (c *Collector) fetchOnce(ctx context.Context, dir model.Direction, date model.Date) (model.DaySeries, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	type outcome struct {
		series model.DaySeries
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := c.Fetcher.FetchDay(attemptCtx, dir, date)
		done <- outcome{s, err}
	}()

	select {
	case o := <-done:
		return o.series, o.err
	case <-attemptCtx.Done():
		return model.DaySeries{}, &NetworkError{
			Endpoint: c.Fetcher.Name(),
			Timeout:  true,
			Err:      fmt.Errorf("fetch %s %s: %w", dir, date, attemptCtx.Err()),
		}
	}
}
