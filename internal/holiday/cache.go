package holiday

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sgd-notifier/sgdn/internal/metrics"
)

// DefaultYears is the width of the refresh window, starting at the current year.
const DefaultYears = 5

// Source returns the holiday dates of one year.
type Source interface {
	Fetch(ctx context.Context, year int) ([]string, error)
}

// Store persists fetched holiday lists.
type Store interface {
	HolidaysForYear(year int) ([]string, bool, error)
	ReplaceHolidays(year int, dates []string) error
	HasHolidays() (bool, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options tune a Cache. Zero values select the defaults.
type Options struct {
	Years      int
	RetryAfter time.Duration
	Clock      Clock
	Logger     *slog.Logger
}

// RefreshResult lists which years of a refresh were stored and which failed.
type RefreshResult struct {
	Fetched []int `json:"fetched"`
	Failed  []int `json:"failed"`
}

// Cache resolves holiday lists from the store, refreshing a window of years
// from the source on a miss. A failed year is logged and left absent.
type Cache struct {
	source     Source
	store      Store
	years      int
	retryAfter time.Duration
	clock      Clock
	logger     *slog.Logger

	group       singleflight.Group
	mu          sync.Mutex
	lastAttempt time.Time
}

func NewCache(source Source, store Store, opts Options) *Cache {
	c := &Cache{
		source:     source,
		store:      store,
		years:      opts.Years,
		retryAfter: opts.RetryAfter,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
	if c.years <= 0 {
		c.years = DefaultYears
	}
	if c.retryAfter <= 0 {
		c.retryAfter = time.Hour
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// EnsureHolidays returns the holiday dates of year, refreshing the window on
// a miss. A year that is still missing afterwards yields no holidays. Misses
// within the retry cooldown of the last refresh do not refetch.
func (c *Cache) EnsureHolidays(ctx context.Context, year int) ([]string, error) {
	dates, ok, err := c.store.HolidaysForYear(year)
	if err != nil {
		return nil, fmt.Errorf("reading holidays for %d: %w", year, err)
	}
	if ok {
		return dates, nil
	}

	if !c.cooledDown() {
		return nil, nil
	}
	if _, err := c.refreshShared(ctx); err != nil {
		return nil, err
	}

	dates, _, err = c.store.HolidaysForYear(year)
	if err != nil {
		return nil, fmt.Errorf("reading holidays for %d: %w", year, err)
	}
	return dates, nil
}

// Refresh fetches every year of the window concurrently. Per-year failures
// are logged and reported in the result, never returned as an error.
func (c *Cache) Refresh(ctx context.Context) (RefreshResult, error) {
	return c.refreshShared(ctx)
}

// RefreshIfEmpty refreshes when no year has been stored yet.
func (c *Cache) RefreshIfEmpty(ctx context.Context) error {
	has, err := c.store.HasHolidays()
	if err != nil {
		return fmt.Errorf("checking holiday cache: %w", err)
	}
	if has {
		return nil
	}
	_, err = c.refreshShared(ctx)
	return err
}

func (c *Cache) cooledDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAttempt.IsZero() || c.clock.Now().Sub(c.lastAttempt) >= c.retryAfter
}

// refreshShared collapses concurrent refreshes into one. The refresh runs
// detached from ctx so a caller that goes away does not fail it for every
// other waiter; the source's own timeout bounds it. ctx only limits how long
// this caller waits.
func (c *Cache) refreshShared(ctx context.Context) (RefreshResult, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return RefreshResult{}, res.Err
		}
		return res.Val.(RefreshResult), nil
	case <-ctx.Done():
		return RefreshResult{}, ctx.Err()
	}
}

func (c *Cache) refresh(ctx context.Context) (RefreshResult, error) {
	c.mu.Lock()
	prev := c.lastAttempt
	c.lastAttempt = c.clock.Now()
	first := c.lastAttempt.Year()
	c.mu.Unlock()

	var (
		mu       sync.Mutex
		result   RefreshResult
		canceled int
		g        errgroup.Group
	)
	g.SetLimit(c.years)

	for year := first; year < first+c.years; year++ {
		g.Go(func() error {
			err := c.fetchYear(ctx, year)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, year)
				if errors.Is(err, context.Canceled) {
					canceled++
				}
			} else {
				result.Fetched = append(result.Fetched, year)
			}
			return nil
		})
	}
	g.Wait()

	// A refresh that only saw cancellations never reached the source, so it
	// does not start the cooldown.
	if canceled > 0 && canceled == len(result.Failed) && len(result.Fetched) == 0 {
		c.mu.Lock()
		c.lastAttempt = prev
		c.mu.Unlock()
	}
	sort.Ints(result.Fetched)
	sort.Ints(result.Failed)
	c.logger.Info("holidays refreshed", "fetched", result.Fetched, "failed", result.Failed)
	return result, nil
}

func (c *Cache) fetchYear(ctx context.Context, year int) error {
	dates, err := c.source.Fetch(ctx, year)
	if err != nil {
		metrics.HolidayFetches.WithLabelValues("error").Inc()
		c.logger.Warn("holiday fetch failed", "year", year, "error", err)
		return err
	}
	if err := c.store.ReplaceHolidays(year, dates); err != nil {
		metrics.HolidayFetches.WithLabelValues("error").Inc()
		c.logger.Warn("storing holidays failed", "year", year, "error", err)
		return err
	}
	metrics.HolidayFetches.WithLabelValues("ok").Inc()
	return nil
}
