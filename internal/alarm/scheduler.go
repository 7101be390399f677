// Package alarm runs durable named timers stored in SQLite. Handlers are
// registered by name prefix and invoked from a single poll loop.
package alarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sgd-notifier/sgdn/internal/metrics"
	"github.com/sgd-notifier/sgdn/internal/storage"
)

// Store abstracts the alarm table.
type Store interface {
	UpsertAlarm(a storage.Alarm) error
	ClearAlarm(name string) (bool, error)
	ClaimDueAlarm(now time.Time) (*storage.Alarm, error)
	ListAlarms(prefix string) ([]storage.Alarm, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// HandlerFunc is invoked with the name and raw JSON payload of a fired alarm.
type HandlerFunc func(ctx context.Context, name string, payload json.RawMessage) error

type route struct {
	prefix string
	fn     HandlerFunc
}

// Scheduler claims due alarms and dispatches them to handlers.
type Scheduler struct {
	store  Store
	clock  Clock
	poll   time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	routes []route
}

// NewScheduler creates a Scheduler. If pollInterval is <= 0, it defaults to 1s.
func NewScheduler(store Store, pollInterval time.Duration) *Scheduler {
	return NewSchedulerWithClock(store, realClock{}, pollInterval)
}

// NewSchedulerWithClock creates a Scheduler with a custom clock (for testing).
func NewSchedulerWithClock(store Store, clock Clock, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Scheduler{
		store:  store,
		clock:  clock,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Handle routes alarms whose name starts with prefix to fn. The longest
// matching prefix wins.
func (s *Scheduler) Handle(prefix string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, route{prefix: prefix, fn: fn})
}

// Create arms a one-shot alarm firing after delay, replacing any alarm of the
// same name. payload is stored as JSON; nil stores nothing.
func (s *Scheduler) Create(name string, payload any, delay time.Duration) error {
	var raw string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding payload for alarm %s: %w", name, err)
		}
		raw = string(b)
	}
	now := s.clock.Now()
	return s.store.UpsertAlarm(storage.Alarm{
		Name:        name,
		PayloadJSON: raw,
		RunAfter:    now.Add(delay),
		CreatedAt:   now,
	})
}

// CreateRepeating arms an alarm that first fires after firstDelay and then
// every period.
func (s *Scheduler) CreateRepeating(name string, period, firstDelay time.Duration) error {
	if period < time.Second {
		return fmt.Errorf("alarm %s: period %s is shorter than one second", name, period)
	}
	now := s.clock.Now()
	return s.store.UpsertAlarm(storage.Alarm{
		Name:      name,
		RunAfter:  now.Add(firstDelay),
		Period:    period,
		CreatedAt: now,
	})
}

// NextBoundary returns the delay from now to the next multiple of unit, so a
// repeating alarm created with it fires on whole minutes (or hours, ...).
func NextBoundary(now time.Time, unit time.Duration) time.Duration {
	return now.Truncate(unit).Add(unit).Sub(now)
}

// Clear removes the named alarm and reports whether it was armed.
func (s *Scheduler) Clear(name string) (bool, error) {
	return s.store.ClearAlarm(name)
}

// List returns armed alarms whose name starts with prefix.
func (s *Scheduler) List(prefix string) ([]storage.Alarm, error) {
	return s.store.ListAlarms(prefix)
}

// Run polls for due alarms until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		fired, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.Error("alarm iteration failed", "error", err)
		}
		if fired {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.poll):
		}
	}
}

// RunOnce claims and dispatches a single due alarm. It returns true if an
// alarm was claimed, whether or not its handler succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	a, err := s.store.ClaimDueAlarm(s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("claiming alarm: %w", err)
	}
	if a == nil {
		return false, nil
	}

	r, ok := s.match(a.Name)
	if !ok {
		s.logger.Warn("no handler for alarm", "alarm", a.Name)
		return true, nil
	}

	metrics.AlarmsFired.WithLabelValues(r.prefix).Inc()
	if err := r.fn(ctx, a.Name, json.RawMessage(a.PayloadJSON)); err != nil {
		s.logger.Warn("alarm handler failed", "alarm", a.Name, "error", err)
	}
	return true, nil
}

func (s *Scheduler) match(name string) (route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best route
	found := false
	for _, r := range s.routes {
		if strings.HasPrefix(name, r.prefix) && (!found || len(r.prefix) > len(best.prefix)) {
			best, found = r, true
		}
	}
	return best, found
}
