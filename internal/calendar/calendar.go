// Package calendar projects reminders and peak days onto the days of a month
// for display. Nothing here is persisted.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sgd-notifier/sgdn/internal/peak"
	"github.com/sgd-notifier/sgdn/internal/reminder"
)

type Kind string

const (
	KindReminder Kind = "reminder"
	KindPeak     Kind = "peak"
)

// PeakMessage labels peak-day entries.
const PeakMessage = "Peak hours"

// ScheduledEvent is one entry on a calendar day.
type ScheduledEvent struct {
	ID         string            `json:"id"`
	Message    string            `json:"message"`
	Time       string            `json:"time"`
	Priority   reminder.Priority `json:"priority"`
	Kind       Kind              `json:"kind"`
	DayOfMonth int               `json:"dayOfMonth"`
	Completed  bool              `json:"completed,omitempty"`
}

// Month maps a day of the month to its events, peak entries first and
// reminders ordered by time.
type Month map[int][]ScheduledEvent

type Reminders interface {
	ListReminders() ([]reminder.Reminder, error)
}

type PeakDays interface {
	PeakDays(ctx context.Context, year int, month time.Month) ([]time.Time, error)
}

type Projector struct {
	reminders Reminders
	peaks     PeakDays
	loc       *time.Location
	window    peak.Window
}

func NewProjector(reminders Reminders, peaks PeakDays, loc *time.Location, window peak.Window) *Projector {
	if loc == nil {
		loc = time.Local
	}
	if window == (peak.Window{}) {
		window = peak.DefaultWindow
	}
	return &Projector{reminders: reminders, peaks: peaks, loc: loc, window: window}
}

// EventsForMonth returns the events of every day of the month that has any.
// Completed reminders are included and flagged.
func (p *Projector) EventsForMonth(ctx context.Context, year int, month time.Month) (Month, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("month %d out of range", month)
	}

	days, err := p.peaks.PeakDays(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("computing peak days: %w", err)
	}
	reminders, err := p.reminders.ListReminders()
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}

	out := Month{}
	for _, d := range days {
		out[d.Day()] = append(out[d.Day()], ScheduledEvent{
			ID:         "peak-" + d.Format(reminder.DateLayout),
			Message:    PeakMessage,
			Time:       p.window.Label(),
			Priority:   reminder.PriorityUrgent,
			Kind:       KindPeak,
			DayOfMonth: d.Day(),
		})
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, p.loc)
	var occurrences []ScheduledEvent
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		for _, r := range reminders {
			if !reminder.OccursOn(d, r) {
				continue
			}
			occurrences = append(occurrences, ScheduledEvent{
				ID:         r.ID,
				Message:    r.Message,
				Time:       r.Time,
				Priority:   r.Priority,
				Kind:       KindReminder,
				DayOfMonth: d.Day(),
				Completed:  r.Completed,
			})
		}
	}
	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].DayOfMonth != occurrences[j].DayOfMonth {
			return occurrences[i].DayOfMonth < occurrences[j].DayOfMonth
		}
		return occurrences[i].Time < occurrences[j].Time
	})
	for _, ev := range occurrences {
		out[ev.DayOfMonth] = append(out[ev.DayOfMonth], ev)
	}
	return out, nil
}

// Days returns the days of m that have events, ascending.
func (m Month) Days() []int {
	days := make([]int, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}
