// Package peak computes the monthly peak days (the first and last business
// days of a month) and tracks the per-day peak-window notification flags.
package peak

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// DefaultDaysPerEdge is how many business days are taken from each end of the month.
const DefaultDaysPerEdge = 5

// HolidayIndex maps a year to its holiday dates in "2006-01-02" form.
type HolidayIndex map[int][]string

// IsBusinessDay reports whether date is a weekday that is not listed in
// idx for its year. A missing year means no known holidays.
func IsBusinessDay(date time.Time, idx HolidayIndex) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !slices.Contains(idx[date.Year()], date.Format("2006-01-02"))
}

// Days returns up to perEdge business days from the start of the month
// followed by up to perEdge from its end, ascending and without duplicates.
// Months with fewer than 2*perEdge business days yield overlapping windows,
// which are merged.
func Days(year int, month time.Month, loc *time.Location, idx HolidayIndex, perEdge int) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)

	var head []time.Time
	for d := first; len(head) < perEdge && d.Month() == month; d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d, idx) {
			head = append(head, d)
		}
	}

	var tail []time.Time
	for d := last; len(tail) < perEdge && d.Month() == month; d = d.AddDate(0, 0, -1) {
		if IsBusinessDay(d, idx) {
			tail = append(tail, d)
		}
	}
	slices.Reverse(tail)

	days := head
	for _, d := range tail {
		if len(head) > 0 && !d.After(head[len(head)-1]) {
			continue
		}
		days = append(days, d)
	}
	return days
}

// Holidays supplies holiday dates for a year, fetching them when missing.
type Holidays interface {
	EnsureHolidays(ctx context.Context, year int) ([]string, error)
}

// Calculator resolves peak days against a lazily populated holiday cache.
type Calculator struct {
	holidays Holidays
	perEdge  int
	loc      *time.Location
}

// NewCalculator returns a Calculator. perEdge <= 0 selects DefaultDaysPerEdge
// and a nil location selects time.Local.
func NewCalculator(h Holidays, perEdge int, loc *time.Location) *Calculator {
	if perEdge <= 0 {
		perEdge = DefaultDaysPerEdge
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{holidays: h, perEdge: perEdge, loc: loc}
}

// PeakDays returns the peak days of the given month.
func (c *Calculator) PeakDays(ctx context.Context, year int, month time.Month) ([]time.Time, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("month %d out of range", month)
	}
	dates, err := c.holidays.EnsureHolidays(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("loading holidays for %d: %w", year, err)
	}
	return Days(year, month, c.loc, HolidayIndex{year: dates}, c.perEdge), nil
}

// IsPeakDay reports whether the calendar day of date is a peak day.
func (c *Calculator) IsPeakDay(ctx context.Context, date time.Time) (bool, error) {
	date = date.In(c.loc)
	days, err := c.PeakDays(ctx, date.Year(), date.Month())
	if err != nil {
		return false, err
	}
	y, m, d := date.Date()
	for _, pd := range days {
		py, pm, pdd := pd.Date()
		if py == y && pm == m && pdd == d {
			return true, nil
		}
	}
	return false, nil
}

// Location is the zone peak days are computed in.
func (c *Calculator) Location() *time.Location {
	return c.loc
}
