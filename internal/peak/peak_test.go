package peak

import (
	"context"
	"errors"
	"testing"
	"time"
)

func dates(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format("2006-01-02")
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIsBusinessDay(t *testing.T) {
	idx := HolidayIndex{2024: {"2024-12-25"}}
	cases := map[string]bool{
		"2024-12-21": false, // Saturday
		"2024-12-22": false, // Sunday
		"2024-12-23": true,
		"2024-12-25": false, // holiday
		"2025-12-25": true,  // year absent from index: fail open
	}
	for s, want := range cases {
		d, _ := time.Parse("2006-01-02", s)
		if got := IsBusinessDay(d, idx); got != want {
			t.Errorf("IsBusinessDay(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestDays_HolidayOnFirstShiftsWindow(t *testing.T) {
	// 2024-01-01 is a Monday.
	idx := HolidayIndex{2024: {"2024-01-01"}}
	got := dates(Days(2024, time.January, time.UTC, idx, 5))
	want := []string{
		"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08",
		"2024-01-25", "2024-01-26", "2024-01-29", "2024-01-30", "2024-01-31",
	}
	if !equal(got, want) {
		t.Errorf("Days = %v, want %v", got, want)
	}
}

func TestDays_Properties(t *testing.T) {
	idx := HolidayIndex{
		2025: {"2025-01-01", "2025-03-03", "2025-03-04", "2025-04-18", "2025-04-21", "2025-05-01", "2025-11-20", "2025-12-25"},
	}
	for m := time.January; m <= time.December; m++ {
		days := Days(2025, m, time.UTC, idx, 5)
		if len(days) > 10 {
			t.Errorf("%s: %d days, want <= 10", m, len(days))
		}
		for i, d := range days {
			if d.Year() != 2025 || d.Month() != m {
				t.Errorf("%s: %s outside month", m, d.Format("2006-01-02"))
			}
			if !IsBusinessDay(d, idx) {
				t.Errorf("%s: %s is not a business day", m, d.Format("2006-01-02"))
			}
			if i > 0 && !d.After(days[i-1]) {
				t.Errorf("%s: not strictly ascending at %d: %v", m, i, dates(days))
			}
		}
	}
}

func TestDays_ShortMonthIsDeduplicated(t *testing.T) {
	// Leave only six business days in February 2024.
	var hols []string
	for d := 1; d <= 29; d++ {
		day := time.Date(2024, time.February, d, 0, 0, 0, 0, time.UTC)
		if d > 6 && d < 26 {
			hols = append(hols, day.Format("2006-01-02"))
		}
	}
	idx := HolidayIndex{2024: hols}

	got := dates(Days(2024, time.February, time.UTC, idx, 5))
	want := []string{"2024-02-01", "2024-02-02", "2024-02-05", "2024-02-06", "2024-02-26", "2024-02-27", "2024-02-28", "2024-02-29"}
	if !equal(got, want) {
		t.Errorf("Days = %v, want %v", got, want)
	}

	// A month with only three business days returns each exactly once.
	var all []string
	for d := 1; d <= 29; d++ {
		if d == 5 || d == 6 || d == 7 {
			continue
		}
		all = append(all, time.Date(2024, time.February, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
	}
	got = dates(Days(2024, time.February, time.UTC, HolidayIndex{2024: all}, 5))
	want = []string{"2024-02-05", "2024-02-06", "2024-02-07"}
	if !equal(got, want) {
		t.Errorf("Days = %v, want %v", got, want)
	}
}

type fakeHolidays struct {
	byYear map[int][]string
	err    error
	calls  []int
}

func (f *fakeHolidays) EnsureHolidays(_ context.Context, year int) ([]string, error) {
	f.calls = append(f.calls, year)
	if f.err != nil {
		return nil, f.err
	}
	return f.byYear[year], nil
}

func TestCalculator_IsPeakDay(t *testing.T) {
	h := &fakeHolidays{byYear: map[int][]string{2024: {"2024-01-01"}}}
	c := NewCalculator(h, 0, time.UTC)

	ok, err := c.IsPeakDay(context.Background(), time.Date(2024, 1, 2, 13, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("IsPeakDay: %v", err)
	}
	if !ok {
		t.Error("2024-01-02 should be a peak day")
	}

	ok, _ = c.IsPeakDay(context.Background(), time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC))
	if ok {
		t.Error("2024-01-15 should not be a peak day")
	}
	ok, _ = c.IsPeakDay(context.Background(), time.Date(2024, 1, 1, 13, 30, 0, 0, time.UTC))
	if ok {
		t.Error("holiday should not be a peak day")
	}
	if len(h.calls) == 0 || h.calls[0] != 2024 {
		t.Errorf("holidays requested for %v, want 2024", h.calls)
	}
}

func TestCalculator_PropagatesErrorsAndRejectsBadMonth(t *testing.T) {
	c := NewCalculator(&fakeHolidays{err: errors.New("boom")}, 5, time.UTC)
	if _, err := c.PeakDays(context.Background(), 2024, time.March); err == nil {
		t.Error("expected error from holiday source")
	}
	if _, err := c.PeakDays(context.Background(), 2024, 13); err == nil {
		t.Error("expected error for month 13")
	}
}
