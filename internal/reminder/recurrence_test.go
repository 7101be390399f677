package reminder

import (
	"testing"
	"time"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return d
}

func TestOccursOn_Daily(t *testing.T) {
	r := Reminder{StartDate: "2024-01-10", Frequency: Daily}
	start := day(t, "2024-01-10")

	for i := -5; i < 400; i++ {
		d := start.AddDate(0, 0, i).Add(9 * time.Hour)
		want := i >= 0
		if got := OccursOn(d, r); got != want {
			t.Fatalf("OccursOn(%s) = %v, want %v", d.Format(DateLayout), got, want)
		}
	}
}

func TestOccursOn_Weekly(t *testing.T) {
	r := Reminder{StartDate: "2024-03-06", Frequency: Weekly} // a Wednesday
	start := day(t, "2024-03-06")

	for i := -14; i < 120; i++ {
		d := start.AddDate(0, 0, i)
		want := i >= 0 && d.Weekday() == time.Wednesday
		if got := OccursOn(d, r); got != want {
			t.Fatalf("OccursOn(%s) = %v, want %v", d.Format(DateLayout), got, want)
		}
	}
}

func TestOccursOn_OnceToday(t *testing.T) {
	r := Reminder{StartDate: "2024-05-02", Frequency: OnceToday}

	if !OccursOn(day(t, "2024-05-02").Add(23*time.Hour), r) {
		t.Error("expected match on start date")
	}
	if OccursOn(day(t, "2024-05-03"), r) {
		t.Error("unexpected match on the following day")
	}
	if OccursOn(day(t, "2024-05-01"), r) {
		t.Error("unexpected match before start")
	}
}

func TestOccursOn_Biweekly(t *testing.T) {
	r := Reminder{StartDate: "2024-01-01", Frequency: Biweekly}

	cases := map[string]bool{
		"2024-01-01": true,
		"2024-01-08": false,
		"2024-01-15": true,
		"2024-01-29": true,
		"2024-01-30": false,
		"2024-03-25": true, // 84 days
	}
	for s, want := range cases {
		if got := OccursOn(day(t, s), r); got != want {
			t.Errorf("OccursOn(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestOccursOn_MonthlyDay31NeverClamps(t *testing.T) {
	r := Reminder{StartDate: "2024-01-31", Frequency: Monthly}

	if !OccursOn(day(t, "2024-03-31"), r) {
		t.Error("expected match on March 31")
	}
	for _, s := range []string{"2024-02-29", "2024-04-30", "2024-06-30"} {
		if OccursOn(day(t, s), r) {
			t.Errorf("OccursOn(%s) = true, want false (no clamping)", s)
		}
	}
}

func TestOccursOn_InvalidInputs(t *testing.T) {
	d := day(t, "2024-01-01")
	if OccursOn(d, Reminder{StartDate: "not-a-date", Frequency: Daily}) {
		t.Error("unparseable start date should never match")
	}
	if OccursOn(d, Reminder{StartDate: "2024-01-01", Frequency: "hourly"}) {
		t.Error("unknown frequency should never match")
	}
}

func TestIsDue(t *testing.T) {
	r := Reminder{StartDate: "2024-01-01", Time: "09:00", Frequency: Daily}
	at := time.Date(2024, 3, 15, 9, 0, 30, 0, time.Local)

	if !r.IsDue(at) {
		t.Error("expected due at 09:00")
	}
	if r.IsDue(at.Add(time.Minute)) {
		t.Error("unexpected due at 09:01")
	}
	r.Completed = true
	if r.IsDue(at) {
		t.Error("completed reminder must never be due")
	}
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	a := time.Date(2024, 3, 9, 0, 0, 0, 0, loc)
	b := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	if got := DaysBetween(a, b); got != 2 {
		t.Errorf("DaysBetween = %d, want 2", got)
	}
}
