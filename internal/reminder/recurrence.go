package reminder

import "time"

// OccursOn reports whether r fires on the calendar day of date. The start date
// is interpreted in date's location. Dates before the start never match.
//
// Monthly reminders match on the same day-of-month only; a reminder starting
// on the 31st never fires in shorter months.
func OccursOn(date time.Time, r Reminder) bool {
	start, err := time.ParseInLocation(DateLayout, r.StartDate, date.Location())
	if err != nil {
		return false
	}
	day := StartOfDay(date)
	if day.Before(start) {
		return false
	}
	diff := DaysBetween(start, day)

	switch r.Frequency {
	case OnceToday:
		return diff == 0
	case Daily:
		return true
	case Weekly:
		return day.Weekday() == start.Weekday()
	case Biweekly:
		return diff%14 == 0
	case Monthly:
		return day.Day() == start.Day()
	default:
		return false
	}
}

// IsDue reports whether r should fire at the minute of now.
func (r Reminder) IsDue(now time.Time) bool {
	return !r.Completed && r.Time == now.Format(TimeLayout) && OccursOn(now, r)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from a to b, ignoring DST shifts.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
