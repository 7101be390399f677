package peak

import "time"

// Edge identifies which boundary of the daily peak window an alert belongs to.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// Window is the daily time-of-day sub-window, as "HH:MM" strings.
type Window struct {
	Start string
	End   string
}

// DefaultWindow is 13:30-15:00.
var DefaultWindow = Window{Start: "13:30", End: "15:00"}

// EdgeAt returns the boundary that begins at clock ("HH:MM"), if any.
func (w Window) EdgeAt(clock string) (Edge, bool) {
	switch clock {
	case w.Start:
		return EdgeStart, true
	case w.End:
		return EdgeEnd, true
	}
	return "", false
}

// Label is the human-readable window, e.g. "13:30 - 15:00".
func (w Window) Label() string {
	return w.Start + " - " + w.End
}

// Status records which peak alerts were already delivered on Date.
type Status struct {
	Date          string `json:"date"`
	NotifiedStart bool   `json:"notifiedStart"`
	NotifiedEnd   bool   `json:"notifiedEnd"`
}

// StatusFor returns prev when it belongs to date, or a fresh record for date
// otherwise. Records are replaced, never carried over between days.
func StatusFor(prev Status, date time.Time) Status {
	key := date.Format("2006-01-02")
	if prev.Date == key {
		return prev
	}
	return Status{Date: key}
}

// Notified reports whether the alert for edge was already delivered.
func (s Status) Notified(edge Edge) bool {
	switch edge {
	case EdgeStart:
		return s.NotifiedStart
	case EdgeEnd:
		return s.NotifiedEnd
	}
	return false
}

// Mark returns a copy of s with the flag for edge set.
func (s Status) Mark(edge Edge) Status {
	switch edge {
	case EdgeStart:
		s.NotifiedStart = true
	case EdgeEnd:
		s.NotifiedEnd = true
	}
	return s
}
