package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Alarm is a durable named timer. A zero Period means one-shot.
type Alarm struct {
	Name        string
	PayloadJSON string
	RunAfter    time.Time
	Period      time.Duration
	CreatedAt   time.Time
}

// Repeating reports whether the alarm re-arms after firing.
func (a Alarm) Repeating() bool {
	return a.Period > 0
}
