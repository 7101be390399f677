// Package reminder defines user reminders and the recurrence rules that decide
// on which calendar days a reminder fires.
package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layouts used for the string-encoded date and time-of-day fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	ErrInvalid          = errors.New("invalid reminder")
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrUnknownPriority  = errors.New("unknown priority")
)

type Frequency string

const (
	OnceToday Frequency = "once_today"
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
)

func (f Frequency) Validate() error {
	switch f {
	case OnceToday, Daily, Weekly, Biweekly, Monthly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, string(f))
	}
}

type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityImportant Priority = "important"
	PriorityUrgent    Priority = "urgent"
)

func (p Priority) Validate() error {
	switch p {
	case PriorityNormal, PriorityImportant, PriorityUrgent:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPriority, string(p))
	}
}

// Reminder is a user-defined one-time or recurring alert. ID is stable across
// edits.
type Reminder struct {
	ID        string    `json:"id"`
	Message   string    `json:"message" validate:"required,max=500"`
	StartDate string    `json:"startDate" validate:"required,datetime=2006-01-02"`
	Time      string    `json:"time" validate:"required,hhmm"`
	Frequency Frequency `json:"frequency" validate:"required,oneof=once_today daily weekly biweekly monthly"`
	Priority  Priority  `json:"priority" validate:"omitempty,oneof=normal important urgent"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultMessage is used when a reminder is created without a message.
const DefaultMessage = "Daily SGD reminder"

// New builds a validated reminder with a fresh ID and normal priority when
// none is given.
func New(message, startDate, at string, freq Frequency, prio Priority) (Reminder, error) {
	if prio == "" {
		prio = PriorityNormal
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultMessage
	}
	r := Reminder{
		ID:        uuid.New().String(),
		Message:   message,
		StartDate: startDate,
		Time:      at,
		Frequency: freq,
		Priority:  prio,
	}
	if err := r.Validate(); err != nil {
		return Reminder{}, err
	}
	return r, nil
}

// Update holds optional fields for a partial edit.
type Update struct {
	Message   *string    `json:"message,omitempty"`
	StartDate *string    `json:"startDate,omitempty"`
	Time      *string    `json:"time,omitempty"`
	Frequency *Frequency `json:"frequency,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}

// Apply returns a copy of r with the non-nil fields of u applied. The result is
// validated; the ID never changes.
func (u Update) Apply(r Reminder) (Reminder, error) {
	if u.Message != nil {
		r.Message = strings.TrimSpace(*u.Message)
	}
	if u.StartDate != nil {
		r.StartDate = *u.StartDate
	}
	if u.Time != nil {
		r.Time = *u.Time
	}
	if u.Frequency != nil {
		r.Frequency = *u.Frequency
	}
	if u.Priority != nil {
		r.Priority = *u.Priority
	}
	if u.Completed != nil {
		r.Completed = *u.Completed
	}
	if err := r.Validate(); err != nil {
		return Reminder{}, err
	}
	return r, nil
}
