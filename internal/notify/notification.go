// Package notify owns the single active notification: it decides when a
// reminder or peak-window alert fires, resolves button actions, and re-arms
// snoozed alerts.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sgd-notifier/sgdn/internal/peak"
	"github.com/sgd-notifier/sgdn/internal/reminder"
)

// Title is shown on every notification.
const Title = "SGD Alert"

// DefaultSnooze is the delay before a snoozed or unanswered alert re-fires.
const DefaultSnooze = 5 * time.Minute

// ButtonNone reports that the user closed the notification without
// pressing a button.
const ButtonNone = -1

// ErrUnknownKind is returned when decoding a notification of an unknown kind.
var ErrUnknownKind = errors.New("unknown notification kind")

type Kind string

const (
	KindReminder Kind = "reminder"
	KindPeak     Kind = "peak"
)

func (k Kind) Validate() error {
	switch k {
	case KindReminder, KindPeak:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// Action is the resolution chosen for an active notification.
type Action string

const (
	ActionComplete Action = "complete"
	ActionDisable  Action = "disable"
	ActionSnooze   Action = "snooze"
	ActionClose    Action = "close"
	ActionDismiss  Action = "dismiss"
)

var (
	reminderButtons = []string{"Complete", "Disable for today", "Snooze 5 min"}
	peakButtons     = []string{"Close", "Snooze 5 min"}
)

// Buttons returns the ordered button labels for kind. Native notifications
// and page overlays both use this order, so an index means the same thing
// everywhere.
func Buttons(kind Kind) []string {
	switch kind {
	case KindReminder:
		return append([]string(nil), reminderButtons...)
	case KindPeak:
		return append([]string(nil), peakButtons...)
	}
	return nil
}

// ActionFor maps a button index of kind to an action. ButtonNone and any
// index without a button dismiss.
func ActionFor(kind Kind, button int) Action {
	switch kind {
	case KindReminder:
		switch button {
		case 0:
			return ActionComplete
		case 1:
			return ActionDisable
		case 2:
			return ActionSnooze
		}
	case KindPeak:
		switch button {
		case 0:
			return ActionClose
		case 1:
			return ActionSnooze
		}
	}
	return ActionDismiss
}

// Notification is the payload of the active notification.
type Notification struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Kind       Kind              `json:"kind"`
	ReminderID string            `json:"reminderId,omitempty"`
	Priority   reminder.Priority `json:"priority"`
	Edge       peak.Edge         `json:"edge,omitempty"`
	Buttons    []string          `json:"buttons"`
	FiredAt    time.Time         `json:"firedAt"`
}

func newID() string {
	return "sgd_" + uuid.NewString()
}

// ForReminder builds the notification for a due reminder.
func ForReminder(r reminder.Reminder) Notification {
	prio := r.Priority
	if prio == "" {
		prio = reminder.PriorityNormal
	}
	return Notification{
		ID:         newID(),
		Title:      Title,
		Message:    r.Message,
		Kind:       KindReminder,
		ReminderID: r.ID,
		Priority:   prio,
		Buttons:    Buttons(KindReminder),
	}
}

// ForPeak builds the notification announcing a peak window edge.
func ForPeak(edge peak.Edge, w peak.Window) Notification {
	msg := fmt.Sprintf("Peak hours started (%s).", w.Label())
	if edge == peak.EdgeEnd {
		msg = fmt.Sprintf("Peak hours ended (%s).", w.Label())
	}
	return Notification{
		ID:       newID(),
		Title:    Title,
		Message:  msg,
		Kind:     KindPeak,
		Priority: reminder.PriorityUrgent,
		Edge:     edge,
		Buttons:  Buttons(KindPeak),
	}
}
