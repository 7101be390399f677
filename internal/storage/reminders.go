package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/sgd-notifier/sgdn/internal/reminder"
)

const reminderColumns = `id, message, start_date, time, frequency, priority, completed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (reminder.Reminder, error) {
	var r reminder.Reminder
	var freq, prio, createdAt, updatedAt string
	var completed int
	if err := row.Scan(&r.ID, &r.Message, &r.StartDate, &r.Time, &freq, &prio, &completed, &createdAt, &updatedAt); err != nil {
		return reminder.Reminder{}, err
	}
	r.Frequency = reminder.Frequency(freq)
	r.Priority = reminder.Priority(prio)
	r.Completed = completed != 0

	var err error
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return reminder.Reminder{}, err
	}
	if r.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return reminder.Reminder{}, err
	}
	return r, nil
}

// SaveReminder inserts a new reminder and returns it with timestamps set.
func (s *Store) SaveReminder(r reminder.Reminder) (reminder.Reminder, error) {
	now := time.Now().UTC().Truncate(time.Second)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Priority == "" {
		r.Priority = reminder.PriorityNormal
	}
	_, err := s.db.Exec(`INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Message, r.StartDate, r.Time, string(r.Frequency), string(r.Priority),
		boolInt(r.Completed), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return reminder.Reminder{}, err
	}
	return r, nil
}

func (s *Store) GetReminder(id string) (reminder.Reminder, error) {
	r, err := scanReminder(s.db.QueryRow(`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return reminder.Reminder{}, ErrNotFound
	}
	return r, err
}

// ListReminders returns all reminders ordered by time of day, then creation.
func (s *Store) ListReminders() ([]reminder.Reminder, error) {
	rows, err := s.db.Query(`SELECT ` + reminderColumns + ` FROM reminders ORDER BY time ASC, created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateReminder overwrites every mutable field of an existing reminder.
func (s *Store) UpdateReminder(r reminder.Reminder) (reminder.Reminder, error) {
	r.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	err := s.execOne(`UPDATE reminders
		SET message = ?, start_date = ?, time = ?, frequency = ?, priority = ?, completed = ?, updated_at = ?
		WHERE id = ?`,
		r.Message, r.StartDate, r.Time, string(r.Frequency), string(r.Priority),
		boolInt(r.Completed), formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return reminder.Reminder{}, err
	}
	return s.GetReminder(r.ID)
}

func (s *Store) CompleteReminder(id string) error {
	return s.execOne(`UPDATE reminders SET completed = 1, updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
}

func (s *Store) DeleteReminder(id string) error {
	return s.execOne(`DELETE FROM reminders WHERE id = ?`, id)
}
