package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const alarmColumns = `name, payload_json, run_after, period_seconds, created_at`

func scanAlarm(row rowScanner) (Alarm, error) {
	var a Alarm
	var runAfter, createdAt string
	var period int64
	if err := row.Scan(&a.Name, &a.PayloadJSON, &runAfter, &period, &createdAt); err != nil {
		return Alarm{}, err
	}
	a.Period = time.Duration(period) * time.Second

	var err error
	if a.RunAfter, err = parseTime("run_after", runAfter); err != nil {
		return Alarm{}, fmt.Errorf("alarm %s: %w", a.Name, err)
	}
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Alarm{}, fmt.Errorf("alarm %s: %w", a.Name, err)
	}
	return a, nil
}

// UpsertAlarm creates the alarm or replaces an existing one of the same name.
func (s *Store) UpsertAlarm(a Alarm) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO alarms (`+alarmColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload_json = excluded.payload_json,
			run_after = excluded.run_after,
			period_seconds = excluded.period_seconds,
			created_at = excluded.created_at`,
		a.Name, a.PayloadJSON, formatTime(a.RunAfter), int64(a.Period/time.Second), formatTime(a.CreatedAt),
	)
	return err
}

// ClearAlarm removes the named alarm and reports whether it existed.
func (s *Store) ClearAlarm(name string) (bool, error) {
	err := s.execOne(`DELETE FROM alarms WHERE name = ?`, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetAlarm returns the named alarm.
func (s *Store) GetAlarm(name string) (Alarm, error) {
	a, err := scanAlarm(s.db.QueryRow(`SELECT `+alarmColumns+` FROM alarms WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Alarm{}, ErrNotFound
	}
	return a, err
}

// ClaimDueAlarm takes the earliest alarm whose run_after is not after now.
// One-shot alarms are deleted. Repeating alarms move to the first slot of
// their schedule after now, keeping the phase of run_after; slots missed
// while the claim was late collapse into this one. It returns nil when
// nothing is due.
func (s *Store) ClaimDueAlarm(now time.Time) (*Alarm, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAlarm(tx.QueryRow(`SELECT `+alarmColumns+` FROM alarms
		WHERE run_after <= ?
		ORDER BY run_after ASC, name ASC
		LIMIT 1`, formatTime(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting due alarm: %w", err)
	}

	if a.Repeating() {
		_, err = tx.Exec(`UPDATE alarms SET run_after = ? WHERE name = ?`, formatTime(nextRun(a, now)), a.Name)
	} else {
		_, err = tx.Exec(`DELETE FROM alarms WHERE name = ?`, a.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("advancing alarm %s: %w", a.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return &a, nil
}

func nextRun(a Alarm, now time.Time) time.Time {
	next := a.RunAfter.Add(a.Period)
	if next.After(now) {
		return next
	}
	missed := now.Sub(a.RunAfter) / a.Period
	return a.RunAfter.Add((missed + 1) * a.Period)
}

// ListAlarms returns alarms whose name starts with prefix, earliest first.
func (s *Store) ListAlarms(prefix string) ([]Alarm, error) {
	rows, err := s.db.Query(`SELECT `+alarmColumns+` FROM alarms
		WHERE substr(name, 1, length(?)) = ?
		ORDER BY run_after ASC, name ASC`, prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
