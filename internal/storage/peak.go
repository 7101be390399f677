package storage

import (
	"database/sql"
	"errors"

	"github.com/sgd-notifier/sgdn/internal/peak"
)

// GetPeakStatus returns the flags recorded for date ("2006-01-02"). A day
// with no record yields a fresh status with both flags unset.
func (s *Store) GetPeakStatus(date string) (peak.Status, error) {
	st := peak.Status{Date: date}
	var start, end int
	err := s.db.QueryRow(`SELECT notified_start, notified_end FROM peak_status WHERE date = ?`, date).Scan(&start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return peak.Status{}, err
	}
	st.NotifiedStart = start != 0
	st.NotifiedEnd = end != 0
	return st, nil
}

// SavePeakStatus replaces the record for st.Date and drops records of other
// days, which are never read again.
func (s *Store) SavePeakStatus(st peak.Status) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM peak_status WHERE date <> ?`, st.Date); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO peak_status (date, notified_start, notified_end) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET notified_start = excluded.notified_start, notified_end = excluded.notified_end`,
		st.Date, boolInt(st.NotifiedStart), boolInt(st.NotifiedEnd),
	); err != nil {
		return err
	}
	return tx.Commit()
}
