package storage

import (
	"time"

	"github.com/sgd-notifier/sgdn/internal/peak"
)

// ReplaceHolidays stores the full holiday list for year, replacing any
// previous list, and records the year as fetched.
func (s *Store) ReplaceHolidays(year int, dates []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM holidays WHERE year = ?`, year); err != nil {
		return err
	}
	for _, d := range dates {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO holidays (year, date) VALUES (?, ?)`, year, d); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`
		INSERT INTO holiday_years (year, fetched_at) VALUES (?, ?)
		ON CONFLICT(year) DO UPDATE SET fetched_at = excluded.fetched_at`,
		year, formatTime(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// HolidaysForYear returns the stored dates for year. ok is false when the
// year has never been fetched.
func (s *Store) HolidaysForYear(year int) (dates []string, ok bool, err error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM holiday_years WHERE year = ?`, year).Scan(&n); err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}

	rows, err := s.db.Query(`SELECT date FROM holidays WHERE year = ? ORDER BY date ASC`, year)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	dates = []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, false, err
		}
		dates = append(dates, d)
	}
	return dates, true, rows.Err()
}

// HolidayIndex returns every fetched year with its holiday dates.
func (s *Store) HolidayIndex() (peak.HolidayIndex, error) {
	idx := peak.HolidayIndex{}

	years, err := s.db.Query(`SELECT year FROM holiday_years`)
	if err != nil {
		return nil, err
	}
	for years.Next() {
		var y int
		if err := years.Scan(&y); err != nil {
			years.Close()
			return nil, err
		}
		idx[y] = []string{}
	}
	years.Close()
	if err := years.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT year, date FROM holidays ORDER BY year ASC, date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var y int
		var d string
		if err := rows.Scan(&y, &d); err != nil {
			return nil, err
		}
		idx[y] = append(idx[y], d)
	}
	return idx, rows.Err()
}

// HasHolidays reports whether any year has been fetched.
func (s *Store) HasHolidays() (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM holiday_years`).Scan(&n)
	return n > 0, err
}
