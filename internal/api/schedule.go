package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sgd-notifier/sgdn/internal/reminder"
	"github.com/sgd-notifier/sgdn/internal/settings"
)

// PeakDaysResponse is the body of GET /peak-days.
type PeakDaysResponse struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Days  []string `json:"days"`
}

// HolidaysResponse is the body of GET /holidays. Cached is false when the
// year has never been fetched successfully.
type HolidaysResponse struct {
	Year   int      `json:"year"`
	Cached bool     `json:"cached"`
	Dates  []string `json:"dates"`
}

// parseIntParam reads an integer query parameter, falling back to def when
// absent. ok is false when the value is present but malformed.
func parseIntParam(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func handlePeakDays(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := deps.Now().In(deps.Location)
		year, okY := parseIntParam(r, "year", now.Year())
		month, okM := parseIntParam(r, "month", int(now.Month()))
		if !okY || !okM || year <= 0 || month < 1 || month > 12 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "year and month (1-12) must be integers")
			return
		}

		days, err := deps.Peaks.PeakDays(r.Context(), year, time.Month(month))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute peak days: %v", err)
			return
		}
		resp := PeakDaysResponse{Year: year, Month: month, Days: make([]string, len(days))}
		for i, d := range days {
			resp.Days[i] = d.Format(reminder.DateLayout)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Preferences.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get settings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handlePatchSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var u settings.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		s, err := deps.Preferences.Apply(u)
		if errors.Is(err, settings.ErrInvalid) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update settings: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleListHolidays(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, ok := parseIntParam(r, "year", deps.Now().In(deps.Location).Year())
		if !ok || year <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "year must be a positive integer")
			return
		}
		dates, cached, err := deps.Store.HolidaysForYear(year)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read holidays: %v", err)
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, HolidaysResponse{Year: year, Cached: cached, Dates: dates})
	}
}

func handleRefreshHolidays(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Holidays.Refresh(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "holiday refresh failed: %v", err)
			return
		}
		if res.Fetched == nil {
			res.Fetched = []int{}
		}
		if res.Failed == nil {
			res.Failed = []int{}
		}
		writeJSON(w, http.StatusOK, res)
	}
}
