package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sgd-notifier/sgdn/internal/reminder"
	"github.com/sgd-notifier/sgdn/internal/storage"
)

// CreateReminderRequest is the body of POST /reminders.
type CreateReminderRequest struct {
	Message   string             `json:"message"`
	StartDate string             `json:"startDate"`
	Time      string             `json:"time"`
	Frequency reminder.Frequency `json:"frequency"`
	Priority  reminder.Priority  `json:"priority"`
}

func isInvalid(err error) bool {
	return errors.Is(err, reminder.ErrInvalid) ||
		errors.Is(err, reminder.ErrUnknownFrequency) ||
		errors.Is(err, reminder.ErrUnknownPriority)
}

func invalidOrInternal(w http.ResponseWriter, err error) {
	if isInvalid(err) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

func handleListReminders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.ListReminders()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list reminders: %v", err)
			return
		}
		if list == nil {
			list = []reminder.Reminder{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleCreateReminder(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CreateReminderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		rem, err := reminder.New(req.Message, req.StartDate, req.Time, req.Frequency, req.Priority)
		if err != nil {
			invalidOrInternal(w, err)
			return
		}
		saved, err := deps.Store.SaveReminder(rem)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save reminder: %v", err)
			return
		}
		remindersChanged(deps)
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleGetReminder(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rem, err := deps.Store.GetReminder(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "reminder not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get reminder: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, rem)
	}
}

func handleUpdateReminder(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var u reminder.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		cur, err := deps.Store.GetReminder(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "reminder not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get reminder: %v", err)
			return
		}

		next, err := u.Apply(cur)
		if err != nil {
			invalidOrInternal(w, err)
			return
		}
		saved, err := deps.Store.UpdateReminder(next)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "reminder not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update reminder: %v", err)
			return
		}
		remindersChanged(deps)
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleDeleteReminder(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteReminder(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "reminder not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete reminder: %v", err)
			return
		}
		remindersChanged(deps)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleCompleteReminder(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.CompleteReminder(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "reminder not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to complete reminder: %v", err)
			return
		}
		remindersChanged(deps)
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	}
}

func remindersChanged(deps Deps) {
	if deps.Broadcaster != nil {
		deps.Broadcaster.RemindersUpdated()
	}
}
