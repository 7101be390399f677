// Package api exposes the daemon over HTTP: the page-context message
// contract, reminder management, and the push stream for open page contexts.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sgd-notifier/sgdn/internal/calendar"
	"github.com/sgd-notifier/sgdn/internal/holiday"
	"github.com/sgd-notifier/sgdn/internal/metrics"
	"github.com/sgd-notifier/sgdn/internal/notify"
	"github.com/sgd-notifier/sgdn/internal/settings"
	"github.com/sgd-notifier/sgdn/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Notifications is the notification coordinator as seen by the API.
type Notifications interface {
	Active(ctx context.Context) (*notify.Notification, error)
	HandleAction(ctx context.Context, id string, button int) (notify.Action, error)
}

// Events projects reminders and peak days onto a month.
type Events interface {
	EventsForMonth(ctx context.Context, year int, month time.Month) (calendar.Month, error)
}

// PeakDays lists the peak days of a month.
type PeakDays interface {
	PeakDays(ctx context.Context, year int, month time.Month) ([]time.Time, error)
}

// Preferences reads and updates sound settings.
type Preferences interface {
	Get() (settings.Settings, error)
	Apply(u settings.Update) (settings.Settings, error)
}

// HolidayRefresher refetches the holiday window.
type HolidayRefresher interface {
	Refresh(ctx context.Context) (holiday.RefreshResult, error)
}

// Broadcaster pushes reminder changes to open page contexts.
type Broadcaster interface {
	RemindersUpdated()
}

type Deps struct {
	Store         *storage.Store
	Notifications Notifications
	Events        Events
	Peaks         PeakDays
	Preferences   Preferences
	Holidays      HolidayRefresher
	Broadcaster   Broadcaster
	Push          http.Handler // WebSocket push stream; optional
	Location      *time.Location
	Token         string
	Now           func() time.Time
}

// NewHandler builds the full HTTP surface. /health and /metrics are open;
// everything else requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/messages", handleMessage(deps))
		if deps.Push != nil {
			r.Handle("/ws", deps.Push)
		}

		r.Get("/reminders", handleListReminders(deps))
		r.Post("/reminders", handleCreateReminder(deps))
		r.Get("/reminders/{id}", handleGetReminder(deps))
		r.Put("/reminders/{id}", handleUpdateReminder(deps))
		r.Delete("/reminders/{id}", handleDeleteReminder(deps))
		r.Post("/reminders/{id}/complete", handleCompleteReminder(deps))

		r.Get("/peak-days", handlePeakDays(deps))
		r.Get("/settings", handleGetSettings(deps))
		r.Patch("/settings", handlePatchSettings(deps))
		r.Get("/holidays", handleListHolidays(deps))
		r.Post("/holidays/refresh", handleRefreshHolidays(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			if err := deps.Store.Ping(); err != nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "storage unavailable: %v", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
