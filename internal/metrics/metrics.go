// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sgdn_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Notification Metrics
	NotificationsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_notifications_fired_total",
			Help: "Notifications that became active",
		},
		[]string{"kind"}, // reminder, peak
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_notifications_suppressed_total",
			Help: "Fire attempts dropped without showing a notification",
		},
		[]string{"kind", "reason"}, // active, stale_refire
	)

	NotificationsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_notifications_resolved_total",
			Help: "Notifications resolved by a user action",
		},
		[]string{"kind", "action"}, // complete, disable, snooze, close, dismiss
	)

	// Holiday Metrics
	HolidayFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_holiday_fetches_total",
			Help: "Per-year holiday list fetches",
		},
		[]string{"result"}, // ok, error
	)

	// Scheduler Metrics
	AlarmsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_alarms_fired_total",
			Help: "Alarms dispatched to a handler",
		},
		[]string{"handler"},
	)

	// Page context Metrics
	TabPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sgdn_tab_pushes_total",
			Help: "Push messages delivered to page contexts",
		},
		[]string{"type"},
	)

	TabClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sgdn_tab_clients",
			Help: "Connected page contexts",
		},
	)
)

// Middleware records request count and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
