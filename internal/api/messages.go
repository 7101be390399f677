package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Request kinds accepted by POST /messages.
const (
	MsgGetEventsForMonth       = "get_events_for_month"
	MsgNotificationAction      = "notification_action"
	MsgQueryActiveNotification = "query_active_notification"
)

// Message is the request envelope page contexts send to the daemon. Only the
// fields of the given Type are read.
type Message struct {
	Type           string `json:"type"`
	Year           int    `json:"year,omitempty"`
	Month          int    `json:"month,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
	ButtonIndex    *int   `json:"buttonIndex,omitempty"`
}

// ActionResult is the response to a notification_action message. Action is
// empty when the id was not the active notification.
type ActionResult struct {
	Status string `json:"status"`
	Action string `json:"action,omitempty"`
}

func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		switch msg.Type {
		case MsgGetEventsForMonth:
			if msg.Year <= 0 || msg.Month < 1 || msg.Month > 12 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "year and month (1-12) are required")
				return
			}
			events, err := deps.Events.EventsForMonth(r.Context(), msg.Year, time.Month(msg.Month))
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to build events: %v", err)
				return
			}
			writeJSON(w, http.StatusOK, events)

		case MsgNotificationAction:
			// An action without an id or a button cannot resolve anything;
			// it is ignored like one for a stale id.
			if msg.NotificationID == "" || msg.ButtonIndex == nil {
				writeJSON(w, http.StatusOK, ActionResult{Status: "ignored"})
				return
			}
			action, err := deps.Notifications.HandleAction(r.Context(), msg.NotificationID, *msg.ButtonIndex)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to handle action: %v", err)
				return
			}
			status := "ok"
			if action == "" {
				status = "ignored"
			}
			writeJSON(w, http.StatusOK, ActionResult{Status: status, Action: string(action)})

		case MsgQueryActiveNotification:
			n, err := deps.Notifications.Active(r.Context())
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to read active notification: %v", err)
				return
			}
			// A nil pointer encodes as null: nothing is active.
			writeJSON(w, http.StatusOK, n)

		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown message type %q", msg.Type)
		}
	}
}
