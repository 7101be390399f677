// Package tabsync keeps page contexts consistent with the active
// notification: the Hub pushes changes over WebSocket and the Agent
// reconciles a page's overlay by polling and by applying pushes.
package tabsync

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/sgd-notifier/sgdn/internal/metrics"
	"github.com/sgd-notifier/sgdn/internal/notify"
)

// Push message types.
const (
	TypeShow             = "show_notification"
	TypeDismiss          = "dismiss_notification"
	TypeRemindersUpdated = "reminders_updated"
)

// Message is one push to a page context.
type Message struct {
	Type         string               `json:"type"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

// ActiveSource reports the current active notification.
type ActiveSource interface {
	Active(ctx context.Context) (*notify.Notification, error)
}

const sendBuffer = 16

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans push messages out to every connected page context. Delivery is
// best effort: a slow or gone client simply misses the push and catches up
// on its next poll.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	source  ActiveSource
}

func NewHub() *Hub {
	return &Hub{
		logger:  slog.Default(),
		clients: make(map[*client]struct{}),
	}
}

// SetSource sets where newly connected clients read the active notification.
func (h *Hub) SetSource(src ActiveSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = src
}

// Handler serves the push stream. Origin is not checked; callers
// authenticate the request before it reaches the handler.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{Handler: h.serve}
}

// Clients returns the number of connected page contexts.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ShowNotification(n notify.Notification) {
	h.broadcast(Message{Type: TypeShow, Notification: &n})
}

func (h *Hub) DismissNotification() {
	h.broadcast(Message{Type: TypeDismiss})
}

func (h *Hub) RemindersUpdated() {
	h.broadcast(Message{Type: TypeRemindersUpdated})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(c *client, msg Message) {
	select {
	case c.send <- msg:
		metrics.TabPushes.WithLabelValues(msg.Type).Inc()
	default:
		h.logger.Debug("dropping push for slow page context", "type", msg.Type)
	}
}

func (h *Hub) serve(ws *websocket.Conn) {
	c := &client{conn: ws, send: make(chan Message, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	src := h.source
	h.mu.Unlock()
	metrics.TabClients.Inc()

	// A page that connects while a notification is active shows it at once.
	if src != nil {
		active, err := src.Active(ws.Request().Context())
		if err != nil {
			h.logger.Warn("reading active notification for new page context failed", "error", err)
		} else if active != nil {
			h.mu.Lock()
			h.deliver(c, Message{Type: TypeShow, Notification: active})
			h.mu.Unlock()
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range c.send {
			if err := websocket.JSON.Send(ws, msg); err != nil {
				return
			}
		}
	}()

	// Page contexts never send anything meaningful; reading only detects
	// the close.
	for {
		var discard any
		if err := websocket.JSON.Receive(ws, &discard); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	metrics.TabClients.Dec()
	<-done
}
