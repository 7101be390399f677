package tabsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sgd-notifier/sgdn/internal/notify"
)

// DefaultPollInterval is how often a page context re-checks the slot.
const DefaultPollInterval = 2 * time.Second

// ErrNoOverlay is returned by Click when nothing is rendered.
var ErrNoOverlay = errors.New("no overlay shown")

// Op is the change Reconcile decided on.
type Op int

const (
	OpNone Op = iota
	OpBuild
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpBuild:
		return "build"
	case OpRemove:
		return "remove"
	}
	return "none"
}

// Overlay tracks which notification a page context currently renders.
type Overlay struct {
	current *notify.Notification
}

// Reconcile compares the rendered overlay against the desired active
// notification and records the result. It is idempotent.
func (o *Overlay) Reconcile(active *notify.Notification) Op {
	switch {
	case active == nil && o.current == nil:
		return OpNone
	case active == nil:
		o.current = nil
		return OpRemove
	case o.current != nil && o.current.ID == active.ID:
		return OpNone
	default:
		n := *active
		o.current = &n
		return OpBuild
	}
}

// Current returns the rendered notification, or nil.
func (o *Overlay) Current() *notify.Notification {
	if o.current == nil {
		return nil
	}
	n := *o.current
	return &n
}

// Backend is the request/response side of the message bus.
type Backend interface {
	ActiveNotification(ctx context.Context) (*notify.Notification, error)
	NotificationAction(ctx context.Context, id string, button int) error
}

// View renders the overlay of one page context.
type View interface {
	Build(n notify.Notification)
	Remove()
	RemindersUpdated()
}

// Agent keeps one page context's overlay in line with the active
// notification. Pushes give low latency; the poll is the backstop for
// pushes that were missed.
type Agent struct {
	backend Backend
	view    View
	poll    time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	overlay Overlay
}

func NewAgent(backend Backend, view View, pollInterval time.Duration) *Agent {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Agent{
		backend: backend,
		view:    view,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Sync queries the slot and reconciles the overlay against it.
func (a *Agent) Sync(ctx context.Context) error {
	active, err := a.backend.ActiveNotification(ctx)
	if err != nil {
		return fmt.Errorf("querying active notification: %w", err)
	}
	a.reconcile(active)
	return nil
}

// Apply handles one push message.
func (a *Agent) Apply(msg Message) {
	switch msg.Type {
	case TypeShow:
		if msg.Notification != nil {
			a.reconcile(msg.Notification)
		}
	case TypeDismiss:
		a.reconcile(nil)
	case TypeRemindersUpdated:
		a.view.RemindersUpdated()
	default:
		a.logger.Debug("ignoring unknown push", "type", msg.Type)
	}
}

// Click sends the button index for the rendered overlay through the same
// action path as the native notification.
func (a *Agent) Click(ctx context.Context, button int) error {
	a.mu.Lock()
	cur := a.overlay.Current()
	a.mu.Unlock()
	if cur == nil {
		return ErrNoOverlay
	}
	if err := a.backend.NotificationAction(ctx, cur.ID, button); err != nil {
		return fmt.Errorf("sending action: %w", err)
	}
	return nil
}

func (a *Agent) reconcile(active *notify.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.overlay.Reconcile(active) {
	case OpBuild:
		a.view.Build(*a.overlay.current)
	case OpRemove:
		a.view.Remove()
	}
}

// Run syncs on start, on every poll tick, whenever visible fires, and
// applies pushes until ctx is cancelled. pushes and visible may be nil.
func (a *Agent) Run(ctx context.Context, pushes <-chan Message, visible <-chan struct{}) {
	a.syncLogged(ctx)

	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.syncLogged(ctx)
		case <-visible:
			a.syncLogged(ctx)
		case msg, ok := <-pushes:
			if !ok {
				pushes = nil
				continue
			}
			a.Apply(msg)
		}
	}
}

func (a *Agent) syncLogged(ctx context.Context) {
	if err := a.Sync(ctx); err != nil && ctx.Err() == nil {
		a.logger.Warn("overlay sync failed", "error", err)
	}
}
