package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sgd-notifier/sgdn/internal/metrics"
	"github.com/sgd-notifier/sgdn/internal/peak"
	"github.com/sgd-notifier/sgdn/internal/reminder"
	"github.com/sgd-notifier/sgdn/internal/settings"
	"github.com/sgd-notifier/sgdn/internal/storage"
)

// Alarm names used by the coordinator.
const (
	CheckAlarm   = "check_notifications"
	RefirePrefix = "refire:"
)

// Store is the persistent state the coordinator reads and mutates.
// Implemented by storage.Store.
type Store interface {
	ListReminders() ([]reminder.Reminder, error)
	GetReminder(id string) (reminder.Reminder, error)
	CompleteReminder(id string) error
	DeleteReminder(id string) error
	GetPeakStatus(date string) (peak.Status, error)
	SavePeakStatus(st peak.Status) error
}

// PeakDays decides whether a date is a peak day.
type PeakDays interface {
	IsPeakDay(ctx context.Context, date time.Time) (bool, error)
}

// Timers arms and clears named one-shot alarms. Implemented by alarm.Scheduler.
type Timers interface {
	Create(name string, payload any, delay time.Duration) error
	Clear(name string) (bool, error)
	List(prefix string) ([]storage.Alarm, error)
}

// Broadcaster pushes state changes to connected page contexts.
type Broadcaster interface {
	ShowNotification(n Notification)
	DismissNotification()
	RemindersUpdated()
}

// Preferences supplies the sound settings.
type Preferences interface {
	Get() (settings.Settings, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type nopBroadcaster struct{}

func (nopBroadcaster) ShowNotification(Notification) {}
func (nopBroadcaster) DismissNotification()          {}
func (nopBroadcaster) RemindersUpdated()             {}

// Options wires a Coordinator. Store, Peaks and Timers are required.
type Options struct {
	Store       Store
	Peaks       PeakDays
	Timers      Timers
	Slot        Slot
	Renderer    Renderer
	Player      Player
	Preferences Preferences
	Broadcaster Broadcaster
	Clock       Clock
	Location    *time.Location
	Window      peak.Window
	Snooze      time.Duration
	Logger      *slog.Logger
}

// refirePayload is stored with a refire alarm. Token ties the alarm to the
// arming that created it, so a stale claim never fires a newer arming early.
type refirePayload struct {
	Token        string       `json:"token"`
	Notification Notification `json:"notification"`
}

// Coordinator serializes ticks, button actions and refires around the single
// active notification slot.
type Coordinator struct {
	store    Store
	peaks    PeakDays
	timers   Timers
	slot     Slot
	renderer Renderer
	player   Player
	prefs    Preferences
	bus      Broadcaster
	clock    Clock
	loc      *time.Location
	window   peak.Window
	snooze   time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	armed map[string]string // refire alarm name -> token
}

func New(opts Options) *Coordinator {
	c := &Coordinator{
		store:    opts.Store,
		peaks:    opts.Peaks,
		timers:   opts.Timers,
		slot:     opts.Slot,
		renderer: opts.Renderer,
		player:   opts.Player,
		prefs:    opts.Preferences,
		bus:      opts.Broadcaster,
		clock:    opts.Clock,
		loc:      opts.Location,
		window:   opts.Window,
		snooze:   opts.Snooze,
		logger:   opts.Logger,
		armed:    make(map[string]string),
	}
	if c.slot == nil {
		c.slot = NewMemorySlot()
	}
	if c.renderer == nil {
		c.renderer = LogRenderer{Logger: opts.Logger}
	}
	if c.player == nil {
		c.player = NopPlayer{}
	}
	if c.bus == nil {
		c.bus = nopBroadcaster{}
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.window == (peak.Window{}) {
		c.window = peak.DefaultWindow
	}
	if c.snooze <= 0 {
		c.snooze = DefaultSnooze
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Restore resets the session slot and re-adopts refire alarms that survived
// a restart.
func (c *Coordinator) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clearing session slot: %w", err)
	}
	alarms, err := c.timers.List(RefirePrefix)
	if err != nil {
		return fmt.Errorf("listing refire alarms: %w", err)
	}
	for _, a := range alarms {
		var p refirePayload
		if err := json.Unmarshal([]byte(a.PayloadJSON), &p); err != nil {
			c.logger.Warn("dropping unreadable refire alarm", "alarm", a.Name, "error", err)
			c.timers.Clear(a.Name)
			continue
		}
		c.armed[a.Name] = p.Token
	}
	if len(alarms) > 0 {
		c.logger.Info("restored refire alarms", "count", len(c.armed))
	}
	return nil
}

// Active returns the active notification, or nil when idle.
func (c *Coordinator) Active(ctx context.Context) (*Notification, error) {
	return c.slot.Get(ctx)
}

// Tick fires every reminder due at the current minute and the peak window
// edge starting now, if today is a peak day. While a notification is active,
// further fires are suppressed.
func (c *Coordinator) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().In(c.loc)

	reminders, err := c.store.ListReminders()
	if err != nil {
		return fmt.Errorf("listing reminders: %w", err)
	}
	for _, r := range reminders {
		if r.IsDue(now) {
			c.fire(ctx, ForReminder(r))
		}
	}

	edge, ok := c.window.EdgeAt(now.Format(reminder.TimeLayout))
	if !ok {
		return nil
	}
	isPeak, err := c.peaks.IsPeakDay(ctx, now)
	if err != nil {
		return fmt.Errorf("checking peak day: %w", err)
	}
	if !isPeak {
		return nil
	}

	today := now.Format(reminder.DateLayout)
	prev, err := c.store.GetPeakStatus(today)
	if err != nil {
		return fmt.Errorf("loading peak status: %w", err)
	}
	st := peak.StatusFor(prev, now)
	if st.Notified(edge) {
		return nil
	}
	c.fire(ctx, ForPeak(edge, c.window))
	if err := c.store.SavePeakStatus(st.Mark(edge)); err != nil {
		return fmt.Errorf("saving peak status: %w", err)
	}
	return nil
}

// HandleAction resolves the active notification with a button index. An id
// that is not the active notification is ignored and yields an empty action.
func (c *Coordinator) HandleAction(ctx context.Context, id string, button int) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.slot.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("reading active notification: %w", err)
	}
	if cur == nil || cur.ID != id {
		c.logger.Debug("ignoring action for inactive notification", "id", id, "button", button)
		return "", nil
	}

	c.disarm(RefirePrefix + cur.ID)

	action := ActionFor(cur.Kind, button)
	switch action {
	case ActionComplete:
		c.mutateReminder(cur.ReminderID, c.store.CompleteReminder)
	case ActionDisable:
		c.mutateReminder(cur.ReminderID, c.store.DeleteReminder)
	case ActionSnooze:
		c.arm(*cur)
	}

	if err := c.slot.Clear(ctx); err != nil {
		return action, fmt.Errorf("clearing active notification: %w", err)
	}
	if err := c.renderer.Clear(ctx, cur.ID); err != nil {
		c.logger.Warn("clearing rendered notification failed", "id", cur.ID, "error", err)
	}
	c.bus.DismissNotification()
	metrics.NotificationsResolved.WithLabelValues(string(cur.Kind), string(action)).Inc()
	c.logger.Info("notification resolved", "id", cur.ID, "kind", cur.Kind, "action", action)
	return action, nil
}

// Refire handles a matured refire alarm. It is a no-op when the alarm was
// cleared, when the referenced reminder is gone, or when a peak alert for
// the same edge was already delivered today.
func (c *Coordinator) Refire(ctx context.Context, name string, raw json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var p refirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decoding refire payload: %w", err)
	}
	if token, ok := c.armed[name]; !ok || token != p.Token {
		c.logger.Debug("skipping stale refire", "alarm", name)
		return nil
	}
	delete(c.armed, name)

	n := p.Notification
	if cancel, err := c.refireCancelled(n); err != nil {
		return err
	} else if cancel {
		metrics.NotificationsSuppressed.WithLabelValues(string(n.Kind), "stale_refire").Inc()
		return nil
	}

	cur, err := c.slot.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading active notification: %w", err)
	}
	if cur != nil && cur.ID == n.ID {
		// Still unanswered: present it again.
		c.present(ctx, *cur)
		c.arm(*cur)
		return nil
	}
	c.fire(ctx, n)
	return nil
}

func (c *Coordinator) refireCancelled(n Notification) (bool, error) {
	switch n.Kind {
	case KindReminder:
		_, err := c.store.GetReminder(n.ReminderID)
		if errors.Is(err, storage.ErrNotFound) {
			c.logger.Info("refire cancelled, reminder deleted", "reminder_id", n.ReminderID)
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("loading reminder %s: %w", n.ReminderID, err)
		}
	case KindPeak:
		today := c.clock.Now().In(c.loc).Format(reminder.DateLayout)
		st, err := c.store.GetPeakStatus(today)
		if err != nil {
			return false, fmt.Errorf("loading peak status: %w", err)
		}
		if st.Notified(n.Edge) {
			c.logger.Info("refire cancelled, peak alert already delivered", "edge", n.Edge)
			return true, nil
		}
	}
	return false, nil
}

// fire makes n the active notification unless one is already active.
func (c *Coordinator) fire(ctx context.Context, n Notification) bool {
	cur, err := c.slot.Get(ctx)
	if err != nil {
		c.logger.Error("reading active notification failed", "error", err)
		return false
	}
	if cur != nil {
		metrics.NotificationsSuppressed.WithLabelValues(string(n.Kind), "active").Inc()
		c.logger.Debug("notification suppressed", "kind", n.Kind, "active_id", cur.ID)
		return false
	}

	n.FiredAt = c.clock.Now()
	if err := c.slot.Set(ctx, n); err != nil {
		c.logger.Error("storing active notification failed", "error", err)
		return false
	}
	c.arm(n)
	c.present(ctx, n)
	metrics.NotificationsFired.WithLabelValues(string(n.Kind)).Inc()
	c.logger.Info("notification fired", "id", n.ID, "kind", n.Kind, "reminder_id", n.ReminderID)
	return true
}

func (c *Coordinator) present(ctx context.Context, n Notification) {
	if err := c.renderer.Show(ctx, n); err != nil {
		c.logger.Warn("showing notification failed", "id", n.ID, "error", err)
	}
	c.playSound(ctx)
	c.bus.ShowNotification(n)
}

func (c *Coordinator) playSound(ctx context.Context) {
	if c.prefs == nil {
		return
	}
	s, err := c.prefs.Get()
	if err != nil {
		c.logger.Warn("loading sound settings failed", "error", err)
		return
	}
	if err := c.player.Play(ctx, s.Sound, s.Volume); err != nil {
		c.logger.Warn("playing sound failed", "error", err)
	}
}

// arm schedules a refire of n after the snooze delay.
func (c *Coordinator) arm(n Notification) {
	name := RefirePrefix + n.ID
	p := refirePayload{Token: uuid.NewString(), Notification: n}
	if err := c.timers.Create(name, p, c.snooze); err != nil {
		c.logger.Error("arming refire failed", "alarm", name, "error", err)
		return
	}
	c.armed[name] = p.Token
}

func (c *Coordinator) disarm(name string) {
	delete(c.armed, name)
	if _, err := c.timers.Clear(name); err != nil {
		c.logger.Warn("clearing refire failed", "alarm", name, "error", err)
	}
}

// mutateReminder applies op to a reminder; a reminder deleted in the
// meantime is silently skipped.
func (c *Coordinator) mutateReminder(id string, op func(string) error) {
	if strings.TrimSpace(id) == "" {
		return
	}
	if err := op(id); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Error("updating reminder failed", "reminder_id", id, "error", err)
		}
		return
	}
	c.bus.RemindersUpdated()
}
