package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sgd-notifier/sgdn/internal/alarm"
	"github.com/sgd-notifier/sgdn/internal/peak"
	"github.com/sgd-notifier/sgdn/internal/reminder"
	"github.com/sgd-notifier/sgdn/internal/settings"
	"github.com/sgd-notifier/sgdn/internal/storage"
)

// --- Fakes ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePeaks struct {
	peak bool
	err  error
}

func (f *fakePeaks) IsPeakDay(context.Context, time.Time) (bool, error) {
	return f.peak, f.err
}

type recordingRenderer struct {
	mu      sync.Mutex
	shown   []Notification
	cleared []string
}

func (r *recordingRenderer) Show(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
	return nil
}

func (r *recordingRenderer) Clear(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, id)
	return nil
}

type recordingBus struct {
	mu        sync.Mutex
	shows     []Notification
	dismisses int
	updates   int
}

func (b *recordingBus) ShowNotification(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shows = append(b.shows, n)
}

func (b *recordingBus) DismissNotification() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dismisses++
}

func (b *recordingBus) RemindersUpdated() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates++
}

type recordingPlayer struct {
	mu    sync.Mutex
	plays []string
}

func (p *recordingPlayer) Play(_ context.Context, sound string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, sound)
	return nil
}

type staticPrefs settings.Settings

func (s staticPrefs) Get() (settings.Settings, error) { return settings.Settings(s), nil }

// --- Harness ---

type harness struct {
	t        *testing.T
	c        *Coordinator
	store    *storage.Store
	sched    *alarm.Scheduler
	clock    *fakeClock
	peaks    *fakePeaks
	renderer *recordingRenderer
	bus      *recordingBus
	player   *recordingPlayer
	slot     *MemorySlot
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{
		t:        t,
		store:    store,
		clock:    &fakeClock{now: start},
		peaks:    &fakePeaks{},
		renderer: &recordingRenderer{},
		bus:      &recordingBus{},
		player:   &recordingPlayer{},
		slot:     NewMemorySlot(),
	}
	h.sched = alarm.NewSchedulerWithClock(store, h.clock, time.Millisecond)
	h.c = h.newCoordinator()
	return h
}

func (h *harness) newCoordinator() *Coordinator {
	c := New(Options{
		Store:       h.store,
		Peaks:       h.peaks,
		Timers:      h.sched,
		Slot:        h.slot,
		Renderer:    h.renderer,
		Player:      h.player,
		Preferences: staticPrefs{Sound: "/tmp/bell.wav", Volume: 0.5},
		Broadcaster: h.bus,
		Clock:       h.clock,
		Location:    time.UTC,
	})
	h.sched.Handle(RefirePrefix, c.Refire)
	return c
}

func (h *harness) addReminder(msg, startDate, at string, freq reminder.Frequency) reminder.Reminder {
	h.t.Helper()
	r, err := reminder.New(msg, startDate, at, freq, "")
	if err != nil {
		h.t.Fatalf("reminder.New: %v", err)
	}
	r, err = h.store.SaveReminder(r)
	if err != nil {
		h.t.Fatalf("SaveReminder: %v", err)
	}
	return r
}

func (h *harness) tick() {
	h.t.Helper()
	if err := h.c.Tick(context.Background()); err != nil {
		h.t.Fatalf("Tick: %v", err)
	}
}

// advance moves the clock and runs every alarm that became due.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	for {
		fired, err := h.sched.RunOnce(context.Background())
		if err != nil {
			h.t.Fatalf("RunOnce: %v", err)
		}
		if !fired {
			return
		}
	}
}

func (h *harness) active() *Notification {
	h.t.Helper()
	n, err := h.c.Active(context.Background())
	if err != nil {
		h.t.Fatalf("Active: %v", err)
	}
	return n
}

func (h *harness) act(id string, button int) Action {
	h.t.Helper()
	a, err := h.c.HandleAction(context.Background(), id, button)
	if err != nil {
		h.t.Fatalf("HandleAction: %v", err)
	}
	return a
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

// --- Tests ---

func TestTick_FiresDueReminderAndSuppressesWhileActive(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	n := h.active()
	if n == nil {
		t.Fatal("expected an active notification")
	}
	if n.Kind != KindReminder || n.ReminderID != r.ID || n.Message != "Submit SGD report" {
		t.Errorf("active = %+v", n)
	}
	if len(n.Buttons) != 3 {
		t.Errorf("buttons = %v", n.Buttons)
	}

	h.clock.Advance(20 * time.Second)
	h.tick()
	if got := h.active(); got == nil || got.ID != n.ID {
		t.Errorf("second tick replaced the active notification: %+v", got)
	}
	if len(h.renderer.shown) != 1 || len(h.bus.shows) != 1 {
		t.Errorf("shown %d times, pushed %d times; want 1 each", len(h.renderer.shown), len(h.bus.shows))
	}
	if len(h.player.plays) != 1 || h.player.plays[0] != "/tmp/bell.wav" {
		t.Errorf("plays = %v", h.player.plays)
	}
}

func TestTick_AtMostOneActive(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	h.addReminder("first", "2024-03-01", "09:00", reminder.Daily)
	h.addReminder("second", "2024-03-01", "09:00", reminder.Daily)
	h.addReminder("third", "2024-03-15", "09:00", reminder.OnceToday)

	h.tick()
	if len(h.renderer.shown) != 1 {
		t.Errorf("shown %d notifications, want 1", len(h.renderer.shown))
	}
}

func TestTick_IgnoresOtherMinutesAndDays(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:01"))
	h.addReminder("daily", "2024-01-01", "09:00", reminder.Daily)
	h.addReminder("future", "2024-04-01", "09:01", reminder.Daily)
	h.addReminder("weekly on monday", "2024-03-11", "09:01", reminder.Weekly)

	h.tick()
	if n := h.active(); n != nil {
		t.Errorf("unexpected active notification %+v", n)
	}
}

func TestComplete_PersistsAndNeverFiresAgain(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	n := h.active()
	if a := h.act(n.ID, 0); a != ActionComplete {
		t.Fatalf("action = %q, want complete", a)
	}

	got, err := h.store.GetReminder(r.ID)
	if err != nil {
		t.Fatalf("GetReminder: %v", err)
	}
	if !got.Completed {
		t.Error("reminder not marked completed")
	}
	if h.active() != nil {
		t.Error("slot should be empty after complete")
	}
	if h.bus.dismisses != 1 || h.bus.updates != 1 {
		t.Errorf("dismisses=%d updates=%d, want 1/1", h.bus.dismisses, h.bus.updates)
	}
	if len(h.renderer.cleared) != 1 || h.renderer.cleared[0] != n.ID {
		t.Errorf("cleared = %v", h.renderer.cleared)
	}

	h.tick()
	h.clock.Set(at("2024-03-16T09:00"))
	h.tick()
	if h.active() != nil {
		t.Error("completed reminder fired again")
	}
	// The unanswered-alert refire was cleared with the resolution.
	h.advance(time.Hour)
	if h.active() != nil {
		t.Error("refire fired after completion")
	}
}

func TestDisableForToday_DeletesReminder(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	if a := h.act(h.active().ID, 1); a != ActionDisable {
		t.Fatalf("action = %q, want disable", a)
	}
	if _, err := h.store.GetReminder(r.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetReminder after disable: %v, want ErrNotFound", err)
	}
	if h.bus.updates != 1 {
		t.Errorf("updates = %d, want 1", h.bus.updates)
	}
}

func TestSnooze_RefiresAfterFiveMinutesWithSameIdentity(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	first := h.active()
	if a := h.act(first.ID, 2); a != ActionSnooze {
		t.Fatalf("action = %q, want snooze", a)
	}
	if h.active() != nil {
		t.Fatal("snoozed notification should not be visible")
	}

	h.advance(4*time.Minute + 59*time.Second)
	if h.active() != nil {
		t.Fatal("refired before the snooze elapsed")
	}

	h.advance(time.Second)
	again := h.active()
	if again == nil {
		t.Fatal("snoozed reminder did not refire")
	}
	if again.ID != first.ID || again.Message != first.Message {
		t.Errorf("refired %+v, want same identity as %+v", again, first)
	}
	if len(h.renderer.shown) != 2 {
		t.Errorf("shown %d times, want 2", len(h.renderer.shown))
	}
}

func TestSnooze_CancelledWhenReminderDeleted(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	h.act(h.active().ID, 2)
	if err := h.store.DeleteReminder(r.ID); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}

	h.advance(5 * time.Minute)
	if n := h.active(); n != nil {
		t.Errorf("refire of deleted reminder fired: %+v", n)
	}
}

func TestSnooze_SuppressedByOtherActiveNotification(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	h.addReminder("first", "2024-01-01", "09:00", reminder.Daily)
	h.addReminder("second", "2024-01-01", "09:05", reminder.Daily)

	h.tick()
	h.act(h.active().ID, 2)

	h.clock.Advance(5 * time.Minute)
	h.tick()
	second := h.active()
	if second == nil || second.Message != "second" {
		t.Fatalf("active = %+v, want second", second)
	}

	h.advance(0)
	if got := h.active(); got == nil || got.ID != second.ID {
		t.Errorf("refire replaced the active notification: %+v", got)
	}
}

func TestUnansweredNotificationIsPresentedAgain(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	n := h.active()

	h.advance(5 * time.Minute)
	if got := h.active(); got == nil || got.ID != n.ID {
		t.Fatalf("active = %+v, want %s", got, n.ID)
	}
	if len(h.renderer.shown) != 2 || len(h.bus.shows) != 2 {
		t.Errorf("shown %d, pushed %d; want 2 each", len(h.renderer.shown), len(h.bus.shows))
	}

	// The fresh timer keeps it coming back.
	h.advance(5 * time.Minute)
	if len(h.renderer.shown) != 3 {
		t.Errorf("shown %d times, want 3", len(h.renderer.shown))
	}
}

func TestDismissWithoutButton_KeepsReminderPending(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	if a := h.act(h.active().ID, ButtonNone); a != ActionDismiss {
		t.Fatalf("action = %q, want dismiss", a)
	}
	got, err := h.store.GetReminder(r.ID)
	if err != nil || got.Completed {
		t.Errorf("reminder after dismiss = %+v, %v", got, err)
	}
	h.advance(10 * time.Minute)
	if h.active() != nil {
		t.Error("dismissed notification came back")
	}

	h.clock.Set(at("2024-03-16T09:00"))
	h.tick()
	if h.active() == nil {
		t.Error("dismissed reminder should fire again the next day")
	}
}

func TestHandleAction_IgnoresStaleID(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	if a := h.act("sgd_nothing", 0); a != "" {
		t.Errorf("action while idle = %q", a)
	}

	h.tick()
	n := h.active()
	if a := h.act("sgd_stale", 0); a != "" {
		t.Errorf("action for stale id = %q", a)
	}
	if got := h.active(); got == nil || got.ID != n.ID {
		t.Error("stale action resolved the active notification")
	}
	if got, _ := h.store.GetReminder(r.ID); got.Completed {
		t.Error("stale action completed the reminder")
	}
}

func TestHandleAction_ReminderDeletedMeanwhile(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	r := h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	h.store.DeleteReminder(r.ID)
	if a := h.act(h.active().ID, 0); a != ActionComplete {
		t.Errorf("action = %q", a)
	}
	if h.active() != nil {
		t.Error("notification should still resolve")
	}
	if h.bus.updates != 0 {
		t.Errorf("updates = %d, want 0 for a missing reminder", h.bus.updates)
	}
}

func TestPeakStart_FiresOncePerDay(t *testing.T) {
	h := newHarness(t, at("2024-03-01T13:30"))
	h.peaks.peak = true

	h.tick()
	n := h.active()
	if n == nil || n.Kind != KindPeak || n.Edge != peak.EdgeStart {
		t.Fatalf("active = %+v, want peak start", n)
	}
	if n.Priority != reminder.PriorityUrgent || len(n.Buttons) != 2 {
		t.Errorf("peak notification = %+v", n)
	}
	st, _ := h.store.GetPeakStatus("2024-03-01")
	if !st.NotifiedStart || st.NotifiedEnd {
		t.Errorf("status = %+v", st)
	}

	h.act(n.ID, 0)
	h.tick()
	h.clock.Advance(time.Minute)
	h.tick()
	if h.active() != nil {
		t.Error("peak start fired twice")
	}

	h.clock.Set(at("2024-03-01T15:00"))
	h.tick()
	end := h.active()
	if end == nil || end.Edge != peak.EdgeEnd {
		t.Fatalf("active = %+v, want peak end", end)
	}

	h.act(end.ID, 0)
	h.clock.Set(at("2024-03-04T13:30"))
	h.tick()
	if n := h.active(); n == nil || n.Edge != peak.EdgeStart {
		t.Errorf("next day peak start = %+v", n)
	}
}

func TestPeak_NotOnOrdinaryDay(t *testing.T) {
	h := newHarness(t, at("2024-03-12T13:30"))

	h.tick()
	if n := h.active(); n != nil {
		t.Errorf("unexpected %+v", n)
	}
	st, _ := h.store.GetPeakStatus("2024-03-12")
	if st.NotifiedStart {
		t.Error("flag set on a non-peak day")
	}
}

func TestPeak_FlagMarkedEvenWhenSuppressed(t *testing.T) {
	h := newHarness(t, at("2024-03-01T13:30"))
	h.peaks.peak = true
	h.addReminder("lunch follow-up", "2024-01-01", "13:30", reminder.Daily)

	h.tick()
	if n := h.active(); n == nil || n.Kind != KindReminder {
		t.Fatalf("active = %+v, want the reminder", n)
	}
	st, _ := h.store.GetPeakStatus("2024-03-01")
	if !st.NotifiedStart {
		t.Error("peak start flag should be recorded after the attempt")
	}
}

func TestPeakSnooze_CancelledOnceDelivered(t *testing.T) {
	h := newHarness(t, at("2024-03-01T13:30"))
	h.peaks.peak = true

	h.tick()
	if a := h.act(h.active().ID, 1); a != ActionSnooze {
		t.Fatalf("action = %q, want snooze", a)
	}
	h.advance(5 * time.Minute)
	if n := h.active(); n != nil {
		t.Errorf("peak refire should be cancelled once the flag is set, got %+v", n)
	}
}

func TestPeak_ErrorIsReturned(t *testing.T) {
	h := newHarness(t, at("2024-03-01T13:30"))
	h.peaks.err = errors.New("store down")

	if err := h.c.Tick(context.Background()); err == nil {
		t.Error("expected error from peak check")
	}
}

func TestRefire_IgnoresStaleToken(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	n := h.active()
	h.act(n.ID, 2)

	raw, _ := json.Marshal(refirePayload{Token: "old", Notification: *n})
	if err := h.c.Refire(context.Background(), RefirePrefix+n.ID, raw); err != nil {
		t.Fatalf("Refire: %v", err)
	}
	if h.active() != nil {
		t.Error("stale refire fired before the snooze elapsed")
	}

	h.advance(5 * time.Minute)
	if h.active() == nil {
		t.Error("armed refire should still fire")
	}
}

func TestRestore_ClearsSlotAndAdoptsRefires(t *testing.T) {
	h := newHarness(t, at("2024-03-15T09:00"))
	h.addReminder("Submit SGD report", "2024-01-01", "09:00", reminder.Daily)

	h.tick()
	n := h.active()
	h.act(n.ID, 2)
	h.slot.Set(context.Background(), Notification{ID: "leftover"})

	// Simulate a daemon restart: a new coordinator over the same store.
	h.sched = alarm.NewSchedulerWithClock(h.store, h.clock, time.Millisecond)
	h.c = h.newCoordinator()
	if err := h.c.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if h.active() != nil {
		t.Fatal("Restore should clear the session slot")
	}

	h.advance(5 * time.Minute)
	if got := h.active(); got == nil || got.ID != n.ID {
		t.Errorf("restored refire = %+v, want %s", got, n.ID)
	}
}

func TestButtonsAndActions(t *testing.T) {
	cases := []struct {
		kind   Kind
		button int
		want   Action
	}{
		{KindReminder, 0, ActionComplete},
		{KindReminder, 1, ActionDisable},
		{KindReminder, 2, ActionSnooze},
		{KindReminder, ButtonNone, ActionDismiss},
		{KindReminder, 7, ActionDismiss},
		{KindPeak, 0, ActionClose},
		{KindPeak, 1, ActionSnooze},
		{KindPeak, ButtonNone, ActionDismiss},
	}
	for _, tc := range cases {
		if got := ActionFor(tc.kind, tc.button); got != tc.want {
			t.Errorf("ActionFor(%s, %d) = %q, want %q", tc.kind, tc.button, got, tc.want)
		}
	}

	b := Buttons(KindPeak)
	b[0] = "mutated"
	if Buttons(KindPeak)[0] != "Close" {
		t.Error("Buttons must return a copy")
	}
}
