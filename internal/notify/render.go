package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Renderer presents and removes system-level alerts.
type Renderer interface {
	Show(ctx context.Context, n Notification) error
	Clear(ctx context.Context, id string) error
}

// ActionFunc receives a button index (or ButtonNone) for a notification.
type ActionFunc func(ctx context.Context, id string, button int)

// LogRenderer only logs. It is used when no desktop is available.
type LogRenderer struct {
	Logger *slog.Logger
}

func (r LogRenderer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r LogRenderer) Show(_ context.Context, n Notification) error {
	r.logger().Info("notification shown", "id", n.ID, "kind", n.Kind, "priority", n.Priority, "message", n.Message)
	return nil
}

func (r LogRenderer) Clear(_ context.Context, id string) error {
	r.logger().Info("notification cleared", "id", id)
	return nil
}

// DesktopRenderer shows notifications with notify-send and reports the
// clicked action back. A notification closed without a click reports
// ButtonNone.
type DesktopRenderer struct {
	command  string
	onAction ActionFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]*desktopProc
}

type desktopProc struct {
	cancel context.CancelFunc
}

// NewDesktopRenderer creates a renderer running command (default
// "notify-send"). onAction may be set later with OnAction.
func NewDesktopRenderer(command string) *DesktopRenderer {
	if command == "" {
		command = "notify-send"
	}
	return &DesktopRenderer{
		command: command,
		logger:  slog.Default(),
		running: make(map[string]*desktopProc),
	}
}

// OnAction sets the callback for clicks and user dismissals.
func (d *DesktopRenderer) OnAction(fn ActionFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAction = fn
}

// desktopArgs builds the notify-send arguments. The notification never
// expires on its own: an exit without output must mean the user closed it.
func desktopArgs(n Notification) []string {
	urgency := "normal"
	if n.Priority != "normal" {
		urgency = "critical"
	}
	args := []string{"--app-name=sgdn", "--urgency=" + urgency, "--expire-time=0", "--wait"}
	for i, label := range n.Buttons {
		args = append(args, fmt.Sprintf("--action=%d=%s", i, label))
	}
	return append(args, n.Title, n.Message)
}

// Show starts the notifier process. Showing an id that is already on screen
// replaces it.
func (d *DesktopRenderer) Show(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.running[n.ID]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, d.command, desktopArgs(n)...)
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting %s: %w", d.command, err)
	}

	proc := &desktopProc{cancel: cancel}
	d.running[n.ID] = proc

	go func() {
		err := cmd.Wait()
		if ctx.Err() != nil {
			return
		}

		d.mu.Lock()
		if d.running[n.ID] == proc {
			delete(d.running, n.ID)
		}
		fn := d.onAction
		d.mu.Unlock()
		cancel()

		if err != nil {
			d.logger.Warn("notifier exited with error", "id", n.ID, "error", err)
		}
		button := ButtonNone
		if v, convErr := strconv.Atoi(strings.TrimSpace(out.String())); convErr == nil {
			button = v
		}
		if fn != nil {
			fn(context.Background(), n.ID, button)
		}
	}()
	return nil
}

// Clear closes the notifier process for id without reporting an action.
func (d *DesktopRenderer) Clear(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if proc, ok := d.running[id]; ok {
		proc.cancel()
		delete(d.running, id)
	}
	return nil
}
