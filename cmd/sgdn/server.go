package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sgd-notifier/sgdn/internal/alarm"
	"github.com/sgd-notifier/sgdn/internal/api"
	"github.com/sgd-notifier/sgdn/internal/calendar"
	"github.com/sgd-notifier/sgdn/internal/config"
	"github.com/sgd-notifier/sgdn/internal/holiday"
	"github.com/sgd-notifier/sgdn/internal/notify"
	"github.com/sgd-notifier/sgdn/internal/peak"
	"github.com/sgd-notifier/sgdn/internal/settings"
	"github.com/sgd-notifier/sgdn/internal/storage"
	"github.com/sgd-notifier/sgdn/internal/tabsync"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sgdn daemon (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running sgdn daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sgdn daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "sgdn.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// newSlot selects the session slot backend.
func newSlot(ctx context.Context, cfg config.Config) (notify.Slot, func(), error) {
	if cfg.Session.Backend != "redis" {
		return notify.NewMemorySlot(), func() {}, nil
	}
	rs, err := notify.NewRedisSlot(cfg.Session.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		rs.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rs, func() { rs.Close() }, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "sgdn version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	apiToken, err := config.GetAPIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available", "path", config.TokenPath(cfg))

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("sgdn is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("sgdn is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	window := cfg.Window()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	holidays := holiday.NewCache(
		holiday.NewClient(cfg.Holidays.BaseURL, cfg.Holidays.Timeout),
		store,
		holiday.Options{Years: cfg.Holidays.Years, RetryAfter: cfg.Holidays.RetryAfter},
	)
	peaks := peak.NewCalculator(holidays, cfg.Peak.Days, loc)

	slot, closeSlot, err := newSlot(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening session slot: %w", err)
	}
	defer closeSlot()

	var player notify.Player = notify.NopPlayer{}
	if cfg.Sound.Command != "" {
		player = notify.NewCommandPlayer(cfg.Sound.Command)
	}

	var renderer notify.Renderer = notify.LogRenderer{}
	var desktop *notify.DesktopRenderer
	if cfg.Notify.Renderer == "desktop" {
		desktop = notify.NewDesktopRenderer(cfg.Notify.Command)
		renderer = desktop
	}

	prefs := settings.NewManager(store, settings.Settings{Sound: cfg.Sound.File, Volume: cfg.Sound.Volume})
	hub := tabsync.NewHub()
	sched := alarm.NewScheduler(store, cfg.Scheduler.PollInterval)

	coord := notify.New(notify.Options{
		Store:       store,
		Peaks:       peaks,
		Timers:      sched,
		Slot:        slot,
		Renderer:    renderer,
		Player:      player,
		Preferences: prefs,
		Broadcaster: hub,
		Location:    loc,
		Window:      window,
		Snooze:      cfg.Scheduler.Snooze,
	})
	hub.SetSource(coord)
	if desktop != nil {
		desktop.OnAction(func(actx context.Context, id string, button int) {
			if _, err := coord.HandleAction(actx, id, button); err != nil {
				slog.Error("desktop action failed", "id", id, "button", button, "error", err)
			}
		})
	}
	if err := coord.Restore(ctx); err != nil {
		return fmt.Errorf("restoring notification state: %w", err)
	}

	sched.Handle(notify.CheckAlarm, func(tctx context.Context, _ string, _ json.RawMessage) error {
		return coord.Tick(tctx)
	})
	sched.Handle(notify.RefirePrefix, coord.Refire)
	// Ticks land on whole minutes so every HH:MM is checked once.
	tick := cfg.Scheduler.TickInterval
	if err := sched.CreateRepeating(notify.CheckAlarm, tick, alarm.NextBoundary(time.Now(), tick)); err != nil {
		return fmt.Errorf("registering %s alarm: %w", notify.CheckAlarm, err)
	}
	go sched.Run(ctx)

	go func() {
		if err := holidays.RefreshIfEmpty(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("initial holiday refresh failed", "error", err)
		}
	}()

	handler := api.NewHandler(api.Deps{
		Store:         store,
		Notifications: coord,
		Events:        calendar.NewProjector(store, peaks, loc, window),
		Peaks:         peaks,
		Preferences:   prefs,
		Holidays:      holidays,
		Broadcaster:   hub,
		Push:          hub.Handler(),
		Location:      loc,
		Token:         apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	if cfg.MCP.Enabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:         store,
			Notifications: coord,
			Events:        calendar.NewProjector(store, peaks, loc, window),
			Peaks:         peaks,
			Broadcaster:   hub,
			Location:      loc,
		}, version)
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "sgdn listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("sgdn is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop sgdn (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to sgdn (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Daemon", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Daemon", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Daemon", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if token, err := config.ReadAPIToken(cfg); err == nil {
			c := &apiClient{baseURL: serverURL, token: token, httpClient: httpClient}
			printDaemonState(ctx, c)
		}
	}

	printStatus("Peak window", "%s", cfg.Window().Label())
	printStatus("Session", "%s", cfg.Session.Backend)
	printStatus("Renderer", "%s", cfg.Notify.Renderer)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// printDaemonState reports reminder counts and the active alert.
func printDaemonState(ctx context.Context, c *apiClient) {
	var reminders []struct {
		Completed bool `json:"completed"`
	}
	if resp, err := c.get(ctx, "/reminders"); err == nil && decodeJSON(resp, &reminders) == nil {
		open := 0
		for _, r := range reminders {
			if !r.Completed {
				open++
			}
		}
		printStatus("Reminders", "%d (%d open)", len(reminders), open)
	}

	n, err := c.ActiveNotification(ctx)
	switch {
	case err != nil:
		printStatus("Active alert", "unknown (%v)", err)
	case n == nil:
		printStatus("Active alert", "none")
	default:
		printStatus("Active alert", "%s %s", colorize(styleCyan, shortID(n.ID)), n.Message)
	}
}
