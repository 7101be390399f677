package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when no config file exists.
func TestDefaults(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if want := filepath.Join(dataHome, "sgdn"); cfg.Storage.DataDir != want {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, want)
	}
	if cfg.Scheduler.TickInterval != time.Minute {
		t.Errorf("Scheduler.TickInterval = %v, want 1m", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.Snooze != 5*time.Minute {
		t.Errorf("Scheduler.Snooze = %v, want 5m", cfg.Scheduler.Snooze)
	}
	if w := cfg.Window(); w.Start != "13:30" || w.End != "15:00" {
		t.Errorf("Window() = %+v, want 13:30-15:00", w)
	}
	if cfg.Peak.Days != 5 {
		t.Errorf("Peak.Days = %d, want 5", cfg.Peak.Days)
	}
	if cfg.Holidays.Years != 5 || cfg.Holidays.Timeout != 10*time.Second || cfg.Holidays.RetryAfter != time.Hour {
		t.Errorf("Holidays = %+v", cfg.Holidays)
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("Session.Backend = %q, want memory", cfg.Session.Backend)
	}
	if cfg.Notify.Renderer != "log" {
		t.Errorf("Notify.Renderer = %q, want log", cfg.Notify.Renderer)
	}
	if cfg.Sound.Volume != 1.0 {
		t.Errorf("Sound.Volume = %v, want 1.0", cfg.Sound.Volume)
	}
	if cfg.Sync.PollInterval != 2*time.Second {
		t.Errorf("Sync.PollInterval = %v, want 2s", cfg.Sync.PollInterval)
	}
	if cfg.MCP.Enabled {
		t.Error("MCP.Enabled = true, want false")
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v; want Local", loc, err)
	}
}

// TestYAMLFile verifies values from the config file override defaults.
func TestYAMLFile(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 5000
peak:
  start: "09:00"
  end: "10:30"
  days: 3
scheduler:
  snooze: 10m
  timezone: America/Sao_Paulo
sound:
  volume: 0.25
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Peak.Start != "09:00" || cfg.Peak.End != "10:30" || cfg.Peak.Days != 3 {
		t.Errorf("Peak = %+v", cfg.Peak)
	}
	if cfg.Scheduler.Snooze != 10*time.Minute {
		t.Errorf("Scheduler.Snooze = %v, want 10m", cfg.Scheduler.Snooze)
	}
	if cfg.Sound.Volume != 0.25 {
		t.Errorf("Sound.Volume = %v, want 0.25", cfg.Sound.Volume)
	}
	// Untouched keys keep their defaults.
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "America/Sao_Paulo" {
		t.Errorf("Location() = %s, want America/Sao_Paulo", loc)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "server:\n  port: 5000\n")

	t.Setenv("SGDN_SERVER_PORT", "6000")
	t.Setenv("SGDN_STORAGE_DATA_DIR", "/tmp/sgdn-env")
	t.Setenv("SGDN_SCHEDULER_TICK_INTERVAL", "30s")
	t.Setenv("SGDN_MCP_ENABLED", "true")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/sgdn-env" {
		t.Errorf("Storage.DataDir = %q, want /tmp/sgdn-env", cfg.Storage.DataDir)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Errorf("Scheduler.TickInterval = %v, want 30s", cfg.Scheduler.TickInterval)
	}
	if !cfg.MCP.Enabled {
		t.Error("MCP.Enabled = false, want true")
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"SGDN_SERVER_PORT":        "server.port",
		"SGDN_STORAGE_DATA_DIR":   "storage.data_dir",
		"SGDN_HOLIDAYS_BASE_URL":  "holidays.base_url",
		"SGDN_SYNC_POLL_INTERVAL": "sync.poll_interval",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
	for _, s := range specs {
		if got := envKey(s.env()); got != s.key {
			t.Errorf("envKey(%q) = %q, want %q", s.env(), got, s.key)
		}
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad backend", "session:\n  backend: etcd\n", "Backend"},
		{"redis without url", "session:\n  backend: redis\n", "RedisURL"},
		{"bad renderer", "notify:\n  renderer: popup\n", "Renderer"},
		{"volume out of range", "sound:\n  volume: 1.5\n", "Volume"},
		{"window reversed", "peak:\n  start: \"15:00\"\n  end: \"13:30\"\n", "peak.start"},
		{"bad clock", "peak:\n  start: \"1:3\"\n", "Start"},
		{"bad timezone", "scheduler:\n  timezone: Mars/Olympus\n", "timezone"},
		{"tick too short", "scheduler:\n  tick_interval: 10ms\n", "TickInterval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadFromPath(writeTempConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sgdn", "config.yaml")

	if err := setKeyAt(path, "server.port", "4200"); err != nil {
		t.Fatalf("set server.port: %v", err)
	}
	if err := setKeyAt(path, "scheduler.snooze", "10m"); err != nil {
		t.Fatalf("set scheduler.snooze: %v", err)
	}
	if err := setKeyAt(path, "mcp.enabled", "true"); err != nil {
		t.Fatalf("set mcp.enabled: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.Scheduler.Snooze != 10*time.Minute {
		t.Errorf("Scheduler.Snooze = %v, want 10m", cfg.Scheduler.Snooze)
	}
	if !cfg.MCP.Enabled {
		t.Error("MCP.Enabled = false after set")
	}
}

func TestSetKey_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := setKeyAt(path, "no.such_key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	err := setKeyAt(path, "server.token", "abc")
	if err == nil || !strings.Contains(err.Error(), "SGDN_SERVER_TOKEN") {
		t.Errorf("secret key error = %v, want hint about SGDN_SERVER_TOKEN", err)
	}
	if err := setKeyAt(path, "server.port", "many"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyAt(path, "holidays.timeout", "soon"); err == nil {
		t.Error("expected error for bad duration")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected writes should not create the config file")
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Token = "hunter2"

	infos := ShowAll(cfg)
	if len(infos) != len(ValidKeys()) {
		t.Errorf("ShowAll returned %d keys, ValidKeys %d", len(infos), len(ValidKeys()))
	}
	for _, info := range infos {
		if info.Key == "server.token" || info.Value == "hunter2" {
			t.Errorf("secret leaked: %+v", info)
		}
		if info.Key == "server.port" && info.EnvVar != "SGDN_SERVER_PORT" {
			t.Errorf("EnvVar = %q, want SGDN_SERVER_PORT", info.EnvVar)
		}
	}
}

func TestGetAPIToken(t *testing.T) {
	cfg := Config{Storage: StorageConfig{DataDir: t.TempDir()}}

	if _, err := ReadAPIToken(cfg); err == nil {
		t.Error("ReadAPIToken should fail before the token exists")
	}

	first, err := GetAPIToken(cfg)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("token length = %d, want 64", len(first))
	}
	second, err := GetAPIToken(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Error("token changed between calls")
	}
	read, err := ReadAPIToken(cfg)
	if err != nil || read != first {
		t.Errorf("ReadAPIToken = %q, %v; want %q", read, err, first)
	}

	info, err := os.Stat(TokenPath(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	cfg.Server.Token = "configured"
	if tok, _ := GetAPIToken(cfg); tok != "configured" {
		t.Errorf("GetAPIToken = %q, want configured token", tok)
	}
}
