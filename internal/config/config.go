package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sgd-notifier/sgdn/internal/peak"
)

// EnvPrefix prefixes every environment override, e.g. SGDN_SERVER_PORT.
const EnvPrefix = "SGDN_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Log       LogConfig       `koanf:"log"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Peak      PeakConfig      `koanf:"peak"`
	Holidays  HolidaysConfig  `koanf:"holidays"`
	Session   SessionConfig   `koanf:"session"`
	Notify    NotifyConfig    `koanf:"notify"`
	Sound     SoundConfig     `koanf:"sound"`
	Sync      SyncConfig      `koanf:"sync"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type ServerConfig struct {
	Port  int    `koanf:"port" validate:"gt=0,lte=65535"`
	Token string `koanf:"token"`
}

type StorageConfig struct {
	DataDir string `koanf:"data_dir" validate:"required"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type SchedulerConfig struct {
	TickInterval time.Duration `koanf:"tick_interval" validate:"gte=1s"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
	Snooze       time.Duration `koanf:"snooze" validate:"gt=0"`
	Timezone     string        `koanf:"timezone"`
}

type PeakConfig struct {
	Start string `koanf:"start" validate:"datetime=15:04"`
	End   string `koanf:"end" validate:"datetime=15:04"`
	Days  int    `koanf:"days" validate:"gt=0"`
}

type HolidaysConfig struct {
	BaseURL    string        `koanf:"base_url" validate:"url"`
	Years      int           `koanf:"years" validate:"gt=0"`
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	RetryAfter time.Duration `koanf:"retry_after"`
}

type SessionConfig struct {
	Backend  string `koanf:"backend" validate:"oneof=memory redis"`
	RedisURL string `koanf:"redis_url" validate:"required_if=Backend redis"`
}

type NotifyConfig struct {
	Renderer string `koanf:"renderer" validate:"oneof=log desktop"`
	Command  string `koanf:"command"`
}

type SoundConfig struct {
	Command string  `koanf:"command"`
	File    string  `koanf:"file"`
	Volume  float64 `koanf:"volume" validate:"gte=0,lte=1"`
}

type SyncConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
}

type MCPConfig struct {
	Enabled bool `koanf:"enabled"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":             4100,
		"server.token":            "",
		"storage.data_dir":        defaultDataDir(),
		"log.level":               "info",
		"scheduler.tick_interval": "1m",
		"scheduler.poll_interval": "1s",
		"scheduler.snooze":        "5m",
		"scheduler.timezone":      "Local",
		"peak.start":              peak.DefaultWindow.Start,
		"peak.end":                peak.DefaultWindow.End,
		"peak.days":               peak.DefaultDaysPerEdge,
		"holidays.base_url":       "https://brasilapi.com.br/api/feriados/v1",
		"holidays.years":          5,
		"holidays.timeout":        "10s",
		"holidays.retry_after":    "1h",
		"session.backend":         "memory",
		"session.redis_url":       "",
		"notify.renderer":         "log",
		"notify.command":          "notify-send",
		"sound.command":           "",
		"sound.file":              "",
		"sound.volume":            1.0,
		"sync.poll_interval":      "2s",
		"mcp.enabled":             false,
	}
}

// Load reads configuration in increasing precedence: built-in defaults, the
// YAML file at Path(), then SGDN_* environment variables. A .env file in the
// working directory is loaded into the environment first.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadFromPath(Path())
}

func loadFromPath(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps SGDN_STORAGE_DATA_DIR to storage.data_dir. Section names are
// single words, so only the first underscore separates section from key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

var validate = validator.New()

// Validate checks value ranges and that the timezone resolves.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Peak.Start >= c.Peak.End {
		return fmt.Errorf("invalid config: peak.start %s must be before peak.end %s", c.Peak.Start, c.Peak.End)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves scheduler.timezone. "Local" and "" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Scheduler.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

// Window returns the configured daily peak window.
func (c Config) Window() peak.Window {
	return peak.Window{Start: c.Peak.Start, End: c.Peak.End}
}

// Path returns the YAML config file location, $XDG_CONFIG_HOME/sgdn/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "sgdn", "config.yaml")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "sgdn-data"
		}
	}
	return filepath.Join(dir, "sgdn")
}
