package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	secret  bool
	extract func(cfg Config) any
}

// env is the environment variable overriding s.
func (s keySpec) env() string {
	return EnvPrefix + strings.ToUpper(strings.Replace(s.key, ".", "_", 1))
}

// parse converts a raw string into the value written to the YAML file.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	case kBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool value for %s: %w", s.key, err)
		}
		return b, nil
	case kFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value for %s: %w", s.key, err)
		}
		return f, nil
	case kDuration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid duration value for %s: %w", s.key, err)
		}
		return raw, nil
	}
	return raw, nil
}

var specs = []keySpec{
	{key: "server.port", typ: kInt, extract: func(cfg Config) any { return cfg.Server.Port }},
	{key: "server.token", typ: kString, secret: true, extract: func(cfg Config) any { return cfg.Server.Token }},
	{key: "storage.data_dir", typ: kString, extract: func(cfg Config) any { return cfg.Storage.DataDir }},
	{key: "log.level", typ: kString, extract: func(cfg Config) any { return cfg.Log.Level }},
	{key: "scheduler.tick_interval", typ: kDuration, extract: func(cfg Config) any { return cfg.Scheduler.TickInterval }},
	{key: "scheduler.poll_interval", typ: kDuration, extract: func(cfg Config) any { return cfg.Scheduler.PollInterval }},
	{key: "scheduler.snooze", typ: kDuration, extract: func(cfg Config) any { return cfg.Scheduler.Snooze }},
	{key: "scheduler.timezone", typ: kString, extract: func(cfg Config) any { return cfg.Scheduler.Timezone }},
	{key: "peak.start", typ: kString, extract: func(cfg Config) any { return cfg.Peak.Start }},
	{key: "peak.end", typ: kString, extract: func(cfg Config) any { return cfg.Peak.End }},
	{key: "peak.days", typ: kInt, extract: func(cfg Config) any { return cfg.Peak.Days }},
	{key: "holidays.base_url", typ: kString, extract: func(cfg Config) any { return cfg.Holidays.BaseURL }},
	{key: "holidays.years", typ: kInt, extract: func(cfg Config) any { return cfg.Holidays.Years }},
	{key: "holidays.timeout", typ: kDuration, extract: func(cfg Config) any { return cfg.Holidays.Timeout }},
	{key: "holidays.retry_after", typ: kDuration, extract: func(cfg Config) any { return cfg.Holidays.RetryAfter }},
	{key: "session.backend", typ: kString, extract: func(cfg Config) any { return cfg.Session.Backend }},
	{key: "session.redis_url", typ: kString, secret: true, extract: func(cfg Config) any { return cfg.Session.RedisURL }},
	{key: "notify.renderer", typ: kString, extract: func(cfg Config) any { return cfg.Notify.Renderer }},
	{key: "notify.command", typ: kString, extract: func(cfg Config) any { return cfg.Notify.Command }},
	{key: "sound.command", typ: kString, extract: func(cfg Config) any { return cfg.Sound.Command }},
	{key: "sound.file", typ: kString, extract: func(cfg Config) any { return cfg.Sound.File }},
	{key: "sound.volume", typ: kFloat, extract: func(cfg Config) any { return cfg.Sound.Volume }},
	{key: "sync.poll_interval", typ: kDuration, extract: func(cfg Config) any { return cfg.Sync.PollInterval }},
	{key: "mcp.enabled", typ: kBool, extract: func(cfg Config) any { return cfg.MCP.Enabled }},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}
