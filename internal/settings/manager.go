// Package settings provides cached access to the user's notification sound
// preferences stored in SQLite.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Storage keys.
const (
	KeySound  = "sound.file"
	KeyVolume = "sound.volume"
)

// ErrInvalid wraps validation failures of an Update.
var ErrInvalid = errors.New("invalid settings")

// SettingsStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type SettingsStore interface {
	SetSetting(key, value string) error
	GetAllSettings() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Settings are the user's sound preferences. Sound is a file path or other
// resource reference understood by the player; empty means silent.
type Settings struct {
	Sound  string  `json:"sound"`
	Volume float64 `json:"volume"`
}

// Update holds optional fields for a partial change.
type Update struct {
	Sound  *string  `json:"sound,omitempty" validate:"omitempty,max=1024"`
	Volume *float64 `json:"volume,omitempty" validate:"omitempty,gte=0,lte=1"`
}

var validate = validator.New()

// Manager caches settings read from the store for a TTL.
type Manager struct {
	store    SettingsStore
	defaults Settings
	clock    Clock
	ttl      time.Duration

	mu       sync.RWMutex
	cached   *Settings
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL. defaults fill in
// keys that were never set.
func NewManager(store SettingsStore, defaults Settings) *Manager {
	return NewManagerWithClock(store, defaults, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store SettingsStore, defaults Settings, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store:    store,
		defaults: defaults,
		clock:    clock,
		ttl:      ttl,
	}
}

// Get returns the current settings.
func (m *Manager) Get() (Settings, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		s := *m.cached
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return *m.cached, nil
	}

	keys, err := m.store.GetAllSettings()
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	s := m.build(keys)
	m.cached = &s
	m.cachedAt = m.clock.Now()
	return s, nil
}

// Apply validates and persists u, then returns the resulting settings.
func (m *Manager) Apply(u Update) (Settings, error) {
	if err := validate.Struct(u); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	m.mu.Lock()
	if u.Sound != nil {
		if err := m.store.SetSetting(KeySound, *u.Sound); err != nil {
			m.mu.Unlock()
			return Settings{}, fmt.Errorf("setting %s: %w", KeySound, err)
		}
	}
	if u.Volume != nil {
		if err := m.store.SetSetting(KeyVolume, strconv.FormatFloat(*u.Volume, 'f', -1, 64)); err != nil {
			m.mu.Unlock()
			return Settings{}, fmt.Errorf("setting %s: %w", KeyVolume, err)
		}
	}
	m.cached = nil
	m.mu.Unlock()

	return m.Get()
}

func (m *Manager) build(keys map[string]string) Settings {
	s := m.defaults
	if v, ok := keys[KeySound]; ok {
		s.Sound = v
	}
	if v, ok := keys[KeyVolume]; ok {
		vol, err := strconv.ParseFloat(v, 64)
		if err != nil || vol < 0 || vol > 1 {
			slog.Warn("malformed volume setting, using default", "value", v, "error", err)
		} else {
			s.Volume = vol
		}
	}
	return s
}
