// Package prefs is the application preferences store: a YAML file on disk,
// defaults merged under whatever the file provides, and an explicit
// subscription API so consumers observe changes without any ambient event
// broadcast.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Notifications toggles per-signal alerts.
type Notifications struct {
	HeartRateAlerts   bool `yaml:"heart_rate_alerts" default:"true"`
	StepGoalReminders bool `yaml:"step_goal_reminders" default:"true"`
}

// DataSync configures background synchronization.
type DataSync struct {
	AutoSync             bool `yaml:"auto_sync" default:"true"`
	SyncFrequencyMinutes int  `yaml:"sync_frequency_minutes" default:"15"`
}

// HeartRate holds heart-rate alerting thresholds.
type HeartRate struct {
	AlertThreshold int `yaml:"alert_threshold" default:"120"`
	RestingTarget  int `yaml:"resting_target" default:"65"`
}

// Preferences is the full user preference set.
type Preferences struct {
	Theme           string        `yaml:"theme" default:"light"`
	DailyStepGoal   int           `yaml:"daily_step_goal" default:"10000"`
	MeasurementUnit string        `yaml:"measurement_unit" default:"metric"`
	Notifications   Notifications `yaml:"notifications"`
	DataSync        DataSync      `yaml:"data_sync"`
	HeartRate       HeartRate     `yaml:"heart_rate"`
}

// DefaultPreferences returns the preference set with every default applied.
func DefaultPreferences() Preferences {
	var p Preferences
	defaults.SetDefaults(&p)
	return p
}

// Listener observes preference changes.
type Listener func(Preferences)

// Store is a file-backed preferences store with change subscriptions.
type Store struct {
	path   string
	logger *logrus.Logger

	mu        sync.Mutex
	current   Preferences
	listeners map[int]Listener
	nextID    int
}

// NewStore loads preferences from path, falling back to defaults when the
// file is missing or unreadable. A nil logger gets a default.
func NewStore(path string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		path:      path,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
	s.current = s.load()
	return s
}

// load reads the file and merges it over defaults. Unmarshalling into a
// pre-defaulted struct leaves absent fields at their default value.
func (s *Store) load() Preferences {
	p := DefaultPreferences()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p
	}
	if err != nil {
		s.logger.WithError(err).WithField("path", s.path).Error("Reading preferences failed, using defaults")
		return p
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		s.logger.WithError(err).WithField("path", s.path).Error("Parsing preferences failed, using defaults")
		return DefaultPreferences()
	}
	return p
}

// Get returns the current preference snapshot.
func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies patch to a copy of the current preferences, persists the
// result, and notifies every subscriber with the new snapshot.
func (s *Store) Update(patch func(*Preferences)) (Preferences, error) {
	s.mu.Lock()
	next := s.current
	patch(&next)

	if err := s.persist(next); err != nil {
		s.mu.Unlock()
		return s.current, err
	}
	s.current = next

	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	return next, nil
}

// Subscribe registers a change listener; the returned function removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) persist(p Preferences) error {
	raw, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating preferences directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
