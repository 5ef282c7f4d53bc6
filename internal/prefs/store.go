// Package prefs is the key-value preference store: a single user
// record read and written as a whole JSON object, kept in a file next
// to the database.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TimeUnset is the sentinel for "no preferred reminder time": callers
// fall back to the default noon reminder.
const TimeUnset = -1

// User holds the per-installation preferences.
type User struct {
	Name           string `json:"name"`
	ReminderHour   int    `json:"reminderHour"`
	ReminderMinute int    `json:"reminderMinute"`
}

// HasReminderTime reports whether the user picked an explicit reminder
// time.
func (u User) HasReminderTime() bool {
	return u.ReminderHour > TimeUnset && u.ReminderMinute > TimeUnset
}

// NewUser returns a user with the reminder time unset.
func NewUser(name string) User {
	return User{Name: name, ReminderHour: TimeUnset, ReminderMinute: TimeUnset}
}

// Store reads and writes the user record as a whole object. Partial
// updates are not supported.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create prefs dir %q: %w", dir, err)
		}
	}
	return &Store{path: path}, nil
}

// Get returns the stored user, or nil if none has been saved yet.
func (s *Store) Get() (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode prefs: %w", err)
	}
	return &user, nil
}

// Set replaces the stored user record.
func (s *Store) Set(user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// Delete removes the stored user record, if any.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete prefs: %w", err)
	}
	return nil
}
