// Package appstate holds the process-wide toggles that gate order admission.
// The values live in the settings table and are mirrored in memory so every
// request reads them without a round trip.
package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
)

// State is a snapshot of the toggles.
type State struct {
	Maintenance bool `json:"maintenance"`
	TestMode    bool `json:"is_test"`
}

// SettingsStore defines the database methods needed to persist the toggles.
// Satisfied by *database.Queries.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (database.Setting, error)
	UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error)
}

// Store is the injectable holder of State.
type Store struct {
	mu    sync.RWMutex
	state State
	db    SettingsStore
}

func New(db SettingsStore) *Store {
	return &Store{db: db}
}

// Static returns a Store fixed at s that never persists. Used by tests and tools.
func Static(s State) *Store {
	return &Store{state: s}
}

// Load reads both toggles from the settings table. Missing keys are false.
func (s *Store) Load(ctx context.Context) error {
	maintenance, err := s.readBool(ctx, enum.SettingMaintenance)
	if err != nil {
		return err
	}
	testMode, err := s.readBool(ctx, enum.SettingTestMode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = State{Maintenance: maintenance, TestMode: testMode}
	s.mu.Unlock()
	return nil
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) SetMaintenance(ctx context.Context, on bool) (State, error) {
	if err := s.writeBool(ctx, enum.SettingMaintenance, on); err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Maintenance = on
	return s.state, nil
}

func (s *Store) SetTestMode(ctx context.Context, on bool) (State, error) {
	if err := s.writeBool(ctx, enum.SettingTestMode, on); err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TestMode = on
	return s.state, nil
}

func (s *Store) readBool(ctx context.Context, key string) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	setting, err := s.db.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("get setting %s: %w", key, err)
	}
	var v bool
	if err := json.Unmarshal(setting.Value, &v); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) writeBool(ctx context.Context, key string, v bool) error {
	if s.db == nil {
		return nil
	}
	raw, _ := json.Marshal(v)
	if _, err := s.db.UpsertSetting(ctx, database.UpsertSettingParams{Key: key, Value: raw}); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
