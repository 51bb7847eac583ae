package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	activeFile = "active.json"
)

// ActiveState is the persisted pointer to the last active session, used
// to resume the same canvas on the next startup.
type ActiveState struct {
	// SessionID is the id of the session that was active on shutdown.
	SessionID string `json:"session_id"`
}

// LoadActiveState loads the active-session pointer from a target
// .weave/active.json. Returns nil, nil if no pointer exists (fresh
// install or explicitly cleared).
// If overrideDir is non-empty, it is used instead of the default ~/.weave/ location.
func (m *Manager) LoadActiveState(overrideDir string) (*ActiveState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, activeFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading active session state: %w", err)
	}

	state := &ActiveState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing active session state: %w", err)
	}

	return state, nil
}

// SaveActiveState persists the active-session pointer to a target
// .weave/active.json.
func (m *Manager) SaveActiveState(state *ActiveState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil active session state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling active session state: %w", err)
	}

	path := filepath.Join(dir, activeFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing active session state: %w", err)
	}

	return nil
}

// ClearActiveState removes the active-session pointer. Clearing when no
// pointer exists is a no-op.
func (m *Manager) ClearActiveState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, activeFile)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing active session state: %w", err)
	}
	return nil
}
