// Package convstate persists a small bounded ring of recent conversation
// turns as a single JSON file, so the orchestrator can detect whether the
// current prompt continues an existing conversation and, if so, hand the
// follow-up planner enough context to skip the full pipeline.
package convstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Turn is one previously-handled prompt, kept just long enough to inform the
// follow-up planner.
type Turn struct {
	Prompt         string    `json:"prompt"`
	Entities       []string  `json:"entities"`
	ContextSummary string    `json:"contextSummary,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// State is the file-backed record: an optional session identifier plus the
// bounded ring of recent turns.
type State struct {
	SessionID string `json:"sessionId,omitempty"`
	Turns     []Turn `json:"turns"`
}

// Store persists State as JSON at a single path. Safe for concurrent use
// within one process; it does not coordinate across processes beyond the
// atomicity of the final rename.
type Store struct {
	mu           sync.Mutex
	path         string
	maxTurnsKept int
}

// NewStore creates a Store writing to path, capping turns at maxTurnsKept
// (spec default 5, from the engine's budgets configuration).
func NewStore(path string, maxTurnsKept int) *Store {
	if maxTurnsKept <= 0 {
		maxTurnsKept = 5
	}
	return &Store{path: path, maxTurnsKept: maxTurnsKept}
}

// Load reads the state file. It returns (nil, nil) if the file does not
// exist or holds no turns — callers treat both as "no recent conversation".
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("convstate: read: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("convstate: unmarshal: %w", err)
	}
	if len(state.Turns) == 0 {
		return nil, nil
	}
	return &state, nil
}

// Append adds turn to the state for sessionID, clearing all prior turns if
// sessionID is non-empty, the existing state has a non-empty sessionId, and
// the two differ (a new conversation started). The ring is then capped at
// maxTurnsKept, dropping the oldest turns first.
func (s *Store) Append(sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}

	var state State
	if existing != nil {
		state = *existing
	}

	if sessionID != "" && state.SessionID != "" && state.SessionID != sessionID {
		state.Turns = nil
	}
	state.SessionID = sessionID

	state.Turns = append(state.Turns, turn)
	if len(state.Turns) > s.maxTurnsKept {
		state.Turns = state.Turns[len(state.Turns)-s.maxTurnsKept:]
	}

	return s.write(state)
}

// Clear removes all turns, leaving sessionID (if any) recorded so the next
// Append can still detect a session change.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(State{SessionID: sessionID})
}

// write serializes state to a temp file in the same directory and renames
// it into place, so a reader never observes a partially-written file.
func (s *Store) write(state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("convstate: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".convstate-*")
	if err != nil {
		return fmt.Errorf("convstate: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("convstate: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("convstate: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("convstate: rename into place: %w", err)
	}
	return nil
}
