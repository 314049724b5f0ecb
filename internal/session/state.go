package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fakeyudi/linewheel/internal/kv"
)

// StateKey is the key holding the engine snapshot.
const StateKey = "wheel_state_v2"

// ErrNoState is returned by Load when no snapshot has been saved.
var ErrNoState = errors.New("no saved engine state")

// Watch is the max-session deadline of the session the watchdog follows.
type Watch struct {
	Line      LineID    `json:"line"`
	StartedAt time.Time `json:"startedAt"`
	Deadline  time.Time `json:"deadline"`
}

// Snapshot is the persisted form of an Engine plus the selected line.
// Separate CLI invocations share state through it.
type Snapshot struct {
	Sessions    map[LineID]Running `json:"sessions"`
	LastEnded   map[LineID]Ended   `json:"lastEnded,omitempty"`
	Undo        *UndoInfo          `json:"undo,omitempty"`
	Watch       *Watch             `json:"watch,omitempty"`
	CurrentLine LineID             `json:"currentLine"`
	SavedAt     time.Time          `json:"savedAt"`
}

// Snapshot captures the engine state. CurrentLine and Watch are left for
// the caller.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Sessions:  make(map[LineID]Running),
		LastEnded: make(map[LineID]Ended),
		Undo:      e.PendingUndo(),
		SavedAt:   e.clock.Now(),
	}
	for _, l := range AllLines {
		if r, ok := e.slots[l].(Running); ok {
			s.Sessions[l] = r
		}
		if le := e.lastEnded[l]; le != nil {
			s.LastEnded[l] = *le
		}
	}
	return s
}

// Restore replaces the engine state with s. Entries for lines outside the
// alphabet are ignored.
func (e *Engine) Restore(s Snapshot) {
	for i := range e.slots {
		e.slots[i] = Idle{}
		e.lastEnded[i] = nil
	}
	for l, r := range s.Sessions {
		if l.Valid() {
			e.slots[l] = r
		}
	}
	for l, le := range s.LastEnded {
		if l.Valid() {
			e.lastEnded[l] = &le
		}
	}
	e.undo = nil
	if s.Undo != nil && s.Undo.Line.Valid() {
		u := *s.Undo
		e.undo = &u
	}
}

// StateStore persists engine snapshots.
type StateStore interface {
	Save(s *Snapshot) error
	Load() (*Snapshot, error) // returns ErrNoState if none exists
	Delete() error
}

type kvStateStore struct {
	store kv.Store
}

// NewStateStore returns a StateStore writing to StateKey in store.
func NewStateStore(store kv.Store) StateStore {
	return &kvStateStore{store: store}
}

func (k *kvStateStore) Save(s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to persist engine state: %w", err)
	}
	if err := k.store.Put(StateKey, data); err != nil {
		return fmt.Errorf("failed to persist engine state: %w", err)
	}
	return nil
}

func (k *kvStateStore) Load() (*Snapshot, error) {
	data, err := k.store.Get(StateKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to read engine state: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse engine state: %w", err)
	}
	return &s, nil
}

func (k *kvStateStore) Delete() error {
	if err := k.store.Delete(StateKey); err != nil {
		return fmt.Errorf("failed to delete engine state: %w", err)
	}
	return nil
}
