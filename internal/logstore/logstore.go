// Package logstore persists finalized session records, one ordered list
// per line, on top of a kv.Store.
package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/fakeyudi/linewheel/internal/kv"
	"github.com/fakeyudi/linewheel/internal/session"
)

// KeyPrefix is prepended to the line id to form the storage key.
const KeyPrefix = "timelogs_v2_"

// SearchLimit caps the number of records Search returns.
const SearchLimit = 500

// ErrEntryNotFound is returned by UpdateMemo when no record has the id.
var ErrEntryNotFound = errors.New("log entry not found")

// Key returns the storage key of line's record list.
func Key(line session.LineID) string {
	return KeyPrefix + line.String()
}

// LineForKey reports which line a storage key belongs to.
func LineForKey(key string) (session.LineID, bool) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, false
	}
	l, err := session.ParseLine(rest)
	if err != nil {
		return 0, false
	}
	return l, true
}

// Store reads and writes record lists. Every mutation reads the whole list,
// changes it in memory and writes it back; concurrent writers race with
// last-writer-wins.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
}

// New returns a Store over backend. A nil logger discards diagnostics.
func New(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{kv: backend, logger: logger}
}

// List returns line's records in append order. A list that cannot be
// decoded is treated as empty.
func (s *Store) List(line session.LineID) ([]session.LogEntry, error) {
	data, err := s.kv.Get(Key(line))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read logs for line %s: %w", line, err)
	}
	var entries []session.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("discarding malformed log list", "line", line.String(), "err", err)
		return nil, nil
	}
	return entries, nil
}

func (s *Store) write(line session.LineID, entries []session.LogEntry) error {
	if entries == nil {
		entries = []session.LogEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode logs for line %s: %w", line, err)
	}
	if err := s.kv.Put(Key(line), data); err != nil {
		return fmt.Errorf("failed to write logs for line %s: %w", line, err)
	}
	return nil
}

// Append adds entry to the end of line's list.
func (s *Store) Append(line session.LineID, entry session.LogEntry) error {
	entries, err := s.List(line)
	if err != nil {
		return err
	}
	return s.write(line, append(entries, entry))
}

// Remove deletes the record with id from line's list. Removing an unknown
// id is a no-op.
func (s *Store) Remove(line session.LineID, id string) error {
	entries, err := s.List(line)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return s.write(line, kept)
}

// UpdateMemo replaces the memo of the record with id.
func (s *Store) UpdateMemo(line session.LineID, id, memo string) error {
	entries, err := s.List(line)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Memo = memo
			return s.write(line, entries)
		}
	}
	return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// ListAll concatenates the lists of lines, each in append order.
func (s *Store) ListAll(lines []session.LineID) ([]session.LogEntry, error) {
	var all []session.LogEntry
	for _, l := range lines {
		entries, err := s.List(l)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Clear deletes every record of lines.
func (s *Store) Clear(lines []session.LineID) error {
	for _, l := range lines {
		if err := s.kv.Delete(Key(l)); err != nil {
			return fmt.Errorf("failed to clear logs for line %s: %w", l, err)
		}
	}
	return nil
}

// Merge appends the entries whose id is not already stored and returns how
// many were added. Entries for lines outside lines are skipped.
func (s *Store) Merge(lines []session.LineID, entries []session.LogEntry) (int, error) {
	byLine := make(map[session.LineID][]session.LogEntry)
	for _, e := range entries {
		byLine[e.Line] = append(byLine[e.Line], e)
	}
	added := 0
	for _, l := range lines {
		incoming := byLine[l]
		if len(incoming) == 0 {
			continue
		}
		existing, err := s.List(l)
		if err != nil {
			return added, err
		}
		seen := make(map[string]bool, len(existing))
		for _, e := range existing {
			seen[e.ID] = true
		}
		for _, e := range incoming {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			existing = append(existing, e)
			added++
		}
		if err := s.write(l, existing); err != nil {
			return added, err
		}
	}
	return added, nil
}

// Search returns the records of lines matching query, newest first by
// endedAt, at most limit of them (SearchLimit when limit <= 0). Matching is
// a case-insensitive substring test over task, line id, line name, reason
// and memo. An empty query matches everything.
func (s *Store) Search(lines []session.LineID, query string, limit int) ([]session.LogEntry, error) {
	all, err := s.ListAll(lines)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = SearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []session.LogEntry
	for _, e := range all {
		if q == "" || matches(e, q) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(e session.LogEntry, q string) bool {
	for _, field := range []string{e.Task, e.Line.String(), e.LineName, e.Reason, e.Memo} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
