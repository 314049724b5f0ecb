// Package session owns the per-line tracking state machine: which task each
// line is running, the log records produced when a session ends, and the
// single-slot undo buffer.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/linewheel/internal/timer"
)

var (
	// ErrUnknownLine is returned for a line id outside the configured set.
	ErrUnknownLine = errors.New("unknown line")
	// ErrEmptyTask is returned by Start when no task label is given.
	ErrEmptyTask = errors.New("task must not be empty")
)

// DefaultUndoWindow is how long a termination stays undoable.
const DefaultUndoWindow = 3 * time.Second

// MemoPolicy selects what UpdateMemo does to a running session.
type MemoPolicy string

const (
	// MemoInPlace replaces the running session's memo without logging.
	MemoInPlace MemoPolicy = "inplace"
	// MemoSplit ends the running session and restarts the same task with
	// the new memo, so each memo gets its own log record.
	MemoSplit MemoPolicy = "split"
)

// SameTaskPolicy selects what Start does when the requested task is
// already running on the line.
type SameTaskPolicy string

const (
	// SameTaskSplit finalizes and restarts, producing a log split.
	SameTaskSplit SameTaskPolicy = "split"
	// SameTaskIgnore leaves the running session untouched.
	SameTaskIgnore SameTaskPolicy = "ignore"
)

// LogSink receives finalized records and deletes them on undo.
type LogSink interface {
	Append(line LineID, entry LogEntry) error
	Remove(line LineID, id string) error
}

// LineNamer resolves the display name of a configured line. ok is false
// for lines the active configuration does not define.
type LineNamer interface {
	LineName(line LineID) (name string, ok bool)
}

// LineNamerFunc adapts a function to LineNamer.
type LineNamerFunc func(LineID) (string, bool)

func (f LineNamerFunc) LineName(l LineID) (string, bool) { return f(l) }

// Options configures an Engine. Logs and Lines are required.
type Options struct {
	Logs       LogSink
	Lines      LineNamer
	Clock      timer.Clock
	NewID      func() string
	MemoPolicy MemoPolicy
	SameTask   SameTaskPolicy
	UndoWindow time.Duration
}

// Engine is the session state machine. It is not safe for concurrent use;
// callers serialize access.
type Engine struct {
	logs       LogSink
	lines      LineNamer
	clock      timer.Clock
	newID      func() string
	memoPolicy MemoPolicy
	sameTask   SameTaskPolicy
	undoWindow time.Duration

	slots     [MaxLines]State
	lastEnded [MaxLines]*Ended
	undo      *UndoInfo
}

// NewEngine returns an Engine with every line Idle.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		logs:       opts.Logs,
		lines:      opts.Lines,
		clock:      opts.Clock,
		newID:      opts.NewID,
		memoPolicy: opts.MemoPolicy,
		sameTask:   opts.SameTask,
		undoWindow: opts.UndoWindow,
	}
	if e.clock == nil {
		e.clock = timer.Real()
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}
	if e.memoPolicy == "" {
		e.memoPolicy = MemoInPlace
	}
	if e.sameTask == "" {
		e.sameTask = SameTaskSplit
	}
	if e.undoWindow <= 0 {
		e.undoWindow = DefaultUndoWindow
	}
	for i := range e.slots {
		e.slots[i] = Idle{}
	}
	return e
}

func (e *Engine) lineName(line LineID) (string, error) {
	if !line.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	name, ok := e.lines.LineName(line)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	return name, nil
}

// Start begins task on line. A running session on the line is finalized
// first with endedAt equal to the new session's startedAt, and the undo
// buffer is armed with UndoAutoStop. The finalized record, if any, is
// returned.
func (e *Engine) Start(line LineID, task, memo string) (*LogEntry, error) {
	return e.start(line, task, memo, false)
}

func (e *Engine) start(line LineID, task, memo string, force bool) (*LogEntry, error) {
	name, err := e.lineName(line)
	if err != nil {
		return nil, err
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrEmptyTask
	}

	now := e.clock.Now()
	var finalized *LogEntry
	if r, ok := e.slots[line].(Running); ok {
		if !force && e.sameTask == SameTaskIgnore && r.Task == task && (memo == "" || memo == r.Memo) {
			return nil, nil
		}
		entry := LogEntry{
			ID:        e.newID(),
			Line:      line,
			LineName:  name,
			Task:      r.Task,
			StartedAt: r.StartedAt,
			EndedAt:   now,
			Memo:      r.Memo,
		}
		if err := e.finalize(line, &entry, UndoAutoStop, now); err != nil {
			return nil, err
		}
		finalized = &entry
	}

	e.slots[line] = Running{Task: task, StartedAt: now, Memo: memo}
	return finalized, nil
}

// Stop ends the running session on line and returns its record. Stopping
// an idle line is a no-op and returns nil.
func (e *Engine) Stop(line LineID, reason string) (*LogEntry, error) {
	return e.StopAt(line, reason, e.clock.Now())
}

// StopAt is Stop with the record ending at `at` instead of now. It is used
// to close a session that ran past its limit while nothing was watching.
// at is clamped to [startedAt, now].
func (e *Engine) StopAt(line LineID, reason string, at time.Time) (*LogEntry, error) {
	name, err := e.lineName(line)
	if err != nil {
		return nil, err
	}
	r, ok := e.slots[line].(Running)
	if !ok {
		return nil, nil
	}

	now := e.clock.Now()
	if at.After(now) {
		at = now
	}
	entry := LogEntry{
		ID:        e.newID(),
		Line:      line,
		LineName:  name,
		Task:      r.Task,
		StartedAt: r.StartedAt,
		EndedAt:   at,
		Reason:    reason,
		Memo:      r.Memo,
	}
	if err := e.finalize(line, &entry, UndoStop, now); err != nil {
		return nil, err
	}
	e.slots[line] = Idle{}
	return &entry, nil
}

// finalize persists entry and arms the undo buffer, replacing whatever
// was pending.
func (e *Engine) finalize(line LineID, entry *LogEntry, kind UndoKind, now time.Time) error {
	// A wall clock stepped backwards must not produce endedAt < startedAt.
	if entry.EndedAt.Before(entry.StartedAt) {
		entry.EndedAt = entry.StartedAt
	}
	if err := e.logs.Append(line, *entry); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	e.lastEnded[line] = &Ended{Task: entry.Task, EndedAt: entry.EndedAt}
	e.undo = &UndoInfo{
		Kind:      kind,
		Line:      line,
		Log:       *entry,
		ExpiresAt: now.Add(e.undoWindow),
	}
	return nil
}

// UpdateMemo changes the memo of the running session on line according to
// the memo policy. On an idle line the memo is dropped. Under MemoSplit
// the record of the session that was split off is returned.
func (e *Engine) UpdateMemo(line LineID, memo string) (*LogEntry, error) {
	if _, err := e.lineName(line); err != nil {
		return nil, err
	}
	r, ok := e.slots[line].(Running)
	if !ok {
		return nil, nil
	}
	if e.memoPolicy == MemoSplit {
		return e.start(line, r.Task, memo, true)
	}
	r.Memo = memo
	e.slots[line] = r
	return nil, nil
}

// Undo reverses the pending termination: the record is deleted from the
// log and the line runs the undone task again from its original start.
// It returns the consumed UndoInfo, or nil when nothing is pending.
func (e *Engine) Undo() (*UndoInfo, error) {
	u := e.PendingUndo()
	if u == nil {
		return nil, nil
	}
	if err := e.logs.Remove(u.Line, u.Log.ID); err != nil {
		return nil, fmt.Errorf("remove log: %w", err)
	}
	e.slots[u.Line] = Running{Task: u.Log.Task, StartedAt: u.Log.StartedAt, Memo: u.Log.Memo}
	if le := e.lastEnded[u.Line]; le != nil && le.Task == u.Log.Task && le.EndedAt.Equal(u.Log.EndedAt) {
		e.lastEnded[u.Line] = nil
	}
	e.undo = nil
	return u, nil
}

// PendingUndo returns the undoable termination, or nil if there is none or
// its window has passed.
func (e *Engine) PendingUndo() *UndoInfo {
	if e.undo == nil {
		return nil
	}
	if !e.clock.Now().Before(e.undo.ExpiresAt) {
		e.undo = nil
		return nil
	}
	u := *e.undo
	return &u
}

// ClearUndo drops the pending termination.
func (e *Engine) ClearUndo() { e.undo = nil }

// State returns the state of line. Lines outside the alphabet are Idle.
func (e *Engine) State(line LineID) State {
	if !line.Valid() {
		return Idle{}
	}
	return e.slots[line]
}

// Running returns the running session of line, if any.
func (e *Engine) Running(line LineID) (Running, bool) {
	r, ok := e.State(line).(Running)
	return r, ok
}

// Elapsed returns now - startedAt for a running line; ok is false when idle.
func (e *Engine) Elapsed(line LineID, now time.Time) (d time.Duration, ok bool) {
	r, ok := e.Running(line)
	if !ok {
		return 0, false
	}
	return now.Sub(r.StartedAt), true
}

// LastEnded returns the most recently finalized task of line.
func (e *Engine) LastEnded(line LineID) (Ended, bool) {
	if !line.Valid() || e.lastEnded[line] == nil {
		return Ended{}, false
	}
	return *e.lastEnded[line], true
}

// Memo returns the memo that Stop would record for line: the running
// session's memo, or "" when the line is idle.
func (e *Engine) Memo(line LineID) string {
	r, _ := e.Running(line)
	return r.Memo
}
