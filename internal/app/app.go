// Package app hosts the Coordinator: the single owner of the session
// engine, the selected line and the prompt state. Every surface (CLI
// commands, terminal HUD, HTTP server) drives the engine through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fakeyudi/linewheel/internal/automation"
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/kv"
	"github.com/fakeyudi/linewheel/internal/logstore"
	"github.com/fakeyudi/linewheel/internal/session"
	"github.com/fakeyudi/linewheel/internal/timer"
)

// Prompter asks the user a yes/no question. Confirm blocks until the user
// answers or ctx is cancelled, which counts as "no".
type Prompter interface {
	Confirm(ctx context.Context, message string) bool
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, message string) bool

func (f PrompterFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

// Options configures a Coordinator. Store is required.
type Options struct {
	Store      kv.Store
	Variant    config.Variant
	MemoPolicy session.MemoPolicy
	SameTask   session.SameTaskPolicy
	UndoWindow time.Duration
	BreakPoll  time.Duration
	Clock      timer.Clock
	NewID      func() string
	// Prompter answers watchdog and break prompts. Without one, prompts
	// are declined.
	Prompter Prompter
	Logger   *slog.Logger
}

// Coordinator serializes every engine operation behind one mutex. Timer
// callbacks and prompts re-enter through the same methods; prompts are
// asked without holding the mutex.
type Coordinator struct {
	clock    timer.Clock
	logger   *slog.Logger
	store    kv.Store
	logs     *logstore.Store
	configs  *config.Store
	states   session.StateStore
	prompter Prompter

	watchdog *automation.Watchdog
	breaks   *automation.BreakScheduler
	undoSlot *timer.Slot

	promptOpen atomic.Bool
	// promptMu is held while a prompt is open.
	promptMu sync.Mutex

	mu           sync.Mutex
	cfg          config.AppConfig
	engine       *session.Engine
	current      session.LineID
	watch        *session.Watch
	promptCancel context.CancelFunc

	subMu     sync.Mutex
	subs      map[int]func(Status)
	nextSubID int
}

// New loads the configuration and the persisted engine state from
// opts.Store. A watched session that ran past its deadline while no
// process was running is closed at the deadline.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("app: a store is required")
	}
	if opts.Clock == nil {
		opts.Clock = timer.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Variant == "" {
		opts.Variant = config.VariantSix
	}

	c := &Coordinator{
		clock:    opts.Clock,
		logger:   opts.Logger,
		store:    opts.Store,
		logs:     logstore.New(opts.Store, opts.Logger),
		configs:  config.NewStore(opts.Store, opts.Variant, opts.Logger),
		states:   session.NewStateStore(opts.Store),
		prompter: opts.Prompter,
		undoSlot: timer.NewSlot(opts.Clock),
		subs:     make(map[int]func(Status)),
	}
	c.cfg = c.configs.Load()
	c.engine = session.NewEngine(session.Options{
		Logs:       c.logs,
		Lines:      session.LineNamerFunc(func(l session.LineID) (string, bool) { return c.cfg.LineName(l) }),
		Clock:      opts.Clock,
		NewID:      opts.NewID,
		MemoPolicy: opts.MemoPolicy,
		SameTask:   opts.SameTask,
		UndoWindow: opts.UndoWindow,
	})
	c.watchdog = automation.NewWatchdog(opts.Clock, c.onMaxSession)
	c.breaks = automation.NewBreakScheduler(automation.BreakOptions{
		Clock:   opts.Clock,
		Poll:    opts.BreakPoll,
		Alerts:  c.cfg.BreakAlerts,
		Busy:    c.promptOpen.Load,
		OnAlert: c.onBreak,
		Logger:  opts.Logger,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadStateLocked(); err != nil {
		return nil, err
	}
	if err := c.catchUpLocked(); err != nil {
		return nil, err
	}
	c.rearmLocked()
	return c, nil
}

// Close stops every timer and closes the store.
func (c *Coordinator) Close() error {
	c.breaks.Stop()
	c.watchdog.Cancel()
	c.undoSlot.Cancel()
	c.cancelPrompt()
	return c.store.Close()
}

// Logs exposes the log store.
func (c *Coordinator) Logs() *logstore.Store { return c.logs }

// Configs exposes the configuration store, for templates.
func (c *Coordinator) Configs() *config.Store { return c.configs }

// Config returns a copy of the active configuration.
func (c *Coordinator) Config() config.AppConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// Lines returns the configured lines.
func (c *Coordinator) Lines() []session.LineID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.LineIDs()
}

func (c *Coordinator) loadStateLocked() error {
	snap, err := c.states.Load()
	switch {
	case errors.Is(err, session.ErrNoState):
		snap = &session.Snapshot{}
	case err != nil:
		c.logger.Warn("discarding unreadable engine state", "err", err)
		snap = &session.Snapshot{}
	}
	c.engine.Restore(*snap)
	c.current = snap.CurrentLine
	c.watch = snap.Watch
	if _, ok := c.cfg.Lines[c.current]; !ok {
		ids := c.cfg.LineIDs()
		if len(ids) == 0 {
			return errors.New("configuration has no lines")
		}
		c.current = ids[0]
	}
	return nil
}

func (c *Coordinator) persistLocked() error {
	snap := c.engine.Snapshot()
	snap.CurrentLine = c.current
	snap.Watch = c.watch
	return c.states.Save(&snap)
}

// catchUpLocked closes the watched session when its deadline passed
// under the stop policy.
func (c *Coordinator) catchUpLocked() error {
	w := c.watch
	if w == nil || c.cfg.MaxSessionAction != config.MaxSessionStop || !c.watchValidLocked(*w) {
		return nil
	}
	if c.clock.Now().Before(w.Deadline) {
		return nil
	}
	entry, err := c.engine.StopAt(w.Line, session.ReasonMaxSession, w.Deadline)
	if err != nil {
		return err
	}
	c.watch = nil
	c.logger.Info("closed session past its limit", "line", w.Line.String(), "task", entry.Task)
	return c.persistLocked()
}

// watchValidLocked reports whether w still follows the session running on
// the selected line with the watchdog enabled.
func (c *Coordinator) watchValidLocked(w session.Watch) bool {
	r, ok := c.engine.Running(w.Line)
	return ok && w.Line == c.current && r.StartedAt.Equal(w.StartedAt) && c.cfg.MaxSession() > 0
}

// isWatchLocked reports whether w is the current watch.
func (c *Coordinator) isWatchLocked(w session.Watch) bool {
	cur := c.watch
	return cur != nil && cur.Line == w.Line && cur.StartedAt.Equal(w.StartedAt) && cur.Deadline.Equal(w.Deadline)
}

// watchLocked points the watchdog at the session running on line, if line
// is selected. A session that is already watched keeps its deadline unless
// restart is set; otherwise the full limit counts from now.
func (c *Coordinator) watchLocked(line session.LineID, restart bool) {
	r, ok := c.engine.Running(line)
	if !ok || line != c.current {
		return
	}
	if w := c.watch; !restart && w != nil && w.Line == line && w.StartedAt.Equal(r.StartedAt) {
		return
	}
	c.watch = nil
	if w, ok := automation.WatchFor(line, r.StartedAt, c.clock.Now(), c.cfg.MaxSession()); ok {
		c.watch = &w
	}
}

// rearmLocked drops a watch that no longer applies (the session ended,
// another line was selected, the limit was disabled), then points the
// watchdog at the remaining watch and the undo expiry timer at the
// pending undo.
func (c *Coordinator) rearmLocked() {
	if w := c.watch; w != nil && !c.watchValidLocked(*w) {
		c.watch = nil
	}
	if c.watch != nil {
		c.watchdog.Arm(*c.watch)
	} else {
		c.watchdog.Cancel()
	}
	if u := c.engine.PendingUndo(); u != nil {
		c.undoSlot.Reschedule(u.ExpiresAt.Sub(c.clock.Now()), c.onUndoExpired)
	} else {
		c.undoSlot.Cancel()
	}
}

// mutate runs fn under the mutex, persists whatever fn changed (even when
// it fails partway), re-arms the timers and notifies subscribers.
func (c *Coordinator) mutate(fn func() error) error {
	c.mu.Lock()
	err := fn()
	if perr := c.persistLocked(); perr != nil && err == nil {
		err = perr
	}
	c.rearmLocked()
	st := c.statusLocked()
	c.mu.Unlock()
	c.emit(st)
	return err
}

func (c *Coordinator) lineConfigured(line session.LineID) error {
	if _, ok := c.cfg.Lines[line]; !ok {
		return fmt.Errorf("%w: %s", session.ErrUnknownLine, line)
	}
	return nil
}

// SelectLine makes line the current line. Moving to another line cancels
// the watchdog; it is armed again by the next start on the new line.
func (c *Coordinator) SelectLine(line session.LineID) error {
	return c.mutate(func() error {
		if err := c.lineConfigured(line); err != nil {
			return err
		}
		c.current = line
		return nil
	})
}

// CurrentLine returns the selected line.
func (c *Coordinator) CurrentLine() session.LineID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start begins task on line, finalizing whatever ran there. It returns the
// finalized record, if any.
func (c *Coordinator) Start(line session.LineID, task, memo string) (*session.LogEntry, error) {
	var entry *session.LogEntry
	err := c.mutate(func() error {
		var err error
		entry, err = c.engine.Start(line, task, memo)
		if err != nil {
			return err
		}
		c.watchLocked(line, false)
		return nil
	})
	return entry, err
}

// Stop ends the session on line. Stopping an idle line returns nil.
func (c *Coordinator) Stop(line session.LineID, reason string) (*session.LogEntry, error) {
	var entry *session.LogEntry
	err := c.mutate(func() error {
		var err error
		entry, err = c.engine.Stop(line, reason)
		return err
	})
	return entry, err
}

// UpdateMemo changes the memo of the session on line per the memo policy.
func (c *Coordinator) UpdateMemo(line session.LineID, memo string) (*session.LogEntry, error) {
	var entry *session.LogEntry
	err := c.mutate(func() error {
		var err error
		entry, err = c.engine.UpdateMemo(line, memo)
		if err != nil {
			return err
		}
		c.watchLocked(line, false)
		return nil
	})
	return entry, err
}

// Undo reverses the pending termination, if any. A resumed session on the
// selected line gets the full limit again.
func (c *Coordinator) Undo() (*session.UndoInfo, error) {
	var u *session.UndoInfo
	err := c.mutate(func() error {
		var err error
		u, err = c.engine.Undo()
		if err != nil || u == nil {
			return err
		}
		c.watchLocked(u.Line, true)
		return nil
	})
	return u, err
}

// Shutdown starts the 立ち下げ task on line.
func (c *Coordinator) Shutdown(line session.LineID) (*session.LogEntry, error) {
	return c.Start(line, session.TaskShutdown, "")
}

// EndOfDay stops every running line with reason 終業 and returns the
// records. The undo buffer holds the last of them.
func (c *Coordinator) EndOfDay() ([]session.LogEntry, error) {
	var out []session.LogEntry
	err := c.mutate(func() error {
		for _, l := range c.cfg.LineIDs() {
			entry, err := c.engine.Stop(l, session.ReasonEndOfDay)
			if err != nil {
				return err
			}
			if entry != nil {
				out = append(out, *entry)
			}
		}
		return nil
	})
	return out, err
}

// CenterAction reports what CenterClick did.
type CenterAction string

const (
	CenterStopped      CenterAction = "stopped"
	CenterResumed      CenterAction = "resumed"
	CenterStarted      CenterAction = "started"
	CenterOpenLineRing CenterAction = "openLineRing"
	CenterNothing      CenterAction = "none"
)

// CenterClick is the wheel's center button: it stops the current line if
// it is running, and otherwise applies the configured idle action.
func (c *Coordinator) CenterClick() (CenterAction, error) {
	action := CenterNothing
	err := c.mutate(func() error {
		line := c.current
		if _, ok := c.engine.Running(line); ok {
			_, err := c.engine.Stop(line, "")
			action = CenterStopped
			return err
		}
		switch c.cfg.CenterIdleAction {
		case config.CenterResume:
			last, ok := c.engine.LastEnded(line)
			if !ok || c.clock.Now().Sub(last.EndedAt) > c.cfg.QuickResume() {
				return nil
			}
			action = CenterResumed
			if _, err := c.engine.Start(line, last.Task, ""); err != nil {
				return err
			}
			c.watchLocked(line, false)
		case config.CenterStartDefault:
			task, ok := c.cfg.DefaultTask(line)
			if !ok {
				return nil
			}
			action = CenterStarted
			if _, err := c.engine.Start(line, task, ""); err != nil {
				return err
			}
			c.watchLocked(line, false)
		case config.CenterOpenLineRing:
			action = CenterOpenLineRing
		}
		return nil
	})
	return action, err
}

// HandleKey applies the keyboard surface: a digit selects the n-th
// configured line, space stops the current line, esc dismisses an open
// prompt. Unknown keys are ignored.
func (c *Coordinator) HandleKey(key string) error {
	switch key {
	case " ", "space":
		line := c.CurrentLine()
		_, err := c.Stop(line, "")
		return err
	case "esc":
		c.cancelPrompt()
		return nil
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		ids := c.Lines()
		n := int(key[0] - '1')
		if n < len(ids) {
			return c.SelectLine(ids[n])
		}
	}
	return nil
}

// Reload re-reads the configuration and engine state written by another
// process.
func (c *Coordinator) Reload() error {
	return c.mutateNoPersist(func() error {
		c.cfg = c.configs.Load()
		c.breaks.SetAlerts(c.cfg.BreakAlerts)
		return c.loadStateLocked()
	})
}

func (c *Coordinator) mutateNoPersist(fn func() error) error {
	c.mu.Lock()
	err := fn()
	c.rearmLocked()
	st := c.statusLocked()
	c.mu.Unlock()
	c.emit(st)
	return err
}

func (c *Coordinator) onUndoExpired() {
	c.mutateNoPersist(func() error {
		c.engine.PendingUndo()
		return nil
	})
}
