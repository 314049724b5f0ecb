package app

import (
	"context"
	"time"

	"github.com/fakeyudi/linewheel/internal/automation"
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/kv"
	"github.com/fakeyudi/linewheel/internal/logstore"
	"github.com/fakeyudi/linewheel/internal/session"
)

// Run starts the break scheduler and, for the file backend, watches the
// data directory for writes by other processes. It blocks until ctx is
// done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.StartAutomation()
	defer c.StopAutomation()

	dir, ok := c.store.(*kv.Dir)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return kv.Watch(ctx, dir.Path(), func(key string) {
		if dir.ChangedElsewhere(key) {
			c.onExternalWrite(key)
		}
	})
}

// StartAutomation starts polling for break alerts. The watchdog needs no
// start; it is armed by every state change.
func (c *Coordinator) StartAutomation() { c.breaks.Start() }

// StopAutomation stops polling for break alerts.
func (c *Coordinator) StopAutomation() { c.breaks.Stop() }

func (c *Coordinator) onExternalWrite(key string) {
	switch {
	case key == session.StateKey, key == config.Key:
		if err := c.Reload(); err != nil {
			c.logger.Warn("reload after external write failed", "key", key, "err", err)
		}
	default:
		if _, ok := logstore.LineForKey(key); ok {
			c.mutateNoPersist(func() error { return nil })
		}
	}
}

// PromptOpen reports whether a prompt is waiting for an answer.
func (c *Coordinator) PromptOpen() bool { return c.promptOpen.Load() }

// prompt asks the prompter and reports the answer. Only one prompt is open
// at a time; a newer prompt replaces the open one, which counts as
// declined.
func (c *Coordinator) prompt(message string) bool {
	if c.prompter == nil {
		c.logger.Info("no prompter, declining", "message", message)
		return false
	}
	c.cancelPrompt()
	c.promptMu.Lock()
	defer c.promptMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.mu.Lock()
	c.promptCancel = cancel
	c.promptOpen.Store(true)
	st := c.statusLocked()
	c.mu.Unlock()
	c.emit(st)

	ok := c.prompter.Confirm(ctx, message)

	c.mu.Lock()
	c.promptCancel = nil
	c.promptOpen.Store(false)
	st = c.statusLocked()
	c.mu.Unlock()
	c.emit(st)
	return ok && ctx.Err() == nil
}

func (c *Coordinator) cancelPrompt() {
	c.mu.Lock()
	cancel := c.promptCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Coordinator) onMaxSession(w session.Watch) {
	c.mu.Lock()
	if !c.isWatchLocked(w) {
		c.mu.Unlock()
		return
	}
	action := c.cfg.MaxSessionAction
	c.mu.Unlock()

	if action == config.MaxSessionStop {
		c.stopExpired(w, session.ReasonMaxSession, w.Deadline)
		return
	}
	// The watch is spent once asked, so a declined prompt is not repeated.
	c.mutate(func() error {
		if c.isWatchLocked(w) {
			c.watch = nil
		}
		return nil
	})
	if !c.prompt(automation.MaxSessionMessage) {
		return
	}
	c.stopExpired(w, session.ReasonMaxSessionPrompt, c.clock.Now())
}

// stopExpired stops the session w watched, unless it already ended.
func (c *Coordinator) stopExpired(w session.Watch, reason string, at time.Time) {
	err := c.mutate(func() error {
		r, ok := c.engine.Running(w.Line)
		if !ok || !r.StartedAt.Equal(w.StartedAt) {
			return nil
		}
		if c.isWatchLocked(w) {
			c.watch = nil
		}
		_, err := c.engine.StopAt(w.Line, reason, at)
		return err
	})
	if err != nil {
		c.logger.Error("max-session stop failed", "line", w.Line.String(), "err", err)
	}
}

func (c *Coordinator) onBreak(at string) {
	if !c.prompt(automation.BreakMessage(at)) {
		return
	}
	err := c.mutate(func() error {
		line := c.current
		if _, ok := c.engine.Running(line); ok {
			if _, err := c.engine.Stop(line, session.ReasonBreak); err != nil {
				return err
			}
		}
		if _, err := c.engine.Start(line, session.TaskBreak, ""); err != nil {
			return err
		}
		c.watchLocked(line, false)
		return nil
	})
	if err != nil {
		c.logger.Error("break start failed", "err", err)
	}
}
