package app

import (
	"time"

	"github.com/fakeyudi/linewheel/internal/session"
)

// LineStatus is the display state of one line.
type LineStatus struct {
	Line           session.LineID `json:"line"`
	Name           string         `json:"name"`
	Running        bool           `json:"running"`
	Task           string         `json:"task,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	ElapsedSeconds int64          `json:"elapsedSeconds"`
	Elapsed        string         `json:"elapsed"`
	Memo           string         `json:"memo,omitempty"`
	LastEnded      *session.Ended `json:"lastEnded,omitempty"`
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	Now         time.Time         `json:"now"`
	CurrentLine session.LineID    `json:"currentLine"`
	Lines       []LineStatus      `json:"lines"`
	Undo        *session.UndoInfo `json:"undo,omitempty"`
	PromptOpen  bool              `json:"promptOpen"`
}

// Line returns the status of line.
func (s Status) Line(line session.LineID) (LineStatus, bool) {
	for _, l := range s.Lines {
		if l.Line == line {
			return l, true
		}
	}
	return LineStatus{}, false
}

// Status returns the current view.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Coordinator) statusLocked() Status {
	now := c.clock.Now()
	st := Status{
		Now:         now,
		CurrentLine: c.current,
		Undo:        c.engine.PendingUndo(),
		PromptOpen:  c.promptOpen.Load(),
	}
	for _, l := range c.cfg.LineIDs() {
		name, _ := c.cfg.LineName(l)
		ls := LineStatus{Line: l, Name: name, Elapsed: "-", Memo: c.engine.Memo(l)}
		if r, ok := c.engine.Running(l); ok {
			started := r.StartedAt
			d, _ := c.engine.Elapsed(l, now)
			ls.Running = true
			ls.Task = r.Task
			ls.StartedAt = &started
			ls.ElapsedSeconds = int64(d / time.Second)
			ls.Elapsed = session.FormatDuration(d)
		}
		if le, ok := c.engine.LastEnded(l); ok {
			ls.LastEnded = &le
		}
		st.Lines = append(st.Lines, ls)
	}
	return st
}

// Subscribe registers fn to receive the status after every change. fn
// runs on the goroutine that made the change and must not block. The
// returned func unsubscribes.
func (c *Coordinator) Subscribe(fn func(Status)) func() {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Coordinator) emit(st Status) {
	c.subMu.Lock()
	fns := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
