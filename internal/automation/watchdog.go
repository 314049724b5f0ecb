// Package automation holds the two timers that act on sessions without a
// user event: the max-session watchdog and the break-time scheduler. Both
// only call back into their owner; neither touches session state.
package automation

import (
	"time"

	"github.com/fakeyudi/linewheel/internal/session"
	"github.com/fakeyudi/linewheel/internal/timer"
)

// MaxSessionMessage is the confirmation shown when a session reaches the
// limit under the prompt policy.
const MaxSessionMessage = "計測が上限時間に達しました。終了しますか？"

// Watchdog watches a single session at a time.
type Watchdog struct {
	clock  timer.Clock
	slot   *timer.Slot
	onFire func(session.Watch)
}

// NewWatchdog returns an unarmed watchdog that calls onFire from the timer
// goroutine.
func NewWatchdog(clock timer.Clock, onFire func(session.Watch)) *Watchdog {
	return &Watchdog{clock: clock, slot: timer.NewSlot(clock), onFire: onFire}
}

// WatchFor returns the watch of the session on line started at startedAt,
// with the limit counted from from. ok is false when limit is not positive,
// which disables the watchdog.
func WatchFor(line session.LineID, startedAt, from time.Time, limit time.Duration) (w session.Watch, ok bool) {
	if limit <= 0 {
		return session.Watch{}, false
	}
	return session.Watch{Line: line, StartedAt: startedAt, Deadline: from.Add(limit)}, true
}

// Arm replaces any pending timer with one that fires at w.Deadline. A
// deadline already passed fires immediately. The owner must check that
// the line still runs the session w was armed for.
func (w *Watchdog) Arm(watch session.Watch) {
	remaining := watch.Deadline.Sub(w.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	w.slot.Reschedule(remaining, func() { w.onFire(watch) })
}

// Cancel drops the pending timer, if any.
func (w *Watchdog) Cancel() { w.slot.Cancel() }

// Armed reports whether a fire is pending.
func (w *Watchdog) Armed() bool { return w.slot.Pending() }
