// Package timer provides the wall clock and the single-slot cancellable
// timer used by the session engine and its automation.
package timer

import (
	"sync"
	"time"
)

// Clock is the time source. Wall-clock changes are not compensated for.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a scheduled callback. It reports whether the call
// prevented the callback from running.
type Stopper interface {
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Slot holds at most one pending callback. Reschedule cancels whatever is
// pending before registering the new callback, so callbacks never pile up.
type Slot struct {
	clock Clock

	mu      sync.Mutex
	pending Stopper
	gen     uint64
}

// NewSlot returns an empty Slot driven by c.
func NewSlot(c Clock) *Slot {
	return &Slot{clock: c}
}

// Reschedule cancels the pending callback, if any, and schedules f to run
// after d. A callback that was already firing when it got superseded is
// suppressed by the generation check.
func (s *Slot) Reschedule(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.pending = nil
		s.mu.Unlock()
		f()
	})
}

// Cancel drops the pending callback. It is safe to call on an empty Slot.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
}

// Pending reports whether a callback is scheduled.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
