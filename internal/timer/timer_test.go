package timer

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func TestSlotRescheduleReplacesPending(t *testing.T) {
	clk := NewFake(epoch)
	s := NewSlot(clk)

	var fired []string
	s.Reschedule(time.Minute, func() { fired = append(fired, "first") })
	s.Reschedule(2*time.Minute, func() { fired = append(fired, "second") })

	if got := clk.Pending(); got != 1 {
		t.Fatalf("pending timers: want 1, got %d", got)
	}

	clk.Advance(5 * time.Minute)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("fired: want [second], got %v", fired)
	}
	if s.Pending() {
		t.Error("slot should be empty after firing")
	}
}

func TestSlotCancel(t *testing.T) {
	clk := NewFake(epoch)
	s := NewSlot(clk)

	called := false
	s.Reschedule(time.Second, func() { called = true })
	s.Cancel()
	clk.Advance(time.Hour)

	if called {
		t.Error("cancelled callback ran")
	}
	// Cancelling an empty slot is harmless.
	s.Cancel()
}

func TestFakeAdvanceOrdersByDeadline(t *testing.T) {
	clk := NewFake(epoch)
	var order []int
	var seen []time.Time
	clk.AfterFunc(3*time.Second, func() { order = append(order, 3); seen = append(seen, clk.Now()) })
	clk.AfterFunc(1*time.Second, func() { order = append(order, 1); seen = append(seen, clk.Now()) })
	clk.AfterFunc(2*time.Second, func() { order = append(order, 2); seen = append(seen, clk.Now()) })

	clk.Advance(10 * time.Second)

	want := []int{1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: want %v, got %v", want, order)
		}
		if wantAt := epoch.Add(time.Duration(want[i]) * time.Second); !seen[i].Equal(wantAt) {
			t.Errorf("callback %d saw clock %v, want %v", want[i], seen[i], wantAt)
		}
	}
	if !clk.Now().Equal(epoch.Add(10 * time.Second)) {
		t.Errorf("clock after advance: %v", clk.Now())
	}
}

func TestFakeTimerScheduledFromCallback(t *testing.T) {
	clk := NewFake(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			clk.AfterFunc(time.Second, tick)
		}
	}
	clk.AfterFunc(time.Second, tick)
	clk.Advance(10 * time.Second)
	if count != 3 {
		t.Errorf("want 3 ticks, got %d", count)
	}
}
