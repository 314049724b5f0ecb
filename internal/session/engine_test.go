package session_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/linewheel/internal/session"
	"github.com/fakeyudi/linewheel/internal/timer"
)

// memLogs is an in-memory LogSink.
type memLogs struct {
	entries map[session.LineID][]session.LogEntry
	failing bool
}

func newMemLogs() *memLogs {
	return &memLogs{entries: make(map[session.LineID][]session.LogEntry)}
}

func (m *memLogs) Append(line session.LineID, e session.LogEntry) error {
	if m.failing {
		return errors.New("disk full")
	}
	m.entries[line] = append(m.entries[line], e)
	return nil
}

func (m *memLogs) Remove(line session.LineID, id string) error {
	kept := m.entries[line][:0]
	for _, e := range m.entries[line] {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	m.entries[line] = kept
	return nil
}

func fiveLines(l session.LineID) (string, bool) {
	if l > session.LineE {
		return "", false
	}
	return "LINE " + l.String(), true
}

type fixture struct {
	engine *session.Engine
	logs   *memLogs
	clock  *timer.Fake
}

func newFixture(opts session.Options) fixture {
	logs := newMemLogs()
	clock := timer.NewFake(time.UnixMilli(0))
	seq := 0
	opts.Logs = logs
	opts.Lines = session.LineNamerFunc(fiveLines)
	opts.Clock = clock
	opts.NewID = func() string { seq++; return fmt.Sprintf("log-%d", seq) }
	return fixture{engine: session.NewEngine(opts), logs: logs, clock: clock}
}

func TestSetupThenRunScenario(t *testing.T) {
	f := newFixture(session.Options{})

	if _, err := f.engine.Start(session.LineA, "段取り", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(300000 * time.Millisecond)
	if _, err := f.engine.Start(session.LineA, "稼働", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	logs := f.logs.entries[session.LineA]
	if len(logs) != 1 {
		t.Fatalf("want 1 log entry, got %d", len(logs))
	}
	got := logs[0]
	if got.Task != "段取り" || got.StartedAt.UnixMilli() != 0 || got.EndedAt.UnixMilli() != 300000 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.LineName != "LINE A" {
		t.Errorf("LineName: want %q, got %q", "LINE A", got.LineName)
	}
	if got.Reason != "" {
		t.Errorf("auto-switch should carry no reason, got %q", got.Reason)
	}

	r, ok := f.engine.Running(session.LineA)
	if !ok || r.Task != "稼働" || r.StartedAt.UnixMilli() != 300000 {
		t.Errorf("unexpected active session: %+v (running=%v)", r, ok)
	}
	if u := f.engine.PendingUndo(); u == nil || u.Kind != session.UndoAutoStop {
		t.Errorf("expected pending autostop undo, got %+v", u)
	}
}

// Feature: linewheel, Property: auto-switch produces exactly one record
// ending at the instant of the second start.
func TestAutoSwitchProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(session.Options{})
		line := session.LineID(rapid.IntRange(0, int(session.LineE)).Draw(rt, "line"))
		t1 := rapid.StringMatching(`[a-z段取稼働]{1,8}`).Draw(rt, "t1")
		t2 := rapid.StringMatching(`[a-z段取稼働]{1,8}`).Filter(func(s string) bool { return s != t1 }).Draw(rt, "t2")
		gap := time.Duration(rapid.Int64Range(0, 10_000_000).Draw(rt, "gap_ms")) * time.Millisecond

		if _, err := f.engine.Start(line, t1, ""); err != nil {
			rt.Fatalf("Start t1: %v", err)
		}
		f.clock.Advance(gap)
		switchAt := f.clock.Now()
		finalized, err := f.engine.Start(line, t2, "")
		if err != nil {
			rt.Fatalf("Start t2: %v", err)
		}

		logs := f.logs.entries[line]
		if len(logs) != 1 {
			rt.Fatalf("want 1 entry, got %d", len(logs))
		}
		if logs[0].Task != t1 || !logs[0].EndedAt.Equal(switchAt) {
			rt.Fatalf("entry mismatch: %+v", logs[0])
		}
		if finalized == nil || finalized.ID != logs[0].ID {
			rt.Fatalf("Start should return the finalized record")
		}
		r, ok := f.engine.Running(line)
		if !ok || r.Task != t2 || !r.StartedAt.Equal(switchAt) {
			rt.Fatalf("line should run %q from %v, got %+v", t2, switchAt, r)
		}
	})
}

func TestStopIdleIsNoop(t *testing.T) {
	f := newFixture(session.Options{})
	entry, err := f.engine.Stop(session.LineB, "")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil record, got %+v", entry)
	}
	if len(f.logs.entries[session.LineB]) != 0 {
		t.Error("stop on idle line created a record")
	}
	if f.engine.PendingUndo() != nil {
		t.Error("stop on idle line armed the undo buffer")
	}
	if _, ok := f.engine.State(session.LineB).(session.Idle); !ok {
		t.Error("line should stay idle")
	}
}

func TestStopRecordsReasonAndMemo(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineC, "トラブル > 設備故障", "motor")
	f.clock.Advance(90 * time.Second)

	entry, err := f.engine.Stop(session.LineC, session.ReasonMaxSession)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if entry.Reason != session.ReasonMaxSession || entry.Memo != "motor" {
		t.Errorf("unexpected record: %+v", entry)
	}
	if entry.Duration() != 90*time.Second {
		t.Errorf("duration: want 90s, got %v", entry.Duration())
	}
	if u := f.engine.PendingUndo(); u == nil || u.Kind != session.UndoStop || u.Log.ID != entry.ID {
		t.Errorf("expected stop undo for %s, got %+v", entry.ID, u)
	}
	if le, ok := f.engine.LastEnded(session.LineC); !ok || le.Task != "トラブル > 設備故障" {
		t.Errorf("LastEnded not updated: %+v", le)
	}
}

// Feature: linewheel, Property: stop then undo is observationally a no-op.
func TestStopUndoRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(session.Options{})
		line := session.LineID(rapid.IntRange(0, int(session.LineE)).Draw(rt, "line"))
		task := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "task")
		memo := rapid.StringMatching(`[a-z ]{0,10}`).Draw(rt, "memo")
		run := time.Duration(rapid.Int64Range(0, 1_000_000).Draw(rt, "run_ms")) * time.Millisecond

		f.engine.Start(line, task, memo)
		before, _ := f.engine.Running(line)
		f.clock.Advance(run)

		if _, err := f.engine.Stop(line, ""); err != nil {
			rt.Fatalf("Stop: %v", err)
		}
		if len(f.logs.entries[line]) != 1 {
			rt.Fatalf("stop should log one record")
		}
		u, err := f.engine.Undo()
		if err != nil || u == nil {
			rt.Fatalf("Undo: %v, %v", u, err)
		}

		after, ok := f.engine.Running(line)
		if !ok || after.Task != before.Task || !after.StartedAt.Equal(before.StartedAt) {
			rt.Fatalf("undo did not restore session: before %+v after %+v", before, after)
		}
		if after.Memo != before.Memo {
			rt.Fatalf("memo not restored: %q vs %q", after.Memo, before.Memo)
		}
		if len(f.logs.entries[line]) != 0 {
			rt.Fatalf("undo should remove the record")
		}
		if f.engine.PendingUndo() != nil {
			rt.Fatalf("undo buffer should be empty")
		}
	})
}

func TestUndoTwiceIsNoop(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineA, "稼働", "")
	f.engine.Stop(session.LineA, "")

	if u, _ := f.engine.Undo(); u == nil {
		t.Fatal("first undo should succeed")
	}
	f.engine.Stop(session.LineA, "")
	f.engine.Undo()

	u, err := f.engine.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if u != nil {
		t.Errorf("second undo should be a no-op, got %+v", u)
	}
}

func TestUndoExpires(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineA, "稼働", "")
	f.engine.Stop(session.LineA, "")

	f.clock.Advance(session.DefaultUndoWindow)
	if u, _ := f.engine.Undo(); u != nil {
		t.Errorf("undo after the window should be a no-op, got %+v", u)
	}
	if len(f.logs.entries[session.LineA]) != 1 {
		t.Error("expired undo must not delete the record")
	}
}

func TestUndoOnlyKeepsLatestTermination(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineA, "稼働", "")
	f.engine.Start(session.LineB, "段取り", "")
	f.engine.Stop(session.LineA, "")
	f.engine.Stop(session.LineB, "")

	u, _ := f.engine.Undo()
	if u == nil || u.Line != session.LineB {
		t.Fatalf("undo should target the latest termination (B), got %+v", u)
	}
	if _, ok := f.engine.Running(session.LineA); ok {
		t.Error("line A must stay idle; its undo was superseded")
	}
}

func TestUndoAutoSwitchRestoresPreviousTask(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineA, "段取り", "")
	f.clock.Advance(time.Minute)
	f.engine.Start(session.LineA, "稼働", "")

	if _, err := f.engine.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	r, _ := f.engine.Running(session.LineA)
	if r.Task != "段取り" || r.StartedAt.UnixMilli() != 0 {
		t.Errorf("expected 段取り from t=0, got %+v", r)
	}
	if n := len(f.logs.entries[session.LineA]); n != 0 {
		t.Errorf("want 0 records after undo, got %d", n)
	}
}

func TestMemoPolicyInPlace(t *testing.T) {
	f := newFixture(session.Options{MemoPolicy: session.MemoInPlace})
	f.engine.Start(session.LineA, "稼働", "")
	f.clock.Advance(time.Minute)

	entry, err := f.engine.UpdateMemo(session.LineA, "lot 42")
	if err != nil || entry != nil {
		t.Fatalf("UpdateMemo: %v, %v", entry, err)
	}
	r, _ := f.engine.Running(session.LineA)
	if r.Memo != "lot 42" || r.Task != "稼働" || r.StartedAt.UnixMilli() != 0 {
		t.Errorf("memo not updated in place: %+v", r)
	}
	if len(f.logs.entries[session.LineA]) != 0 {
		t.Error("in-place memo must not log")
	}
}

func TestMemoLivesWithTheRunningSession(t *testing.T) {
	f := newFixture(session.Options{MemoPolicy: session.MemoInPlace})
	f.engine.Start(session.LineA, "稼働", "")
	f.engine.UpdateMemo(session.LineA, "lot 42")
	if got := f.engine.Memo(session.LineA); got != "lot 42" {
		t.Fatalf("Memo = %q", got)
	}

	restored := newFixture(session.Options{MemoPolicy: session.MemoInPlace})
	restored.engine.Restore(f.engine.Snapshot())
	if got := restored.engine.Memo(session.LineA); got != "lot 42" {
		t.Errorf("memo lost across snapshot: %q", got)
	}

	f.clock.Advance(time.Minute)
	entry, err := f.engine.Stop(session.LineA, "")
	if err != nil || entry == nil || entry.Memo != "lot 42" {
		t.Fatalf("stop should record the memo: %+v, %v", entry, err)
	}
	if got := f.engine.Memo(session.LineA); got != "" {
		t.Errorf("memo should end with the session, got %q", got)
	}
}

func TestMemoPolicySplit(t *testing.T) {
	f := newFixture(session.Options{MemoPolicy: session.MemoSplit})
	f.engine.Start(session.LineA, "稼働", "")
	f.clock.Advance(time.Minute)

	entry, err := f.engine.UpdateMemo(session.LineA, "lot 42")
	if err != nil {
		t.Fatalf("UpdateMemo: %v", err)
	}
	if entry == nil || entry.Task != "稼働" || entry.Memo != "" {
		t.Fatalf("expected split-off record without memo, got %+v", entry)
	}
	r, _ := f.engine.Running(session.LineA)
	if r.Memo != "lot 42" || r.Task != "稼働" || !r.StartedAt.Equal(entry.EndedAt) {
		t.Errorf("split should restart with the new memo: %+v", r)
	}
}

func TestMemoWhileIdleIsDropped(t *testing.T) {
	for _, policy := range []session.MemoPolicy{session.MemoInPlace, session.MemoSplit} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(session.Options{MemoPolicy: policy})
			entry, err := f.engine.UpdateMemo(session.LineD, "ignored")
			if err != nil || entry != nil {
				t.Fatalf("UpdateMemo on idle: %v, %v", entry, err)
			}
			if _, ok := f.engine.State(session.LineD).(session.Idle); !ok {
				t.Error("line should stay idle")
			}
			if f.engine.Memo(session.LineD) != "" {
				t.Error("idle memo should be dropped")
			}
		})
	}
}

func TestSameTaskPolicy(t *testing.T) {
	t.Run("split", func(t *testing.T) {
		f := newFixture(session.Options{SameTask: session.SameTaskSplit})
		f.engine.Start(session.LineA, "稼働", "")
		entry, _ := f.engine.Start(session.LineA, "稼働", "")
		if entry == nil || entry.Duration() != 0 {
			t.Errorf("expected zero-length split record, got %+v", entry)
		}
	})
	t.Run("ignore", func(t *testing.T) {
		f := newFixture(session.Options{SameTask: session.SameTaskIgnore})
		f.engine.Start(session.LineA, "稼働", "")
		f.clock.Advance(time.Minute)
		entry, _ := f.engine.Start(session.LineA, "稼働", "")
		if entry != nil {
			t.Errorf("restart of the same task should be ignored, got %+v", entry)
		}
		r, _ := f.engine.Running(session.LineA)
		if r.StartedAt.UnixMilli() != 0 {
			t.Errorf("session should keep its start, got %v", r.StartedAt)
		}
		if len(f.logs.entries[session.LineA]) != 0 {
			t.Error("no record expected")
		}
	})
}

func TestUnknownLineAndEmptyTask(t *testing.T) {
	f := newFixture(session.Options{})
	if _, err := f.engine.Start(session.LineF, "稼働", ""); !errors.Is(err, session.ErrUnknownLine) {
		t.Errorf("line F is not configured; want ErrUnknownLine, got %v", err)
	}
	if _, err := f.engine.Start(session.LineA, "  ", ""); !errors.Is(err, session.ErrEmptyTask) {
		t.Errorf("want ErrEmptyTask, got %v", err)
	}
}

func TestAppendFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineA, "稼働", "")
	f.logs.failing = true

	if _, err := f.engine.Stop(session.LineA, ""); err == nil {
		t.Fatal("expected error from failing log sink")
	}
	if _, ok := f.engine.Running(session.LineA); !ok {
		t.Error("session must keep running when the record could not be stored")
	}
}

func TestElapsedIsPure(t *testing.T) {
	f := newFixture(session.Options{})
	if _, ok := f.engine.Elapsed(session.LineA, f.clock.Now()); ok {
		t.Error("idle line should report no session")
	}
	f.engine.Start(session.LineA, "稼働", "")
	now := f.clock.Now().Add(42 * time.Second)
	for i := 0; i < 2; i++ {
		d, ok := f.engine.Elapsed(session.LineA, now)
		if !ok || d != 42*time.Second {
			t.Fatalf("Elapsed: %v, %v", d, ok)
		}
	}
}

func TestStopAtClampsToNow(t *testing.T) {
	f := newFixture(session.Options{})
	f.engine.Start(session.LineA, "稼働", "")
	f.clock.Advance(10 * time.Hour)

	deadline := time.UnixMilli(0).Add(9 * time.Hour)
	entry, err := f.engine.StopAt(session.LineA, session.ReasonMaxSession, deadline)
	if err != nil {
		t.Fatalf("StopAt: %v", err)
	}
	if !entry.EndedAt.Equal(deadline) {
		t.Errorf("want endedAt at the deadline, got %v", entry.EndedAt)
	}

	f.engine.Start(session.LineB, "稼働", "")
	entry, _ = f.engine.StopAt(session.LineB, "", f.clock.Now().Add(time.Hour))
	if !entry.EndedAt.Equal(f.clock.Now()) {
		t.Errorf("a future end must be clamped to now, got %v", entry.EndedAt)
	}
	entry, _ = f.engine.StopAt(session.LineC, "", f.clock.Now())
	if entry != nil {
		t.Error("StopAt on an idle line is a no-op")
	}
}
