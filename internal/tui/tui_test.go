package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/linewheel/internal/app"
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/kv"
	"github.com/fakeyudi/linewheel/internal/session"
	"github.com/fakeyudi/linewheel/internal/timer"
)

var shiftStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)

func newModel(t *testing.T, prompter *Prompter) (Model, *app.Coordinator, *timer.Fake) {
	t.Helper()
	clock := timer.NewFake(shiftStart)
	seq := 0
	opts := app.Options{
		Store:   kv.NewMemory(),
		Variant: config.VariantSix,
		Clock:   clock,
		NewID:   func() string { seq++; return fmt.Sprintf("log-%d", seq) },
	}
	if prompter != nil {
		opts.Prompter = prompter
	}
	coord, err := app.New(opts)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { coord.Close() })
	m := New(coord, prompter)
	t.Cleanup(m.feed.unsubscribe)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), coord, clock
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func TestSelectLineAndStartTask(t *testing.T) {
	m, coord, _ := newModel(t, nil)
	m = press(m, "2", "down", "enter")

	if m.status.CurrentLine != session.LineB {
		t.Fatalf("current line = %s, want B", m.status.CurrentLine)
	}
	want := coord.Config().Tasks(session.LineB)[1]
	st, _ := coord.Status().Line(session.LineB)
	if !st.Running || st.Task != want {
		t.Errorf("line B should run %q: %+v", want, st)
	}
	if !strings.Contains(m.View(), want) {
		t.Error("view should show the running task")
	}
}

func TestSpaceStopsAndUndoRestores(t *testing.T) {
	m, coord, clock := newModel(t, nil)
	m = press(m, "enter")
	clock.Advance(time.Minute)
	m = press(m, " ")

	if st, _ := coord.Status().Line(session.LineA); st.Running {
		t.Fatal("space should stop the current line")
	}
	if !strings.Contains(m.View(), "u undo") {
		t.Error("view should show the undo snackbar")
	}

	m = press(m, "u")
	if st, _ := coord.Status().Line(session.LineA); !st.Running {
		t.Error("undo should resume line A")
	}
	if m.status.Undo != nil {
		t.Error("snackbar should be gone after undo")
	}
}

func TestMemoInput(t *testing.T) {
	m, coord, _ := newModel(t, nil)
	m = press(m, "enter", "m")
	if m.mode != modeMemo {
		t.Fatal("m should open the memo input")
	}
	m = press(m, "l", "o", "t", " ", "9", "enter")

	if st, _ := coord.Status().Line(session.LineA); st.Memo != "lot 9" {
		t.Errorf("memo = %q, want %q", st.Memo, "lot 9")
	}
	if m.mode != modeNormal {
		t.Error("enter should close the input")
	}
}

func TestMemoInputEscDiscards(t *testing.T) {
	m, coord, _ := newModel(t, nil)
	m = press(m, "enter", "m", "x", "esc")
	if st, _ := coord.Status().Line(session.LineA); st.Memo != "" {
		t.Errorf("esc must not save, got %q", st.Memo)
	}
}

func TestLogsTabSearch(t *testing.T) {
	m, _, clock := newModel(t, nil)
	m = press(m, "enter")
	clock.Advance(time.Minute)
	m = press(m, " ", "tab")

	if m.activeTab != tabLogs || len(m.logs) != 1 {
		t.Fatalf("logs tab should list one record, got %d", len(m.logs))
	}
	m = press(m, "/", "z", "z", "enter")
	if len(m.logs) != 0 || m.query != "zz" {
		t.Errorf("search should filter to nothing: %+v", m.logs)
	}
}

func TestPrompterRoundTrip(t *testing.T) {
	p := NewPrompter()
	m, _, _ := newModel(t, p)

	result := make(chan bool, 1)
	go func() { result <- p.Confirm(context.Background(), "休憩にしますか？") }()

	msg := p.next()()
	next, _ := m.Update(msg)
	m = next.(Model)
	if m.prompt == nil || !strings.Contains(m.View(), "休憩にしますか？") {
		t.Fatal("prompt should be shown")
	}
	m = press(m, "y")
	if m.prompt != nil {
		t.Error("answering should close the prompt")
	}
	select {
	case ok := <-result:
		if !ok {
			t.Error("y should confirm")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Confirm did not return")
	}
}

func TestPrompterCancelled(t *testing.T) {
	p := NewPrompter()
	m, _, _ := newModel(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan bool, 1)
	go func() { result <- p.Confirm(ctx, "終了しますか？") }()

	next, _ := m.Update(p.next()())
	m = next.(Model)
	cancel()
	if ok := <-result; ok {
		t.Error("a cancelled prompt counts as no")
	}
	next, _ = m.Update(p.next()())
	m = next.(Model)
	if m.prompt != nil {
		t.Error("cancelled prompt should be withdrawn")
	}
}

func TestStatusFeedKeepsLatest(t *testing.T) {
	m, coord, _ := newModel(t, nil)
	coord.SelectLine(session.LineC)
	coord.SelectLine(session.LineD)

	st := (<-m.feed.ch)
	if st.CurrentLine != session.LineD {
		t.Errorf("feed should hold the latest status, got %s", st.CurrentLine)
	}
}
