package tui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/linewheel/internal/app"
)

// promptOpenMsg asks the HUD to show a yes/no prompt. The answer goes to
// reply, which is buffered.
type promptOpenMsg struct {
	id      int64
	message string
	reply   chan bool
}

// promptClosedMsg withdraws a prompt that was cancelled before the user
// answered.
type promptClosedMsg struct{ id int64 }

// statusMsg carries a coordinator state change into the HUD.
type statusMsg app.Status

// Prompter routes coordinator prompts to a running HUD. It is safe to
// create before the HUD starts; prompts wait in a queue until the HUD
// listens.
type Prompter struct {
	events chan tea.Msg
	nextID atomic.Int64
}

// NewPrompter creates a prompter with an empty queue.
func NewPrompter() *Prompter {
	return &Prompter{events: make(chan tea.Msg, 16)}
}

// Confirm shows message in the HUD and waits for y/n, or for ctx.
func (p *Prompter) Confirm(ctx context.Context, message string) bool {
	req := promptOpenMsg{id: p.nextID.Add(1), message: message, reply: make(chan bool, 1)}
	select {
	case p.events <- req:
	case <-ctx.Done():
		return false
	}
	select {
	case ok := <-req.reply:
		return ok
	case <-ctx.Done():
		select {
		case p.events <- promptClosedMsg{id: req.id}:
		default:
		}
		return false
	}
}

// next blocks until the prompter has something for the HUD.
func (p *Prompter) next() tea.Cmd {
	return func() tea.Msg { return <-p.events }
}

// statusFeed forwards coordinator state changes, keeping only the latest
// when the HUD falls behind.
type statusFeed struct {
	ch          chan app.Status
	unsubscribe func()
}

func newStatusFeed(coord *app.Coordinator) *statusFeed {
	f := &statusFeed{ch: make(chan app.Status, 1)}
	f.unsubscribe = coord.Subscribe(func(st app.Status) {
		for {
			select {
			case f.ch <- st:
				return
			default:
			}
			select {
			case <-f.ch:
			default:
			}
		}
	})
	return f
}

func (f *statusFeed) next() tea.Cmd {
	return func() tea.Msg { return statusMsg(<-f.ch) }
}
