package automation

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fakeyudi/linewheel/internal/timer"
)

// DefaultPoll is how often the wall clock is compared with the alerts.
const DefaultPoll = 30 * time.Second

// BreakMessage is the confirmation shown at break time at.
func BreakMessage(at string) string {
	return fmt.Sprintf("%s です。休憩時間になりました。休憩にしますか？", at)
}

// BreakOptions configures a BreakScheduler.
type BreakOptions struct {
	Clock  timer.Clock
	Poll   time.Duration
	Alerts []string
	// Busy reports whether a prompt is already open. Alerts are not
	// raised, nor marked shown, while it returns true.
	Busy func() bool
	// OnAlert is called from the timer goroutine with the HH:MM alert.
	OnAlert func(at string)
	Logger  *slog.Logger
}

// BreakScheduler raises each configured HH:MM alert at most once per day.
type BreakScheduler struct {
	clock   timer.Clock
	poll    time.Duration
	busy    func() bool
	onAlert func(string)
	logger  *slog.Logger
	slot    *timer.Slot

	mu     sync.Mutex
	alerts []string
	day    string
	shown  map[string]bool
}

// NewBreakScheduler returns a stopped scheduler.
func NewBreakScheduler(opts BreakOptions) *BreakScheduler {
	if opts.Clock == nil {
		opts.Clock = timer.Real()
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultPoll
	}
	if opts.Busy == nil {
		opts.Busy = func() bool { return false }
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BreakScheduler{
		clock:   opts.Clock,
		poll:    opts.Poll,
		busy:    opts.Busy,
		onAlert: opts.OnAlert,
		logger:  opts.Logger,
		slot:    timer.NewSlot(opts.Clock),
		alerts:  append([]string(nil), opts.Alerts...),
		shown:   make(map[string]bool),
	}
}

// SetAlerts replaces the alert times. Alerts already shown today stay
// shown.
func (b *BreakScheduler) SetAlerts(alerts []string) {
	b.mu.Lock()
	b.alerts = append([]string(nil), alerts...)
	b.mu.Unlock()
}

// Tick compares now with the alerts and returns the first alert due and
// not yet shown today, marking it shown.
func (b *BreakScheduler) Tick(now time.Time) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := now.Format(time.DateOnly)
	if day != b.day {
		b.day = day
		clear(b.shown)
	}
	if b.busy() {
		return "", false
	}
	hm := now.Format("15:04")
	for _, at := range b.alerts {
		if at == hm && !b.shown[at] {
			b.shown[at] = true
			return at, true
		}
	}
	return "", false
}

// Start begins polling. Calling Start on a running scheduler restarts the
// poll.
func (b *BreakScheduler) Start() {
	b.slot.Reschedule(b.poll, b.fire)
}

// Stop ends polling.
func (b *BreakScheduler) Stop() {
	b.slot.Cancel()
}

func (b *BreakScheduler) fire() {
	b.slot.Reschedule(b.poll, b.fire)
	at, ok := b.Tick(b.clock.Now())
	if !ok {
		return
	}
	b.logger.Info("break alert", "at", at)
	if b.onAlert != nil {
		b.onAlert(at)
	}
}
