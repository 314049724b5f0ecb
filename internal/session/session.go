package session

import (
	"fmt"
	"strings"
	"time"
)

// LineID identifies a production line. Lines form the closed set A..F;
// a configuration variant uses a prefix of it.
type LineID uint8

const (
	LineA LineID = iota
	LineB
	LineC
	LineD
	LineE
	LineF
)

// MaxLines is the size of the line alphabet.
const MaxLines = 6

const lineLetters = "ABCDEF"

// AllLines lists every line id in order.
var AllLines = [MaxLines]LineID{LineA, LineB, LineC, LineD, LineE, LineF}

func (l LineID) Valid() bool { return l < MaxLines }

func (l LineID) String() string {
	if !l.Valid() {
		return fmt.Sprintf("LineID(%d)", uint8(l))
	}
	return lineLetters[l : l+1]
}

// ParseLine accepts a single letter, case-insensitively.
func ParseLine(s string) (LineID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) == 1 {
		if i := strings.IndexByte(lineLetters, s[0]); i >= 0 {
			return LineID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLine, s)
}

func (l LineID) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLine, uint8(l))
	}
	return []byte(l.String()), nil
}

func (l *LineID) UnmarshalText(b []byte) error {
	id, err := ParseLine(string(b))
	if err != nil {
		return err
	}
	*l = id
	return nil
}

// LogEntry is a finalized session. It is never mutated after creation
// except for the memo, through the log viewer.
type LogEntry struct {
	ID        string    `json:"id"`
	Line      LineID    `json:"line"`
	LineName  string    `json:"lineName"` // snapshot of the line name at logging time
	Task      string    `json:"task"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Reason    string    `json:"reason,omitempty"`
	Memo      string    `json:"memo,omitempty"`
}

// Duration is EndedAt - StartedAt.
func (e LogEntry) Duration() time.Duration {
	return e.EndedAt.Sub(e.StartedAt)
}

// State is the per-line session state: Idle or Running.
type State interface {
	isState()
}

// Idle means the line has no active session.
type Idle struct{}

// Running is an open session.
type Running struct {
	Task      string    `json:"task"`
	StartedAt time.Time `json:"startedAt"`
	Memo      string    `json:"memo,omitempty"`
}

func (Idle) isState()    {}
func (Running) isState() {}

// UndoKind tells the UI which snackbar text to show.
type UndoKind string

const (
	UndoStop     UndoKind = "stop"
	UndoAutoStop UndoKind = "autostop"
)

// UndoInfo is the most recent termination, reversible until ExpiresAt.
type UndoInfo struct {
	Kind      UndoKind  `json:"type"`
	Line      LineID    `json:"line"`
	Log       LogEntry  `json:"log"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Ended records the last finalized task of a line, for quick resume.
type Ended struct {
	Task    string    `json:"task"`
	EndedAt time.Time `json:"endedAt"`
}

// Reasons recorded by automated callers. A manual stop has no reason.
const (
	ReasonMaxSession       = "上限時間により自動終了"
	ReasonMaxSessionPrompt = "上限時間により終了"
	ReasonBreak            = "定時休憩"
	ReasonEndOfDay         = "終業"
)

// Tasks started by automation.
const (
	TaskBreak    = "休憩"
	TaskShutdown = "立ち下げ"
)
