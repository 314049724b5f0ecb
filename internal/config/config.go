// Package config holds the task taxonomy and automation settings of the
// wheel: which lines exist, what each line can be logged against, and how
// the watchdog, break alerts and center button behave.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fakeyudi/linewheel/internal/session"
)

// ErrInvalidImport is returned when an imported payload does not look like
// a configuration. The current configuration is left unchanged.
var ErrInvalidImport = errors.New("invalid config import")

// ErrUnknownTask is returned by ResolveTask for a label the line does not
// offer.
var ErrUnknownTask = errors.New("unknown task")

// SubSeparator joins a parent category and a sub-category into a task label.
const SubSeparator = " > "

// Category is a task label, optionally with one level of sub-categories.
// A category without sub-categories encodes as a bare JSON string.
type Category struct {
	Name          string
	SubCategories []string
}

type categoryItem struct {
	Name          string   `json:"name"`
	SubCategories []string `json:"subCategories,omitempty"`
}

func (c Category) MarshalJSON() ([]byte, error) {
	if len(c.SubCategories) == 0 {
		return json.Marshal(c.Name)
	}
	return json.Marshal(categoryItem{Name: c.Name, SubCategories: c.SubCategories})
}

func (c *Category) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = Category{Name: name}
		return nil
	}
	var item categoryItem
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*c = Category{Name: item.Name, SubCategories: item.SubCategories}
	return nil
}

// Labels returns the task labels selectable under c.
func (c Category) Labels() []string {
	if len(c.SubCategories) == 0 {
		return []string{c.Name}
	}
	out := make([]string, len(c.SubCategories))
	for i, s := range c.SubCategories {
		out[i] = c.Name + SubSeparator + s
	}
	return out
}

// LineConfig describes one line.
type LineConfig struct {
	Name        string     `json:"name"`
	Categories  []Category `json:"categories"`
	MemoPresets []string   `json:"memoPresets,omitempty"`
}

// CenterIdleAction selects what the center button does on an idle line.
type CenterIdleAction string

const (
	CenterNone         CenterIdleAction = "none"
	CenterResume       CenterIdleAction = "resume"
	CenterOpenLineRing CenterIdleAction = "openLineRing"
	CenterStartDefault CenterIdleAction = "startDefault"
)

// MaxSessionAction selects what happens when a session reaches the limit.
type MaxSessionAction string

const (
	MaxSessionStop   MaxSessionAction = "stop"
	MaxSessionPrompt MaxSessionAction = "prompt"
)

// DefaultQuickResumeMin applies when QuickResumeMin is not positive.
const DefaultQuickResumeMin = 10

// AppConfig is the wheel configuration. Lines contains exactly the lines
// of the active variant.
type AppConfig struct {
	Lines            map[session.LineID]LineConfig `json:"lines"`
	BreakAlerts      []string                      `json:"breakAlerts"`
	MaxSessionMin    int                           `json:"maxSessionMin"`
	MaxSessionAction MaxSessionAction              `json:"maxSessionAction"`
	CenterIdleAction CenterIdleAction              `json:"centerIdleAction"`
	QuickResumeMin   int                           `json:"quickResumeMin"`
	Theme            string                        `json:"theme,omitempty"`
	UIScale          float64                       `json:"uiScale,omitempty"`
}

// LineIDs returns the configured lines in alphabet order.
func (c AppConfig) LineIDs() []session.LineID {
	ids := make([]session.LineID, 0, len(c.Lines))
	for id := range c.Lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LineName implements session.LineNamer.
func (c AppConfig) LineName(line session.LineID) (string, bool) {
	lc, ok := c.Lines[line]
	if !ok {
		return "", false
	}
	return lc.Name, true
}

// Tasks flattens the categories of line into selectable labels. A
// sub-category S under parent P yields "P > S".
func (c AppConfig) Tasks(line session.LineID) []string {
	var out []string
	for _, cat := range c.Lines[line].Categories {
		out = append(out, cat.Labels()...)
	}
	return out
}

// DefaultTask is the name of the first category of line.
func (c AppConfig) DefaultTask(line session.LineID) (string, bool) {
	cats := c.Lines[line].Categories
	if len(cats) == 0 {
		return "", false
	}
	return cats[0].Name, true
}

// ResolveTask maps user input to a task label of line. It accepts an exact
// label, a 1-based index into Tasks, or "P/S" for a sub-category.
func (c AppConfig) ResolveTask(line session.LineID, input string) (string, error) {
	input = strings.TrimSpace(input)
	tasks := c.Tasks(line)
	for _, t := range tasks {
		if t == input {
			return t, nil
		}
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1], nil
	}
	if p, s, ok := strings.Cut(input, "/"); ok {
		want := strings.TrimSpace(p) + SubSeparator + strings.TrimSpace(s)
		for _, t := range tasks {
			if t == want {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("%w %q on line %s", ErrUnknownTask, input, line)
}

// MaxSession returns the watchdog limit; zero disables the watchdog.
func (c AppConfig) MaxSession() time.Duration {
	if c.MaxSessionMin <= 0 {
		return 0
	}
	return time.Duration(c.MaxSessionMin) * time.Minute
}

// QuickResume returns the window within which the center button resumes
// the last ended task.
func (c AppConfig) QuickResume() time.Duration {
	m := c.QuickResumeMin
	if m <= 0 {
		m = DefaultQuickResumeMin
	}
	return time.Duration(m) * time.Minute
}

var alertPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Validate reports the first structural problem in c.
func (c AppConfig) Validate() error {
	if len(c.Lines) == 0 {
		return errors.New("no lines configured")
	}
	for _, id := range c.LineIDs() {
		if strings.TrimSpace(c.Lines[id].Name) == "" {
			return fmt.Errorf("line %s has no name", id)
		}
		for _, cat := range c.Lines[id].Categories {
			if strings.TrimSpace(cat.Name) == "" {
				return fmt.Errorf("line %s has an unnamed category", id)
			}
		}
	}
	for _, a := range c.BreakAlerts {
		if !alertPattern.MatchString(a) {
			return fmt.Errorf("break alert %q is not HH:MM", a)
		}
	}
	switch c.MaxSessionAction {
	case MaxSessionStop, MaxSessionPrompt:
	default:
		return fmt.Errorf("unknown maxSessionAction %q", c.MaxSessionAction)
	}
	switch c.CenterIdleAction {
	case CenterNone, CenterResume, CenterOpenLineRing, CenterStartDefault:
	default:
		return fmt.Errorf("unknown centerIdleAction %q", c.CenterIdleAction)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.BreakAlerts = append([]string(nil), c.BreakAlerts...)
	out.Lines = make(map[session.LineID]LineConfig, len(c.Lines))
	for id, lc := range c.Lines {
		out.Lines[id] = cloneLine(lc)
	}
	return out
}

func cloneLine(lc LineConfig) LineConfig {
	out := LineConfig{Name: lc.Name, MemoPresets: append([]string(nil), lc.MemoPresets...)}
	out.Categories = cloneCategories(lc.Categories)
	return out
}

func cloneCategories(cats []Category) []Category {
	out := make([]Category, len(cats))
	for i, cat := range cats {
		out[i] = Category{Name: cat.Name, SubCategories: append([]string(nil), cat.SubCategories...)}
	}
	return out
}

// BulkCategories returns a copy of c in which every configured line not in
// skip gets cats as its categories.
func BulkCategories(c AppConfig, cats []Category, skip ...session.LineID) AppConfig {
	out := c.Clone()
	skipped := make(map[session.LineID]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	for id, lc := range out.Lines {
		if skipped[id] {
			continue
		}
		lc.Categories = cloneCategories(cats)
		out.Lines[id] = lc
	}
	return out
}

// Decode shallow-merges the top-level keys of data over base: every key
// present in data replaces the corresponding field of base wholesale.
func Decode(base AppConfig, data []byte) (AppConfig, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return base, err
	}
	out := base.Clone()
	if _, ok := raw["lines"]; ok {
		out.Lines = nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return base, err
	}
	return out, nil
}

// ExportJSON renders c for backup or sharing.
func ExportJSON(c AppConfig) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ImportJSON merges an exported payload over current. Payloads without a
// "lines" object are rejected with ErrInvalidImport.
func ImportJSON(current AppConfig, data []byte) (AppConfig, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	lines, ok := raw["lines"]
	if !ok || len(bytes.TrimSpace(lines)) == 0 || bytes.TrimSpace(lines)[0] != '{' {
		return current, fmt.Errorf("%w: missing \"lines\" object", ErrInvalidImport)
	}
	merged, err := Decode(current, data)
	if err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := merged.Validate(); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return merged, nil
}
