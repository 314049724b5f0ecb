package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fakeyudi/linewheel/internal/session"
)

// TaskTotal is the time a line spent on one task.
type TaskTotal struct {
	Task    string `json:"task"`
	Seconds int64  `json:"seconds"`
}

// LineSummary totals one line's records.
type LineSummary struct {
	Line     session.LineID `json:"line"`
	LineName string         `json:"lineName"`
	Tasks    []TaskTotal    `json:"tasks"`
	Seconds  int64          `json:"seconds"`
}

// Report is the daily summary.
type Report struct {
	Day      string             `json:"day"`
	Operator string             `json:"operator,omitempty"`
	Lines    []LineSummary      `json:"lines"`
	Entries  []session.LogEntry `json:"entries"`
}

// Summarize totals entries per line and task. Lines come in alphabet
// order, tasks by descending time. The line name is taken from the most
// recent record of the line.
func Summarize(entries []session.LogEntry) []LineSummary {
	type acc struct {
		name   string
		last   time.Time
		totals map[string]int64
	}
	byLine := make(map[session.LineID]*acc)
	for _, e := range entries {
		a := byLine[e.Line]
		if a == nil {
			a = &acc{totals: make(map[string]int64)}
			byLine[e.Line] = a
		}
		if !e.EndedAt.Before(a.last) {
			a.last = e.EndedAt
			a.name = e.LineName
		}
		a.totals[e.Task] += DurationSeconds(e)
	}

	var out []LineSummary
	for _, l := range session.AllLines {
		a := byLine[l]
		if a == nil {
			continue
		}
		s := LineSummary{Line: l, LineName: a.name}
		for task, sec := range a.totals {
			s.Tasks = append(s.Tasks, TaskTotal{Task: task, Seconds: sec})
			s.Seconds += sec
		}
		sort.Slice(s.Tasks, func(i, j int) bool {
			if s.Tasks[i].Seconds != s.Tasks[j].Seconds {
				return s.Tasks[i].Seconds > s.Tasks[j].Seconds
			}
			return s.Tasks[i].Task < s.Tasks[j].Task
		})
		out = append(out, s)
	}
	return out
}

// BuildReport collects the records that started on day.
func BuildReport(entries []session.LogEntry, day time.Time, operator string) Report {
	todays := SortByStart(OnDay(entries, day))
	if todays == nil {
		todays = []session.LogEntry{}
	}
	return Report{
		Day:      day.Format(time.DateOnly),
		Operator: operator,
		Lines:    Summarize(todays),
		Entries:  todays,
	}
}

const (
	reportSentinel = "<!-- linewheel-report-version: 1 -->"
	dataPrefix     = "<!-- linewheel-data: "
	dataSuffix     = " -->"
)

// MarkdownRenderer renders the daily report of Day as Markdown with an
// embedded base64 JSON payload of the records, so the report can be
// imported again.
type MarkdownRenderer struct {
	Day      time.Time
	Operator string
	Location *time.Location
}

func (r *MarkdownRenderer) Render(entries []session.LogEntry) ([]byte, error) {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	day := r.Day
	if day.IsZero() {
		day = time.Now()
	}
	rep := BuildReport(entries, day.In(loc), r.Operator)

	payload, err := json.Marshal(rep.Entries)
	if err != nil {
		return nil, fmt.Errorf("marshal report entries: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(reportSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, base64.StdEncoding.EncodeToString(payload), dataSuffix)

	fmt.Fprintf(&sb, "# Daily report — %s\n\n", rep.Day)
	if rep.Operator != "" {
		fmt.Fprintf(&sb, "- Operator: %s\n", rep.Operator)
	}
	var total int64
	for _, l := range rep.Lines {
		total += l.Seconds
	}
	fmt.Fprintf(&sb, "- Records: %d\n", len(rep.Entries))
	fmt.Fprintf(&sb, "- Tracked: %s\n\n", session.FormatDuration(time.Duration(total)*time.Second))

	if len(rep.Lines) == 0 {
		sb.WriteString("_No records._\n")
		return []byte(sb.String()), nil
	}

	for _, l := range rep.Lines {
		fmt.Fprintf(&sb, "## %s (%s)\n\n", cell(l.LineName), l.Line)
		sb.WriteString("| Task | Time | Share |\n")
		sb.WriteString("|------|------|-------|\n")
		for _, t := range l.Tasks {
			share := 0.0
			if l.Seconds > 0 {
				share = float64(t.Seconds) * 100 / float64(l.Seconds)
			}
			fmt.Fprintf(&sb, "| %s | %s | %.0f%% |\n",
				cell(t.Task),
				session.FormatDurationVerbose(time.Duration(t.Seconds)*time.Second),
				share,
			)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Records\n\n")
	sb.WriteString("| Line | Task | Start | End | Duration | Reason | Memo |\n")
	sb.WriteString("|------|------|-------|-----|----------|--------|------|\n")
	for _, e := range rep.Entries {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
			e.Line,
			cell(e.Task),
			e.StartedAt.In(loc).Format("15:04:05"),
			e.EndedAt.In(loc).Format("15:04:05"),
			session.FormatDuration(e.Duration()),
			cell(e.Reason),
			cell(e.Memo),
		)
	}
	return []byte(sb.String()), nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// MarkdownParser extracts the records embedded by MarkdownRenderer.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) ([]session.LogEntry, error) {
	content := string(data)
	if !strings.Contains(content, reportSentinel) {
		return nil, fmt.Errorf("not a linewheel report: missing version sentinel")
	}
	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a linewheel report: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a linewheel report: malformed data payload")
	}
	raw, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a linewheel report: corrupted payload: %w", err)
	}
	var entries []session.LogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("not a linewheel report: %w", err)
	}
	return entries, nil
}
