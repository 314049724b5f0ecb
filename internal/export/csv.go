package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/linewheel/internal/session"
)

var (
	csvHeader       = []string{"ラインID", "ライン名", "タスク", "開始日時", "終了日時", "所要時間(秒)", "メモ"}
	csvHeaderReason = []string{"ラインID", "ライン名", "タスク", "開始日時", "終了日時", "所要時間(秒)", "理由", "メモ"}
)

// dateTimeLayout parses the unpadded "2006/1/2 9:04:05" form written by
// FormatDateTime.
const dateTimeLayout = "2006/1/2 15:04:05"

// FormatDateTime renders t in loc as y/M/d H:mm:ss.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d/%d/%d %d:%02d:%02d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// DurationSeconds is the record duration rounded to whole seconds.
func DurationSeconds(e session.LogEntry) int64 {
	return int64(math.Round(float64(e.EndedAt.Sub(e.StartedAt).Milliseconds()) / 1000))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSVRenderer writes one row per record, oldest first. Every text field is
// quoted; the line id and the duration are not. Rows are joined with "\n"
// and there is no trailing newline.
type CSVRenderer struct {
	ReasonColumn bool
	// Location for timestamps; nil means local time.
	Location *time.Location
}

func (r *CSVRenderer) Render(entries []session.LogEntry) ([]byte, error) {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	header := csvHeader
	if r.ReasonColumn {
		header = csvHeaderReason
	}
	rows := []string{strings.Join(header, ",")}
	for _, e := range SortByStart(entries) {
		fields := []string{
			e.Line.String(),
			quote(e.LineName),
			quote(e.Task),
			quote(FormatDateTime(e.StartedAt, loc)),
			quote(FormatDateTime(e.EndedAt, loc)),
			fmt.Sprint(DurationSeconds(e)),
		}
		if r.ReasonColumn {
			fields = append(fields, quote(e.Reason))
		}
		fields = append(fields, quote(e.Memo))
		rows = append(rows, strings.Join(fields, ","))
	}
	return []byte(strings.Join(rows, "\n")), nil
}

// csvNamespace seeds the ids of imported rows, so importing the same file
// twice yields the same ids.
var csvNamespace = uuid.MustParse("6f1c3b0e-4f7a-4d59-9a43-1b2f0e5c7d21")

// CSVParser reads files written by CSVRenderer, with or without the reason
// column. CSV carries no record ids; each row gets an id derived from its
// content.
type CSVParser struct {
	Location *time.Location
}

func (p *CSVParser) Parse(data []byte) ([]session.LogEntry, error) {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("failed to parse CSV: empty file")
	}
	withReason := len(records[0]) == len(csvHeaderReason)
	if !withReason && len(records[0]) != len(csvHeader) {
		return nil, fmt.Errorf("failed to parse CSV: unexpected header %q", records[0])
	}

	var out []session.LogEntry
	for i, rec := range records[1:] {
		row := i + 2
		if len(rec) != len(records[0]) {
			return nil, fmt.Errorf("CSV row %d: want %d fields, got %d", row, len(records[0]), len(rec))
		}
		line, err := session.ParseLine(rec[0])
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: %w", row, err)
		}
		start, err := time.ParseInLocation(dateTimeLayout, rec[3], loc)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: start: %w", row, err)
		}
		end, err := time.ParseInLocation(dateTimeLayout, rec[4], loc)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: end: %w", row, err)
		}
		e := session.LogEntry{
			Line:      line,
			LineName:  rec[1],
			Task:      rec[2],
			StartedAt: start,
			EndedAt:   end,
			Memo:      rec[len(rec)-1],
		}
		if withReason {
			e.Reason = rec[6]
		}
		key := strings.Join([]string{rec[0], rec[2], rec[3], rec[4]}, "\x00")
		e.ID = uuid.NewSHA1(csvNamespace, []byte(key)).String()
		out = append(out, e)
	}
	return out, nil
}
