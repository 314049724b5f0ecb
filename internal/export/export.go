// Package export renders session records as CSV, JSON or a Markdown daily
// report, and parses those formats back for import.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/fakeyudi/linewheel/internal/session"
)

// Renderer serializes records.
type Renderer interface {
	Render(entries []session.LogEntry) ([]byte, error)
}

// Parser deserializes records written by the matching Renderer.
type Parser interface {
	Parse(data []byte) ([]session.LogEntry, error)
}

// Format names accepted by ForFormat.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "md"
)

// FileName returns timelogs_<YYYY-MM-DD>.<ext> for the UTC date of now.
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("timelogs_%s.%s", now.UTC().Format(time.DateOnly), ext)
}

// SortByStart returns a copy of entries ordered by startedAt ascending.
func SortByStart(entries []session.LogEntry) []session.LogEntry {
	out := append([]session.LogEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// OnDay keeps the records that started on the calendar day of day, in
// day's location.
func OnDay(entries []session.LogEntry, day time.Time) []session.LogEntry {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)
	var out []session.LogEntry
	for _, e := range entries {
		if !e.StartedAt.Before(from) && e.StartedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out
}

// ForFormat returns the renderer and parser of format.
func ForFormat(format string, opts Options) (Renderer, Parser, error) {
	switch format {
	case FormatCSV:
		return &CSVRenderer{ReasonColumn: opts.ReasonColumn, Location: opts.Location},
			&CSVParser{Location: opts.Location}, nil
	case FormatJSON:
		return &JSONRenderer{}, &JSONParser{}, nil
	case FormatMarkdown:
		return &MarkdownRenderer{Day: opts.Day, Operator: opts.Operator, Location: opts.Location},
			&MarkdownParser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown format %q (supported: csv, json, md)", format)
}

// Options carries the per-format knobs of ForFormat.
type Options struct {
	ReasonColumn bool
	Location     *time.Location
	Day          time.Time
	Operator     string
}
