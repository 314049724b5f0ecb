package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/export"
	"github.com/fakeyudi/linewheel/internal/session"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Summarize an exported CSV, JSON or Markdown file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		entries, err := parseExport(path, data)
		if err != nil {
			return err
		}

		if plainOutput {
			printSummary(cmd.OutOrStdout(), entries)
			return nil
		}
		r := &export.MarkdownRenderer{Day: reportDay(entries), Location: time.Local}
		md, err := r.Render(entries)
		if err != nil {
			return err
		}
		return writeMarkdown(cmd.OutOrStdout(), md, false)
	},
}

// parseExport picks the parser from the file extension.
func parseExport(path string, data []byte) ([]session.LogEntry, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "markdown" {
		format = export.FormatMarkdown
	}
	_, parser, err := export.ForFormat(format, export.Options{Location: time.Local})
	if err != nil {
		return nil, err
	}
	entries, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

// reportDay is the day of the most recent record, or today.
func reportDay(entries []session.LogEntry) time.Time {
	var day time.Time
	for _, e := range entries {
		if e.StartedAt.After(day) {
			day = e.StartedAt
		}
	}
	if day.IsZero() {
		return clock.Now()
	}
	return day.In(time.Local)
}

// writeMarkdown styles md with glamour when out is a terminal.
func writeMarkdown(out io.Writer, md []byte, plain bool) error {
	f, ok := out.(*os.File)
	if plain || !ok || !term.IsTerminal(f.Fd()) {
		_, err := out.Write(md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	styled, err := r.Render(string(md))
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, styled)
	return err
}

// printSummary writes per-line totals and the record list as plain text.
func printSummary(out io.Writer, entries []session.LogEntry) {
	fmt.Fprintln(out, "## Summary")
	summaries := export.Summarize(entries)
	if len(summaries) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "  %s %s  %s\n", s.Line, s.LineName, session.FormatDurationVerbose(time.Duration(s.Seconds)*time.Second))
		for _, t := range s.Tasks {
			fmt.Fprintf(out, "    %-20s %s\n", t.Task, session.FormatDuration(time.Duration(t.Seconds)*time.Second))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "## Records")
	if len(entries) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, e := range export.SortByStart(entries) {
		line := fmt.Sprintf("  %s  %s  %s  %s", e.StartedAt.In(time.Local).Format("2006-01-02 15:04:05"),
			e.Line, e.Task, session.FormatDuration(e.Duration()))
		if e.Reason != "" {
			line += "  [" + e.Reason + "]"
		}
		if e.Memo != "" {
			line += "  " + e.Memo
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of the styled report")
	rootCmd.AddCommand(viewCmd)
}
