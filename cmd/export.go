package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/export"
)

var (
	exportFormat string
	exportOut    string
	exportDay    string
	exportPlain  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records as CSV, JSON or a Markdown daily report",
	Long: `Export records. CSV and JSON contain every record unless --day is
given; the Markdown report always covers one day (default: today).
The file is written to --out (a directory, default ".") as
timelogs_<date>.<ext>; --out - prints to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		now := clock.Now()
		day := now
		if exportDay != "" {
			day, err = time.ParseInLocation(time.DateOnly, exportDay, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --day %q: want YYYY-MM-DD", exportDay)
			}
		}

		renderer, _, err := export.ForFormat(exportFormat, export.Options{
			ReasonColumn: cfg.CSVReasonColumn,
			Location:     time.Local,
			Day:          day,
			Operator:     cfg.Operator,
		})
		if err != nil {
			return err
		}

		entries, err := c.AllLogs()
		if err != nil {
			return err
		}
		if exportDay != "" && exportFormat != export.FormatMarkdown {
			entries = export.OnDay(entries, day)
		}
		data, err := renderer.Render(export.SortByStart(entries))
		if err != nil {
			return fmt.Errorf("render %s: %w", exportFormat, err)
		}

		if exportOut == "-" {
			if exportFormat == export.FormatMarkdown {
				return writeMarkdown(cmd.OutOrStdout(), data, exportPlain)
			}
			_, err := cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}

		outputPath := filepath.Join(exportOut, export.FileName(now, exportFormat))
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", len(entries), outputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", export.FormatCSV, "output format: csv, json or md")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory, or - for stdout")
	exportCmd.Flags().StringVar(&exportDay, "day", "", "only records started on this day (YYYY-MM-DD)")
	exportCmd.Flags().BoolVar(&exportPlain, "plain", false, "print Markdown without terminal styling")
	rootCmd.AddCommand(exportCmd)
}
