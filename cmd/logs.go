package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/logstore"
	"github.com/fakeyudi/linewheel/internal/session"
)

var (
	logsLimit int
	logsJSON  bool
	logsYes   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs [query]",
	Short: "List records, newest first, optionally filtered by a search query",
	Long: `List records newest first. The query matches task, line letter, line
name, reason and memo, case-insensitively.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		entries, err := c.SearchLogs(query, logsLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if logsJSON {
			if entries == nil {
				entries = []session.LogEntry{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "no records")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.Line, e.StartedAt.Format("01/02 15:04"), e.Task,
				session.FormatDuration(e.Duration()), e.Reason, e.Memo)
		}
		return tw.Flush()
	},
}

var logsDeleteCmd = &cobra.Command{
	Use:   "delete <line> <id>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		line, err := session.ParseLine(args[0])
		if err != nil {
			return err
		}
		if err := c.DeleteLog(line, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Record deleted.")
		return nil
	},
}

var logsEditCmd = &cobra.Command{
	Use:   "edit <line> <id> <memo>",
	Short: "Replace the memo of a record",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		line, err := session.ParseLine(args[0])
		if err != nil {
			return err
		}
		if err := c.EditLogMemo(line, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Memo updated.")
		return nil
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !logsYes {
			return fmt.Errorf("refusing to delete every record without --yes")
		}
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ClearLogs(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All records deleted.")
		return nil
	},
}

var logsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge records from an exported CSV, JSON or Markdown file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		entries, err := parseExport(args[0], data)
		if err != nil {
			return err
		}
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		added, err := c.ImportLogs(entries)
		if err != nil {
			return err
		}
		skipped := len(entries) - added
		msg := fmt.Sprintf("Imported %d record(s)", added)
		if skipped > 0 {
			msg += fmt.Sprintf(", skipped %d already stored or on unconfigured lines", skipped)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg+".")
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", logstore.SearchLimit, "maximum number of records")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "print records as JSON")
	logsClearCmd.Flags().BoolVar(&logsYes, "yes", false, "confirm deleting every record")
	logsCmd.AddCommand(logsDeleteCmd, logsEditCmd, logsClearCmd, logsImportCmd)
	rootCmd.AddCommand(logsCmd)
}
