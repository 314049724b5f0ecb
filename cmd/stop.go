package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/session"
)

var stopReason string

var stopCmd = &cobra.Command{
	Use:   "stop [line]",
	Short: "Stop the task on a line (default: the selected line)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		line, err := lineArg(c, args, 0)
		if err != nil {
			return err
		}
		entry, err := c.Stop(line, stopReason)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if entry == nil {
			fmt.Fprintf(out, "%s is idle.\n", lineName(c, line))
			return nil
		}
		fmt.Fprintf(out, "Stopped %s on %s after %s.\n", entry.Task, entry.LineName, session.FormatDuration(entry.Duration()))
		fmt.Fprintln(out, "Run 'linewheel undo' within the undo window to take it back.")
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Reverse the last stop or task switch while the undo window is open",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		u, err := c.Undo()
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("nothing to undo")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s on %s.\n", u.Log.Task, u.Log.LineName)
		return nil
	},
}

func init() {
	stopCmd.Flags().StringVarP(&stopReason, "reason", "r", "", "reason recorded with the stop")
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(undoCmd)
}
