package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/app"
	"github.com/fakeyudi/linewheel/internal/session"
)

var selectCmd = &cobra.Command{
	Use:   "select <line>",
	Short: "Select the line the wheel and the max-session watchdog follow",
	Args:  cobra.ExactArgs(1),
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
		if err := c.SelectLine(line); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Selected %s.\n", lineName(c, line))
		return nil
	},
}

var centerCmd = &cobra.Command{
	Use:   "center",
	Short: "Press the wheel's center: stop the selected line or apply the idle action",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		action, err := c.CenterClick()
		if err != nil {
			return err
		}
		line := c.CurrentLine()
		st, _ := c.Status().Line(line)
		out := cmd.OutOrStdout()
		switch action {
		case app.CenterStopped:
			fmt.Fprintf(out, "Stopped %s.\n", lineName(c, line))
		case app.CenterResumed, app.CenterStarted:
			fmt.Fprintf(out, "Started %s on %s.\n", st.Task, lineName(c, line))
		case app.CenterOpenLineRing:
			fmt.Fprintln(out, "Pick a line with 'linewheel select <line>'.")
		default:
			fmt.Fprintf(out, "%s is idle.\n", lineName(c, line))
		}
		return nil
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown [line]",
	Short: "Start the " + session.TaskShutdown + " task on a line",
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
		prev, err := c.Shutdown(line)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if prev != nil {
			fmt.Fprintf(out, "Finished %s after %s.\n", prev.Task, session.FormatDuration(prev.Duration()))
		}
		fmt.Fprintf(out, "Started %s on %s.\n", session.TaskShutdown, lineName(c, line))
		return nil
	},
}

var eodCmd = &cobra.Command{
	Use:   "eod",
	Short: "End of day: stop every running line with reason " + session.ReasonEndOfDay,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		entries, err := c.EndOfDay()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "Stopped %s on %s after %s.\n", e.Task, e.LineName, session.FormatDuration(e.Duration()))
		}
		fmt.Fprintf(out, "%d line(s) stopped.\n", len(entries))
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <key>",
	Short: "Send a wheel shortcut: a digit selects a line, space stops the selected line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()
		return c.HandleKey(args[0])
	},
}

func init() {
	rootCmd.AddCommand(selectCmd, centerCmd, shutdownCmd, eodCmd, keyCmd)
}
