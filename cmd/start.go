package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/session"
)

var (
	startMemo string
	startRaw  bool
)

var startCmd = &cobra.Command{
	Use:   "start <line> <task>",
	Short: "Start a task on a line, finishing whatever ran there",
	Long: `Start a task on a line. The task is a configured label, its 1-based
index in the line's task list, or "Parent/Sub" for a subcategory.
Use --raw to record any text as the task.`,
	Args: cobra.ExactArgs(2),
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
		task := strings.TrimSpace(args[1])
		if !startRaw {
			task, err = c.Config().ResolveTask(line, args[1])
			if err != nil {
				return fmt.Errorf("%w (tasks: %s)", err, strings.Join(c.Config().Tasks(line), ", "))
			}
		}

		prev, err := c.Start(line, task, startMemo)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if prev != nil {
			fmt.Fprintf(out, "Finished %s after %s.\n", prev.Task, session.FormatDuration(prev.Duration()))
		}
		fmt.Fprintf(out, "Started %s on %s.\n", task, lineName(c, line))
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&startMemo, "memo", "m", "", "memo for the new session")
	startCmd.Flags().BoolVar(&startRaw, "raw", false, "record the task text as given")
	rootCmd.AddCommand(startCmd)
}
