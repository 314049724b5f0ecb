package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/session"
)

var memoLine string

var memoCmd = &cobra.Command{
	Use:     "memo <text>",
	Aliases: []string{"note"},
	Short:   "Set the memo of a line's running session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		line := c.CurrentLine()
		if memoLine != "" {
			if line, err = session.ParseLine(memoLine); err != nil {
				return err
			}
		}
		split, err := c.UpdateMemo(line, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if split != nil {
			fmt.Fprintf(out, "Recorded %s with the previous memo (%s).\n", split.Task, session.FormatDuration(split.Duration()))
		}
		if st, _ := c.Status().Line(line); !st.Running {
			fmt.Fprintf(out, "%s is idle; memo not kept.\n", lineName(c, line))
			return nil
		}
		fmt.Fprintln(out, "Memo saved.")
		return nil
	},
}

func init() {
	memoCmd.Flags().StringVarP(&memoLine, "line", "l", "", "line (default: the selected line)")
	rootCmd.AddCommand(memoCmd)
}
