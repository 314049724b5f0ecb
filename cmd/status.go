package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/session"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what every line is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		st := c.Status()
		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, ls := range st.Lines {
			marker := " "
			if ls.Line == st.CurrentLine {
				marker = "*"
			}
			switch {
			case ls.Running:
				fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", marker, ls.Line, ls.Name, ls.Task, ls.Elapsed)
			case ls.LastEnded != nil:
				fmt.Fprintf(tw, "%s %s\t%s\tidle\tlast: %s at %s\n", marker, ls.Line, ls.Name,
					ls.LastEnded.Task, ls.LastEnded.EndedAt.Format("15:04"))
			default:
				fmt.Fprintf(tw, "%s %s\t%s\tidle\t\n", marker, ls.Line, ls.Name)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if u := st.Undo; u != nil {
			what := "stop of"
			if u.Kind == session.UndoAutoStop {
				what = "switch from"
			}
			fmt.Fprintf(out, "Undo available for the %s %s on %s until %s.\n",
				what, u.Log.Task, u.Log.LineName, u.ExpiresAt.Format("15:04:05"))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
	rootCmd.AddCommand(statusCmd)
}
