package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Save and apply named configuration templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		list, err := c.Configs().Templates()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "no templates")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%d lines\t%s\n", t.ID, t.Name, len(t.Config.Lines), t.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var templateSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current configuration as a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		t, err := c.Configs().SaveTemplate(args[0], c.Config(), clock.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved template %s (%s).\n", t.Name, t.ID)
		return nil
	},
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <id-or-name>",
	Short: "Replace the configuration with a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		if _, err := c.ApplyTemplate(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied template %s.\n", args[0])
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <id-or-name>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Configs().DeleteTemplate(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s.\n", args[0])
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd, templateSaveCmd, templateApplyCmd, templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}
