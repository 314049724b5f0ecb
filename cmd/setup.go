package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/settings"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure linewheel (re-run anytime to edit settings)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, false)
	},
}

// runSetup runs the interactive wizard and writes the global settings file.
// If firstRun is true, a welcome message is shown.
func runSetup(cmd *cobra.Command, firstRun bool) error {
	out := cmd.OutOrStdout()
	if firstRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Let's get you set up.")
	}

	path, err := settings.GlobalPath()
	if err != nil {
		return err
	}

	// Current settings, if readable, are the defaults of every question.
	existing := settings.Defaults()
	if s, err := settings.Load("."); err == nil {
		existing = s
	}

	s, err := settings.RunSetup(cmd.InOrStdin(), out, existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := settings.Save(path, s); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	fmt.Fprintf(out, "  ✓ Settings saved to %s.\n", path)
	fmt.Fprintln(out, "  Setup complete. Run 'linewheel hud' to open the wheel.")
	fmt.Fprintln(out)
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
