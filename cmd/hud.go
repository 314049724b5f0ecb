package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/tui"
)

var hudCmd = &cobra.Command{
	Use:   "hud",
	Short: "Open the interactive wheel with the watchdog and break alerts running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompter := tui.NewPrompter()
		c, err := openApp(prompter)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := c.Run(ctx); err != nil {
				logger.Error("automation stopped", "err", err)
			}
		}()
		return tui.Run(c, prompter)
	},
}

func init() {
	rootCmd.AddCommand(hudCmd)
}
