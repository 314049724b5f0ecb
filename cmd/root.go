package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/app"
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/kv"
	"github.com/fakeyudi/linewheel/internal/session"
	"github.com/fakeyudi/linewheel/internal/settings"
	"github.com/fakeyudi/linewheel/internal/timer"
)

// cfg holds the merged settings, populated in PersistentPreRunE.
var cfg settings.Settings

// logger writes to stderr; --verbose lowers the level to debug.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// clock drives every coordinator the commands open. Tests replace it.
var clock timer.Clock = timer.Real()

var (
	flagDataDir string
	flagBackend string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "linewheel",
	Short:        "Track per-line production time from the terminal",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		// Skip the first-run check for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		// First run: no global settings file yet. Only offer the wizard
		// when stdin is an interactive terminal.
		if path, err := settings.GlobalPath(); err == nil {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) && term.IsTerminal(os.Stdin.Fd()) {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to linewheel! Looks like this is your first time.")
				if err := runSetup(cmd, true); err != nil {
					return err
				}
			}
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		s, err := settings.Load(cwd)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		if flagDataDir != "" {
			s.DataDir = flagDataDir
		}
		if flagBackend != "" {
			s.Backend = flagBackend
		}
		if err := s.Validate(); err != nil {
			return err
		}
		cfg = s
		logger.Debug("settings loaded", "backend", cfg.Backend, "data_dir", cfg.DataDir, "variant", cfg.Variant)
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp opens the configured store and builds a coordinator over it.
// The caller closes it.
func openApp(prompter app.Prompter) (*app.Coordinator, error) {
	store, err := kv.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Backend, err)
	}
	variant, err := config.ParseVariant(cfg.Variant)
	if err != nil {
		store.Close()
		return nil, err
	}
	c, err := app.New(app.Options{
		Store:      store,
		Variant:    variant,
		MemoPolicy: session.MemoPolicy(cfg.MemoPolicy),
		SameTask:   session.SameTaskPolicy(cfg.SameTask),
		UndoWindow: cfg.UndoWindow.Duration,
		BreakPoll:  cfg.BreakPoll.Duration,
		Clock:      clock,
		Prompter:   prompter,
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// lineArg parses args[i] as a line id, falling back to the selected line
// when args is shorter.
func lineArg(c *app.Coordinator, args []string, i int) (session.LineID, error) {
	if i < len(args) {
		return session.ParseLine(args[i])
	}
	return c.CurrentLine(), nil
}

// lineName is the configured display name of line, or its letter.
func lineName(c *app.Coordinator, line session.LineID) string {
	if name, ok := c.Config().LineName(line); ok {
		return name
	}
	return line.String()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "storage backend: file, sqlite or memory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}
