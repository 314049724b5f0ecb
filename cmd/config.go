package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/session"
)

var bulkSkip string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit the wheel configuration (lines, tasks, automation)",
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"export"},
	Short:   "Print the configuration as JSON, or write it to a file",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		data, err := config.ExportJSON(c.Config())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", args[0])
			return nil
		}
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	},
}

var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge an exported configuration over the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		cfg, err := c.ImportConfig(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration imported (%d lines).\n", len(cfg.Lines))
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the factory configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		if _, err := c.ResetConfig(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
		return nil
	},
}

var configBulkCmd = &cobra.Command{
	Use:   "bulk <category>...",
	Short: "Give every line the same categories",
	Long: `Give every configured line the same categories. Each argument is a
category name, optionally followed by "=" and comma-separated
sub-categories, e.g. 段取り=Lot切替,調整.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cats := parseCategories(args)
		var skip []session.LineID
		for _, s := range splitList(bulkSkip) {
			line, err := session.ParseLine(s)
			if err != nil {
				return err
			}
			skip = append(skip, line)
		}

		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.BulkCategories(cats, skip...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d categories.\n", len(cats))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting. Keys:
  line-name <line>=<name>
  max-session <minutes>        (0 disables the watchdog)
  max-session-action stop|prompt
  center-idle-action none|resume|openLineRing|startDefault
  quick-resume <minutes>
  break-alerts HH:MM[,HH:MM...]
  memo-presets <line>=<preset>[,<preset>...]`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openApp(nil)
		if err != nil {
			return err
		}
		defer c.Close()

		cfg, err := applySetting(c.Config(), args[0], args[1])
		if err != nil {
			return err
		}
		if err := c.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s updated.\n", args[0])
		return nil
	},
}

// applySetting returns cfg with key set to value.
func applySetting(cfg config.AppConfig, key, value string) (config.AppConfig, error) {
	minutes := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s wants a non-negative number of minutes, got %q", key, value)
		}
		return n, nil
	}
	perLine := func() (session.LineID, config.LineConfig, string, error) {
		l, v, ok := strings.Cut(value, "=")
		if !ok {
			return 0, config.LineConfig{}, "", fmt.Errorf("%s wants <line>=<value>", key)
		}
		line, err := session.ParseLine(l)
		if err != nil {
			return 0, config.LineConfig{}, "", err
		}
		lc, ok := cfg.Lines[line]
		if !ok {
			return 0, config.LineConfig{}, "", fmt.Errorf("%w: %s is not configured", session.ErrUnknownLine, line)
		}
		return line, lc, v, nil
	}

	switch key {
	case "line-name":
		line, lc, v, err := perLine()
		if err != nil {
			return cfg, err
		}
		lc.Name = v
		cfg.Lines[line] = lc
	case "memo-presets":
		line, lc, v, err := perLine()
		if err != nil {
			return cfg, err
		}
		lc.MemoPresets = splitList(v)
		cfg.Lines[line] = lc
	case "max-session":
		n, err := minutes()
		if err != nil {
			return cfg, err
		}
		cfg.MaxSessionMin = n
	case "quick-resume":
		n, err := minutes()
		if err != nil {
			return cfg, err
		}
		cfg.QuickResumeMin = n
	case "max-session-action":
		cfg.MaxSessionAction = config.MaxSessionAction(value)
	case "center-idle-action":
		cfg.CenterIdleAction = config.CenterIdleAction(value)
	case "break-alerts":
		cfg.BreakAlerts = splitList(value)
	default:
		return cfg, fmt.Errorf("unknown setting %q", key)
	}
	return cfg, nil
}

// parseCategories reads "Name" or "Name=Sub1,Sub2" arguments.
func parseCategories(args []string) []config.Category {
	cats := make([]config.Category, 0, len(args))
	for _, a := range args {
		name, subs, _ := strings.Cut(a, "=")
		cats = append(cats, config.Category{Name: strings.TrimSpace(name), SubCategories: splitList(subs)})
	}
	return cats
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	configBulkCmd.Flags().StringVar(&bulkSkip, "skip", "", "comma-separated lines to leave unchanged")
	configCmd.AddCommand(configShowCmd, configImportCmd, configResetCmd, configBulkCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
