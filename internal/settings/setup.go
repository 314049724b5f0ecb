package settings

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// RunSetup asks for each setting on out, reading answers from in. An empty
// answer keeps the value from existing.
func RunSetup(in io.Reader, out io.Writer, existing Settings) (Settings, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && !(err == io.EOF && line != "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		ans = strings.ToLower(ans)
		return ans == "y" || ans == "yes", nil
	}

	s := existing

	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(out, "  │   linewheel — setup             │")
	fmt.Fprintln(out, "  └─────────────────────────────────┘")
	fmt.Fprintln(out)

	var err error
	if s.Operator, err = ask("  Operator name (shown in reports)", s.Operator); err != nil {
		return Settings{}, err
	}
	if s.Variant, err = ask("  Line layout (six/five)", s.Variant); err != nil {
		return Settings{}, err
	}
	if s.Backend, err = ask("  Storage backend (file/sqlite)", s.Backend); err != nil {
		return Settings{}, err
	}
	if s.DataDir, err = ask("  Data directory", s.DataDir); err != nil {
		return Settings{}, err
	}
	if s.MemoPolicy, err = ask("  Memo change on a running task (inplace/split)", s.MemoPolicy); err != nil {
		return Settings{}, err
	}
	if s.SameTask, err = ask("  Restarting the running task (split/ignore)", s.SameTask); err != nil {
		return Settings{}, err
	}
	if s.Addr, err = ask("  HUD server address", s.Addr); err != nil {
		return Settings{}, err
	}
	if s.CSVReasonColumn, err = askBool("  Include the reason column in CSV exports", s.CSVReasonColumn); err != nil {
		return Settings{}, err
	}

	fmt.Fprintln(out)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
