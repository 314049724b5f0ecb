package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// isolate points HOME and XDG_DATA_HOME at temp dirs and clears overrides.
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvBackend, "")
	return home, project
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home, project := isolate(t)
	s, err := Load(project)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Backend != "file" || s.Variant != "six" || s.UndoWindow.Duration != 3*time.Second {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if want := filepath.Join(home, "data", "linewheel"); s.DataDir != want {
		t.Errorf("DataDir: want %s, got %s", want, s.DataDir)
	}
}

// Feature: linewheel, Property: project settings take precedence over
// global settings, which take precedence over defaults.
func TestMergePrecedence(t *testing.T) {
	home, project := isolate(t)
	globalPath := filepath.Join(home, ".config", "linewheel", "config.toml")
	variants := []string{"six", "five"}
	policies := []string{"inplace", "split"}

	rapid.Check(t, func(rt *rapid.T) {
		var global, local strings.Builder
		wantVariant, wantPolicy := "six", "inplace"

		if rapid.Bool().Draw(rt, "globalVariant") {
			v := rapid.SampledFrom(variants).Draw(rt, "gv")
			fmt.Fprintf(&global, "variant = %q\n", v)
			wantVariant = v
		}
		if rapid.Bool().Draw(rt, "projectVariant") {
			v := rapid.SampledFrom(variants).Draw(rt, "pv")
			fmt.Fprintf(&local, "variant = %q\n", v)
			wantVariant = v
		}
		if rapid.Bool().Draw(rt, "globalPolicy") {
			v := rapid.SampledFrom(policies).Draw(rt, "gp")
			fmt.Fprintf(&global, "memo_policy = %q\n", v)
			wantPolicy = v
		}
		if rapid.Bool().Draw(rt, "projectPolicy") {
			v := rapid.SampledFrom(policies).Draw(rt, "pp")
			fmt.Fprintf(&local, "memo_policy = %q\n", v)
			wantPolicy = v
		}
		writeFile(t, globalPath, global.String())
		writeFile(t, filepath.Join(project, ProjectFile), local.String())

		s, err := Load(project)
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}
		if s.Variant != wantVariant || s.MemoPolicy != wantPolicy {
			rt.Fatalf("got variant=%s memo_policy=%s, want %s %s", s.Variant, s.MemoPolicy, wantVariant, wantPolicy)
		}
	})
}

func TestProjectFalseOverridesGlobalTrue(t *testing.T) {
	home, project := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "linewheel", "config.toml"), "csv_reason_column = true\n")
	writeFile(t, filepath.Join(project, ProjectFile), "csv_reason_column = false\nundo_window = \"5s\"\n")

	s, err := Load(project)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.CSVReasonColumn {
		t.Error("an explicit false in the project file must win")
	}
	if s.UndoWindow.Duration != 5*time.Second {
		t.Errorf("undo_window: want 5s, got %s", s.UndoWindow)
	}
}

func TestEnvOverrides(t *testing.T) {
	_, project := isolate(t)
	writeFile(t, filepath.Join(project, ProjectFile), "backend = \"file\"\n")
	t.Setenv(EnvBackend, "sqlite")
	t.Setenv(EnvDataDir, "/tmp/lw")

	s, err := Load(project)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Backend != "sqlite" || s.DataDir != "/tmp/lw" {
		t.Errorf("env overrides not applied: %+v", s)
	}
}

func TestParseError(t *testing.T) {
	_, project := isolate(t)
	path := filepath.Join(project, ProjectFile)
	writeFile(t, path, "variant = = six\n")

	_, err := Load(project)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want *ParseError, got %T: %v", err, err)
	}
	if pe.Path != path {
		t.Errorf("ParseError.Path: want %s, got %s", path, pe.Path)
	}
}

func TestInvalidValueRejected(t *testing.T) {
	_, project := isolate(t)
	writeFile(t, filepath.Join(project, ProjectFile), "same_task = \"merge\"\n")
	if _, err := Load(project); err == nil || !strings.Contains(err.Error(), "same_task") {
		t.Errorf("want same_task validation error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	home, project := isolate(t)
	s := Defaults()
	s.Operator = "Sato"
	s.Variant = "five"
	s.BreakPoll = Duration{10 * time.Second}
	path := filepath.Join(home, ".config", "linewheel", "config.toml")
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(project)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != s {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, s)
	}
}

func TestRunSetup(t *testing.T) {
	in := strings.NewReader("Sato\nfive\n\n\nsplit\n\n\nn\n")
	var out bytes.Buffer
	s, err := RunSetup(in, &out, Defaults())
	if err != nil {
		t.Fatalf("RunSetup: %v", err)
	}
	if s.Operator != "Sato" || s.Variant != "five" || s.MemoPolicy != "split" {
		t.Errorf("answers not applied: %+v", s)
	}
	if s.Backend != "file" || s.SameTask != "split" {
		t.Errorf("empty answers should keep defaults: %+v", s)
	}
	if s.CSVReasonColumn {
		t.Error("csv_reason_column should be false")
	}
	if !strings.Contains(out.String(), "Operator name") {
		t.Errorf("prompts not written: %q", out.String())
	}
}

func TestRunSetupRejectsInvalidAnswer(t *testing.T) {
	in := strings.NewReader("\nseven\n\n\n\n\n\n\n")
	if _, err := RunSetup(in, &bytes.Buffer{}, Defaults()); err == nil {
		t.Error("invalid variant should be rejected")
	}
}
