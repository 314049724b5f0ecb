package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/linewheel/internal/app"
	"github.com/fakeyudi/linewheel/internal/kv"
	"github.com/fakeyudi/linewheel/internal/session"
)

func TestStartStopUndo(t *testing.T) {
	fake, _ := newTestEnv(t)

	out := mustRun(t, "start", "A", "1", "--memo", "lot 3")
	if !strings.Contains(out, "Started 生産 on LINE A.") {
		t.Errorf("unexpected start output: %q", out)
	}

	fake.Advance(90 * time.Second)
	out = mustRun(t, "stop", "--reason", "manual")
	if !strings.Contains(out, "Stopped 生産 on LINE A after 01:30.") {
		t.Errorf("unexpected stop output: %q", out)
	}

	out = mustRun(t, "undo")
	if !strings.Contains(out, "Resumed 生産 on LINE A.") {
		t.Errorf("unexpected undo output: %q", out)
	}
	if _, err := executeCommand(rootCmd, "undo"); err == nil {
		t.Error("a second undo should fail")
	}
}

func TestStartSwitchReportsFinishedTask(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "start", "B", "生産")
	fake.Advance(time.Hour + 2*time.Second)

	out := mustRun(t, "start", "B", "段取り/Lot切替")
	if !strings.Contains(out, "Finished 生産 after 1:00:02.") {
		t.Errorf("switch should report the finished task: %q", out)
	}
	if !strings.Contains(out, "Started 段取り > Lot切替 on LINE B.") {
		t.Errorf("sub-category shorthand should resolve: %q", out)
	}
}

func TestStartRejectsUnknownTask(t *testing.T) {
	newTestEnv(t)
	out, err := executeCommand(rootCmd, "start", "A", "nope")
	if err == nil {
		t.Fatal("expected an error for an unconfigured task")
	}
	if !strings.Contains(out+err.Error(), "tasks: 生産") {
		t.Errorf("error should list the line's tasks: %q", out+err.Error())
	}

	out = mustRun(t, "start", "A", "nope", "--raw")
	if !strings.Contains(out, "Started nope") {
		t.Errorf("--raw should record any text: %q", out)
	}
}

func TestStartUnknownLine(t *testing.T) {
	newTestEnv(t)
	_, err := executeCommand(rootCmd, "start", "Z", "1")
	if err == nil || !strings.Contains(err.Error(), "unknown line") {
		t.Errorf("expected unknown line error, got %v", err)
	}
}

func TestStopIdleLine(t *testing.T) {
	newTestEnv(t)
	out := mustRun(t, "stop", "C")
	if !strings.Contains(out, "LINE C is idle.") {
		t.Errorf("unexpected output: %q", out)
	}
}

// Feature: linewheel, Property 13: Status reports exactly the started lines
func TestStatusReportsStartedLines(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		newTestEnv(t)
		started := make(map[session.LineID]bool)
		n := rapid.IntRange(0, 6).Draw(rt, "n")
		for i := 0; i < n; i++ {
			line := session.AllLines[rapid.IntRange(0, 5).Draw(rt, "line")]
			if _, err := executeCommand(rootCmd, "start", line.String(), "1"); err != nil {
				rt.Fatalf("start %s: %v", line, err)
			}
			started[line] = true
		}

		out, err := executeCommand(rootCmd, "status", "--json")
		if err != nil {
			rt.Fatalf("status: %v", err)
		}
		var st app.Status
		if err := json.Unmarshal([]byte(out), &st); err != nil {
			rt.Fatalf("decode %q: %v", out, err)
		}
		for _, ls := range st.Lines {
			if ls.Running != started[ls.Line] {
				rt.Errorf("line %s running=%v, want %v", ls.Line, ls.Running, started[ls.Line])
			}
		}
	})
}

func TestStatusTable(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "select", "C")
	mustRun(t, "start", "C", "1")
	fake.Advance(5 * time.Minute)

	out := mustRun(t, "status")
	if !strings.Contains(out, "* C") || !strings.Contains(out, "05:00") {
		t.Errorf("status should mark C selected and running 05:00:\n%s", out)
	}
}

func TestMemoAndLogs(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "start", "A", "1")
	mustRun(t, "memo", "lot 42")
	fake.Advance(time.Minute)
	mustRun(t, "stop")

	out := mustRun(t, "logs", "LOT 42")
	if !strings.Contains(out, "lot 42") {
		t.Fatalf("search should find the memo:\n%s", out)
	}

	out = mustRun(t, "logs", "--json")
	var entries []session.LogEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) != 1 {
		t.Fatalf("expected one JSON record, got %q (%v)", out, err)
	}
	id := entries[0].ID

	mustRun(t, "logs", "edit", "A", id, "lot 43")
	out = mustRun(t, "logs", "--json")
	entries = nil
	json.Unmarshal([]byte(out), &entries)
	if entries[0].Memo != "lot 43" {
		t.Errorf("edit should replace the memo: %+v", entries[0])
	}

	mustRun(t, "logs", "delete", "A", id)
	out = mustRun(t, "logs")
	if !strings.Contains(out, "no records") {
		t.Errorf("delete should remove the record:\n%s", out)
	}
}

func TestMemoOnIdleLine(t *testing.T) {
	newTestEnv(t)
	out := mustRun(t, "memo", "--line", "B", "lost")
	if !strings.Contains(out, "memo not kept") {
		t.Errorf("idle memo should be dropped: %q", out)
	}
}

func TestLogsClearNeedsYes(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "start", "A", "1")
	fake.Advance(time.Minute)
	mustRun(t, "stop")

	if _, err := executeCommand(rootCmd, "logs", "clear"); err == nil {
		t.Fatal("clear without --yes should fail")
	}
	mustRun(t, "logs", "clear", "--yes")
	if out := mustRun(t, "logs"); !strings.Contains(out, "no records") {
		t.Errorf("clear should delete everything:\n%s", out)
	}
}

func TestExportViewImportRoundTrip(t *testing.T) {
	fake, tmp := newTestEnv(t)
	mustRun(t, "start", "A", "1", "--memo", "first")
	fake.Advance(10 * time.Minute)
	mustRun(t, "start", "A", "2")
	fake.Advance(5 * time.Minute)
	mustRun(t, "stop", "--reason", "manual")

	for _, format := range []string{"csv", "json", "md"} {
		t.Run(format, func(t *testing.T) {
			outDir := filepath.Join(tmp, "out-"+format)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				t.Fatal(err)
			}
			out := mustRun(t, "export", "--format", format, "--out", outDir)
			path := filepath.Join(outDir, "timelogs_2026-03-02."+format)
			if !strings.Contains(out, "Exported 2 record(s) to "+path) {
				t.Fatalf("unexpected export output: %q", out)
			}

			out = mustRun(t, "view", "--plain", path)
			summary := strings.Index(out, "## Summary")
			records := strings.Index(out, "## Records")
			if summary == -1 || records == -1 || summary > records {
				t.Errorf("view should print Summary before Records:\n%s", out)
			}
			if !strings.Contains(out, "LINE A") || !strings.Contains(out, "[manual]") {
				t.Errorf("view should list the records:\n%s", out)
			}

			out = mustRun(t, "logs", "import", path)
			if format == "csv" {
				// CSV rows carry no ids, so they import as new records.
				if !strings.Contains(out, "Imported 2 record(s).") {
					t.Errorf("unexpected import output: %q", out)
				}
				mustRun(t, "logs", "clear", "--yes")
				mustRun(t, "logs", "import", path)
				return
			}
			if !strings.Contains(out, "Imported 0 record(s), skipped 2") {
				t.Errorf("re-importing stored records should skip them: %q", out)
			}
		})
	}
}

func TestExportToStdout(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "start", "A", "1")
	fake.Advance(time.Minute)
	mustRun(t, "stop")

	out := mustRun(t, "export", "--out", "-")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], `A,"LINE A","生産"`) {
		t.Errorf("unexpected CSV:\n%s", out)
	}

	out = mustRun(t, "export", "--format", "md", "--out", "-")
	if !strings.Contains(out, "# Daily report") {
		t.Errorf("markdown report expected:\n%s", out)
	}
}

func TestExportRejectsBadInput(t *testing.T) {
	newTestEnv(t)
	if _, err := executeCommand(rootCmd, "export", "--format", "xml"); err == nil {
		t.Error("unknown format should fail")
	}
	if _, err := executeCommand(rootCmd, "export", "--day", "03/02"); err == nil {
		t.Error("malformed day should fail")
	}
}

// TestViewNonExistentFile verifies that viewing a missing file returns
// "file not found: <path>".
func TestViewNonExistentFile(t *testing.T) {
	_, tmp := newTestEnv(t)
	missingPath := filepath.Join(tmp, "does-not-exist.md")

	out, err := executeCommand(rootCmd, "view", missingPath)
	if err == nil {
		t.Fatal("expected an error for non-existent file, got nil")
	}
	combined := out + err.Error()
	expected := "file not found: " + missingPath
	if !strings.Contains(combined, expected) {
		t.Errorf("expected error to contain %q, got: %q", expected, combined)
	}
}

// TestViewInvalidReport verifies that a Markdown file without the report
// sentinel is rejected.
func TestViewInvalidReport(t *testing.T) {
	_, tmp := newTestEnv(t)
	plainMD := filepath.Join(tmp, "plain.md")
	if err := os.WriteFile(plainMD, []byte("# Just a regular markdown file\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := executeCommand(rootCmd, "view", plainMD)
	if err == nil {
		t.Fatal("expected an error for invalid report, got nil")
	}
	if !strings.Contains(out+err.Error(), "not a linewheel report") {
		t.Errorf("unexpected error: %q", out+err.Error())
	}
}

func TestConfigSet(t *testing.T) {
	newTestEnv(t)
	mustRun(t, "config", "set", "max-session", "30")
	mustRun(t, "config", "set", "line-name", "A=Press 1")
	mustRun(t, "config", "set", "break-alerts", "09:30,14:00")

	out := mustRun(t, "config", "show")
	for _, want := range []string{`"maxSessionMin": 30`, `"Press 1"`, `"09:30"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config should contain %s:\n%s", want, out)
		}
	}

	tests := [][]string{
		{"max-session-action", "explode"},
		{"break-alerts", "25:00"},
		{"max-session", "-5"},
		{"line-name", "A="},
		{"bogus", "1"},
	}
	for _, tt := range tests {
		if _, err := executeCommand(rootCmd, "config", "set", tt[0], tt[1]); err == nil {
			t.Errorf("config set %s %s should fail", tt[0], tt[1])
		}
	}
}

func TestConfigBulkSkipsLines(t *testing.T) {
	newTestEnv(t)
	mustRun(t, "config", "bulk", "稼働", "段取り=Lot切替,調整", "--skip", "E")

	out := mustRun(t, "start", "B", "段取り/調整")
	if !strings.Contains(out, "Started 段取り > 調整") {
		t.Errorf("bulk categories should apply to B: %q", out)
	}
	if _, err := executeCommand(rootCmd, "start", "E", "稼働"); err == nil {
		t.Error("skipped line E should keep its own categories")
	}
}

func TestConfigExportImport(t *testing.T) {
	_, tmp := newTestEnv(t)
	mustRun(t, "config", "set", "quick-resume", "25")
	path := filepath.Join(tmp, "wheel.json")
	mustRun(t, "config", "export", path)

	mustRun(t, "config", "reset")
	if out := mustRun(t, "config", "show"); !strings.Contains(out, `"quickResumeMin": 10`) {
		t.Fatalf("reset should restore defaults:\n%s", out)
	}
	mustRun(t, "config", "import", path)
	if out := mustRun(t, "config", "show"); !strings.Contains(out, `"quickResumeMin": 25`) {
		t.Errorf("import should restore the exported config:\n%s", out)
	}

	bad := filepath.Join(tmp, "bad.json")
	os.WriteFile(bad, []byte(`{"maxSessionMin": 1}`), 0o644)
	if _, err := executeCommand(rootCmd, "config", "import", bad); err == nil {
		t.Error("import without lines should fail")
	}
}

func TestTemplates(t *testing.T) {
	newTestEnv(t)
	mustRun(t, "template", "save", "base")
	mustRun(t, "config", "set", "line-name", "A=Press 1")

	out := mustRun(t, "template", "list")
	if !strings.Contains(out, "base") || !strings.Contains(out, "6 lines") {
		t.Errorf("list should show the template:\n%s", out)
	}

	mustRun(t, "template", "apply", "base")
	if out := mustRun(t, "config", "show"); strings.Contains(out, "Press 1") {
		t.Errorf("apply should restore the template:\n%s", out)
	}

	mustRun(t, "template", "delete", "base")
	if _, err := executeCommand(rootCmd, "template", "apply", "base"); err == nil {
		t.Error("applying a deleted template should fail")
	}
}

func TestShutdownAndEndOfDay(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "start", "A", "1")
	mustRun(t, "start", "B", "1")
	fake.Advance(time.Minute)

	out := mustRun(t, "shutdown", "A")
	if !strings.Contains(out, "Started "+session.TaskShutdown+" on LINE A.") {
		t.Errorf("unexpected shutdown output: %q", out)
	}
	fake.Advance(time.Minute)

	out = mustRun(t, "eod")
	if !strings.Contains(out, "2 line(s) stopped.") {
		t.Errorf("unexpected eod output: %q", out)
	}
	out = mustRun(t, "logs", session.ReasonEndOfDay)
	if strings.Count(out, session.ReasonEndOfDay) != 2 {
		t.Errorf("both stops should carry the end-of-day reason:\n%s", out)
	}
}

func TestCenterAndKeys(t *testing.T) {
	fake, _ := newTestEnv(t)
	mustRun(t, "key", "2")
	mustRun(t, "start", "B", "1")
	fake.Advance(time.Minute)

	out := mustRun(t, "center")
	if !strings.Contains(out, "Stopped LINE B.") {
		t.Fatalf("center should stop the selected line: %q", out)
	}
	fake.Advance(time.Minute)
	out = mustRun(t, "center")
	if !strings.Contains(out, "Started 生産 on LINE B.") {
		t.Errorf("center within the quick-resume window should resume: %q", out)
	}

	mustRun(t, "key", " ")
	var st app.Status
	if err := json.Unmarshal([]byte(mustRun(t, "status", "--json")), &st); err != nil {
		t.Fatal(err)
	}
	b, _ := st.Line(session.LineB)
	if st.CurrentLine != session.LineB || b.Running {
		t.Errorf("space should stop B and keep it selected: %+v", st)
	}
}

func TestSetupWritesSettings(t *testing.T) {
	_, tmp := newTestEnv(t)
	answers := "Aki\nfive\n\n\n\n\n\n" + strings.Repeat("\n", 10)
	out, err := executeCommandWithInput(rootCmd, answers, "setup")
	if err != nil {
		t.Fatalf("setup: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Settings saved") {
		t.Errorf("unexpected setup output: %q", out)
	}
	data := readFile(t, filepath.Join(tmp, ".config", "linewheel", "config.toml"))
	if !strings.Contains(data, `variant = "five"`) || !strings.Contains(data, `operator = "Aki"`) {
		t.Errorf("settings file should hold the answers:\n%s", data)
	}

	out, err = executeCommand(rootCmd, "start", "F", "1")
	if err == nil {
		t.Errorf("five-line layout has no line F: %q", out)
	}
}

func TestBackendFlag(t *testing.T) {
	fake, tmp := newTestEnv(t)
	dir := filepath.Join(tmp, "sqlite-data")
	mustRun(t, "--backend", "sqlite", "--data-dir", dir, "start", "A", "1")
	fake.Advance(time.Minute)
	mustRun(t, "--backend", "sqlite", "--data-dir", dir, "stop")

	out := mustRun(t, "--backend", "sqlite", "--data-dir", dir, "logs")
	if !strings.Contains(out, "生産") {
		t.Errorf("sqlite backend should keep the record:\n%s", out)
	}
	if out := mustRun(t, "logs"); !strings.Contains(out, "no records") {
		t.Errorf("the file backend is separate:\n%s", out)
	}
	if _, err := os.Stat(kv.SQLitePath(dir)); err != nil {
		t.Errorf("sqlite database file expected: %v", err)
	}
}
