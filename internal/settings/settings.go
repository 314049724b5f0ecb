// Package settings loads the process settings of linewheel from TOML: the
// storage backend, engine policies and server address. The global file at
// ~/.config/linewheel/config.toml is overlaid by ./linewheel.toml, then by
// environment variables.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ProjectFile is looked up in the working directory.
const ProjectFile = "linewheel.toml"

// Environment overrides.
const (
	EnvDataDir = "LINEWHEEL_DATA_DIR"
	EnvBackend = "LINEWHEEL_BACKEND"
)

// Duration is a time.Duration written as a Go duration string ("3s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Settings holds all process-level options.
type Settings struct {
	Backend         string   `toml:"backend"`
	DataDir         string   `toml:"data_dir"`
	Variant         string   `toml:"variant"`
	MemoPolicy      string   `toml:"memo_policy"`
	SameTask        string   `toml:"same_task"`
	UndoWindow      Duration `toml:"undo_window"`
	BreakPoll       Duration `toml:"break_poll"`
	Addr            string   `toml:"addr"`
	Operator        string   `toml:"operator"`
	CSVReasonColumn bool     `toml:"csv_reason_column"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Backend:         "file",
		DataDir:         DefaultDataDir(),
		Variant:         "six",
		MemoPolicy:      "inplace",
		SameTask:        "split",
		UndoWindow:      Duration{3 * time.Second},
		BreakPoll:       Duration{30 * time.Second},
		Addr:            "127.0.0.1:8420",
		CSVReasonColumn: true,
	}
}

// DefaultDataDir is $XDG_DATA_HOME/linewheel, or ~/.local/share/linewheel.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "linewheel")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".linewheel")
	}
	return filepath.Join(home, ".local", "share", "linewheel")
}

// GlobalPath returns ~/.config/linewheel/config.toml.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "linewheel", "config.toml"), nil
}

// Load reads the global file and the project file in dir, merges them over
// the defaults and applies environment overrides. Missing files are not an
// error.
func Load(dir string) (Settings, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return Settings{}, err
	}
	global, globalMeta, err := loadFile(globalPath)
	if err != nil {
		return Settings{}, err
	}
	project, projectMeta, err := loadFile(filepath.Join(dir, ProjectFile))
	if err != nil {
		return Settings{}, err
	}

	s := Defaults()
	overlay(&s, global, globalMeta)
	overlay(&s, project, projectMeta)
	applyEnv(&s)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadFile(path string) (Settings, toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, toml.MetaData{}, nil
	}
	if err != nil {
		return Settings{}, toml.MetaData{}, fmt.Errorf("read settings file %s: %w", path, err)
	}
	var s Settings
	meta, err := toml.Decode(string(data), &s)
	if err != nil {
		return Settings{}, toml.MetaData{}, &ParseError{Path: path, Err: err}
	}
	return s, meta, nil
}

// overlay copies every key defined in meta from src into dst.
func overlay(dst *Settings, src Settings, meta toml.MetaData) {
	if meta.IsDefined("backend") {
		dst.Backend = strings.TrimSpace(src.Backend)
	}
	if meta.IsDefined("data_dir") {
		dst.DataDir = expandHome(strings.TrimSpace(src.DataDir))
	}
	if meta.IsDefined("variant") {
		dst.Variant = strings.TrimSpace(src.Variant)
	}
	if meta.IsDefined("memo_policy") {
		dst.MemoPolicy = strings.TrimSpace(src.MemoPolicy)
	}
	if meta.IsDefined("same_task") {
		dst.SameTask = strings.TrimSpace(src.SameTask)
	}
	if meta.IsDefined("undo_window") {
		dst.UndoWindow = src.UndoWindow
	}
	if meta.IsDefined("break_poll") {
		dst.BreakPoll = src.BreakPoll
	}
	if meta.IsDefined("addr") {
		dst.Addr = strings.TrimSpace(src.Addr)
	}
	if meta.IsDefined("operator") {
		dst.Operator = strings.TrimSpace(src.Operator)
	}
	if meta.IsDefined("csv_reason_column") {
		dst.CSVReasonColumn = src.CSVReasonColumn
	}
}

func applyEnv(s *Settings) {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		s.DataDir = expandHome(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		s.Backend = v
	}
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// Validate checks the enumerated fields.
func (s Settings) Validate() error {
	check := func(field, value string, allowed ...string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("invalid %s %q (supported: %s)", field, value, strings.Join(allowed, ", "))
	}
	if err := check("backend", s.Backend, "file", "sqlite", "memory"); err != nil {
		return err
	}
	if err := check("variant", s.Variant, "six", "five"); err != nil {
		return err
	}
	if err := check("memo_policy", s.MemoPolicy, "inplace", "split"); err != nil {
		return err
	}
	if err := check("same_task", s.SameTask, "split", "ignore"); err != nil {
		return err
	}
	if s.UndoWindow.Duration <= 0 {
		return fmt.Errorf("undo_window must be positive, got %s", s.UndoWindow)
	}
	if s.BreakPoll.Duration <= 0 {
		return fmt.Errorf("break_poll must be positive, got %s", s.BreakPoll)
	}
	return nil
}

// Save writes s to path as TOML, creating the directory if needed.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return fmt.Errorf("encode settings: %w", err)
	}
	return f.Close()
}

// ParseError is returned when a settings file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse settings file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
