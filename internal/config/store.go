package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fakeyudi/linewheel/internal/kv"
)

// Key is the storage key of the configuration.
const Key = "wheel_config_v2"

// Store loads and saves the configuration of one variant.
type Store struct {
	kv      kv.Store
	variant Variant
	logger  *slog.Logger
}

// NewStore returns a Store over backend. A nil logger discards diagnostics.
func NewStore(backend kv.Store, variant Variant, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{kv: backend, variant: variant, logger: logger}
}

// Load returns the saved configuration merged over the variant defaults.
// A missing or unreadable value yields the defaults.
func (s *Store) Load() AppConfig {
	defaults := Defaults(s.variant)
	data, err := s.kv.Get(Key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("failed to read config, using defaults", "err", err)
		}
		return defaults
	}
	cfg, err := Decode(defaults, data)
	if err != nil {
		s.logger.Warn("discarding malformed config", "err", err)
		return defaults
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("discarding invalid config", "err", err)
		return defaults
	}
	return cfg
}

// Save writes cfg.
func (s *Store) Save(cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := s.kv.Put(Key, data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Reset restores the variant defaults.
func (s *Store) Reset() (AppConfig, error) {
	if err := s.kv.Delete(Key); err != nil {
		return AppConfig{}, fmt.Errorf("failed to reset config: %w", err)
	}
	return Defaults(s.variant), nil
}

// Import merges data over the current configuration and saves the result.
func (s *Store) Import(data []byte) (AppConfig, error) {
	cfg, err := ImportJSON(s.Load(), data)
	if err != nil {
		return AppConfig{}, err
	}
	if err := s.Save(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
