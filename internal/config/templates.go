package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/linewheel/internal/kv"
)

// TemplatesKey is the storage key of the saved templates.
const TemplatesKey = "wheel_templates"

// ErrTemplateNotFound is returned for an unknown template id or name.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a named configuration snapshot.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Config    AppConfig `json:"config"`
	CreatedAt time.Time `json:"createdAt"`
}

// Templates returns the saved templates, oldest first. A malformed list is
// treated as empty.
func (s *Store) Templates() ([]Template, error) {
	data, err := s.kv.Get(TemplatesKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	var out []Template
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("discarding malformed template list", "err", err)
		return nil, nil
	}
	return out, nil
}

func (s *Store) writeTemplates(list []Template) error {
	if list == nil {
		list = []Template{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode templates: %w", err)
	}
	if err := s.kv.Put(TemplatesKey, data); err != nil {
		return fmt.Errorf("failed to write templates: %w", err)
	}
	return nil
}

// SaveTemplate stores cfg under name.
func (s *Store) SaveTemplate(name string, cfg AppConfig, now time.Time) (Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Template{}, errors.New("template name must not be empty")
	}
	list, err := s.Templates()
	if err != nil {
		return Template{}, err
	}
	t := Template{ID: uuid.New().String(), Name: name, Config: cfg.Clone(), CreatedAt: now}
	if err := s.writeTemplates(append(list, t)); err != nil {
		return Template{}, err
	}
	return t, nil
}

// FindTemplate looks a template up by id, then by name.
func (s *Store) FindTemplate(ref string) (Template, error) {
	list, err := s.Templates()
	if err != nil {
		return Template{}, err
	}
	for _, t := range list {
		if t.ID == ref {
			return t, nil
		}
	}
	for _, t := range list {
		if t.Name == ref {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, ref)
}

// ApplyTemplate replaces the configuration with the template's snapshot.
func (s *Store) ApplyTemplate(ref string) (AppConfig, error) {
	t, err := s.FindTemplate(ref)
	if err != nil {
		return AppConfig{}, err
	}
	if err := s.Save(t.Config); err != nil {
		return AppConfig{}, err
	}
	return t.Config, nil
}

// DeleteTemplate removes the template with id or name ref.
func (s *Store) DeleteTemplate(ref string) error {
	t, err := s.FindTemplate(ref)
	if err != nil {
		return err
	}
	list, err := s.Templates()
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, x := range list {
		if x.ID != t.ID {
			kept = append(kept, x)
		}
	}
	return s.writeTemplates(kept)
}
