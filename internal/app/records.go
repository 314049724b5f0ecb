package app

import (
	"github.com/fakeyudi/linewheel/internal/config"
	"github.com/fakeyudi/linewheel/internal/session"
)

// SearchLogs returns the records of the configured lines matching query,
// newest first.
func (c *Coordinator) SearchLogs(query string, limit int) ([]session.LogEntry, error) {
	return c.logs.Search(c.Lines(), query, limit)
}

// AllLogs returns every record of the configured lines.
func (c *Coordinator) AllLogs() ([]session.LogEntry, error) {
	return c.logs.ListAll(c.Lines())
}

// DeleteLog removes one record. If it is the record the undo buffer holds,
// the undo is dropped with it.
func (c *Coordinator) DeleteLog(line session.LineID, id string) error {
	return c.mutate(func() error {
		if u := c.engine.PendingUndo(); u != nil && u.Log.ID == id {
			c.engine.ClearUndo()
		}
		return c.logs.Remove(line, id)
	})
}

// EditLogMemo replaces the memo of a stored record.
func (c *Coordinator) EditLogMemo(line session.LineID, id, memo string) error {
	return c.mutate(func() error {
		return c.logs.UpdateMemo(line, id, memo)
	})
}

// ClearLogs deletes every record and the pending undo.
func (c *Coordinator) ClearLogs() error {
	return c.mutate(func() error {
		c.engine.ClearUndo()
		return c.logs.Clear(session.AllLines[:])
	})
}

// ImportLogs merges records whose ids are not stored yet.
func (c *Coordinator) ImportLogs(entries []session.LogEntry) (int, error) {
	var added int
	err := c.mutate(func() error {
		var err error
		added, err = c.logs.Merge(c.cfg.LineIDs(), entries)
		return err
	})
	return added, err
}

// SaveConfig validates and stores cfg and applies it.
func (c *Coordinator) SaveConfig(cfg config.AppConfig) error {
	return c.mutate(func() error {
		if err := c.configs.Save(cfg); err != nil {
			return err
		}
		c.applyConfigLocked(cfg)
		return nil
	})
}

// ImportConfig merges an exported configuration. Invalid payloads leave
// the configuration unchanged and return config.ErrInvalidImport.
func (c *Coordinator) ImportConfig(data []byte) (config.AppConfig, error) {
	var out config.AppConfig
	err := c.mutate(func() error {
		cfg, err := c.configs.Import(data)
		if err != nil {
			return err
		}
		c.applyConfigLocked(cfg)
		out = cfg.Clone()
		return nil
	})
	return out, err
}

// ResetConfig restores the variant defaults.
func (c *Coordinator) ResetConfig() (config.AppConfig, error) {
	var out config.AppConfig
	err := c.mutate(func() error {
		cfg, err := c.configs.Reset()
		if err != nil {
			return err
		}
		c.applyConfigLocked(cfg)
		out = cfg.Clone()
		return nil
	})
	return out, err
}

// ApplyTemplate replaces the configuration with a saved template.
func (c *Coordinator) ApplyTemplate(ref string) (config.AppConfig, error) {
	var out config.AppConfig
	err := c.mutate(func() error {
		cfg, err := c.configs.ApplyTemplate(ref)
		if err != nil {
			return err
		}
		c.applyConfigLocked(cfg)
		out = cfg.Clone()
		return nil
	})
	return out, err
}

// BulkCategories gives every configured line except skip the same
// categories.
func (c *Coordinator) BulkCategories(cats []config.Category, skip ...session.LineID) error {
	return c.SaveConfig(config.BulkCategories(c.Config(), cats, skip...))
}

// applyConfigLocked switches to cfg. Sessions on lines cfg drops keep
// running in the snapshot but are no longer shown or watched.
func (c *Coordinator) applyConfigLocked(cfg config.AppConfig) {
	c.cfg = cfg
	c.breaks.SetAlerts(cfg.BreakAlerts)
	if _, ok := cfg.Lines[c.current]; !ok {
		if ids := cfg.LineIDs(); len(ids) > 0 {
			c.current = ids[0]
		}
	}
}
