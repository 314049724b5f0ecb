package kv

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileExt = ".json"

// Dir stores each key as <dir>/<key>.json.
type Dir struct {
	path string

	mu      sync.Mutex
	written map[string]stamp
}

// stamp is what this Dir last did to a key.
type stamp struct {
	sum     [sha256.Size]byte
	deleted bool
}

// NewDir returns a Dir store, creating dir if needed.
func NewDir(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Dir{path: dir, written: make(map[string]stamp)}, nil
}

// Path returns the directory backing the store.
func (d *Dir) Path() string { return d.path }

func (d *Dir) file(key string) string {
	return filepath.Join(d.path, key+fileExt)
}

// KeyForFile maps a file name inside the directory back to its key.
// ok is false for temp files and anything that is not a stored value.
func KeyForFile(name string) (key string, ok bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) || strings.HasSuffix(base, ".tmp") {
		return "", false
	}
	key = strings.TrimSuffix(base, fileExt)
	return key, validKey(key) == nil
}

func (d *Dir) Get(key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.file(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Put writes value atomically via a temp file + os.Rename.
func (d *Dir) Put(key string, value []byte) (err error) {
	if err := validKey(key); err != nil {
		return err
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(d.path, key+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	if err = os.Rename(tmpName, d.file(key)); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	d.remember(key, stamp{sum: sha256.Sum256(value)})
	return nil
}

func (d *Dir) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(d.file(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	d.remember(key, stamp{deleted: true})
	return nil
}

func (d *Dir) remember(key string, s stamp) {
	d.mu.Lock()
	d.written[key] = s
	d.mu.Unlock()
}

// ChangedElsewhere reports whether key no longer holds what this Dir last
// wrote to it, meaning another process has changed it since. Keys this
// Dir never wrote count as changed.
func (d *Dir) ChangedElsewhere(key string) bool {
	d.mu.Lock()
	last, ok := d.written[key]
	d.mu.Unlock()
	if !ok {
		return true
	}
	data, err := os.ReadFile(d.file(key))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return !last.deleted
	case err != nil:
		return true
	}
	return last.deleted || sha256.Sum256(data) != last.sum
}

func (d *Dir) Close() error { return nil }
