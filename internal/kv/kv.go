// Package kv provides the string-keyed persistence backends. Every backend
// has last-writer-wins semantics: callers read a whole value, change it in
// memory and write the whole value back.
package kv

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned by Get when the key has never been written or
// has been deleted.
var ErrNotFound = errors.New("key not found")

// Store is a flat key-value store.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

func validKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// Open returns the backend named by backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewDir(dir)
	case BackendSQLite:
		return NewSQLite(SQLitePath(dir))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (supported: file, sqlite, memory)", backend)
	}
}
