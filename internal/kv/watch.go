package kv

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// Watch reports keys changed in a Dir store by other processes (another
// terminal, the server, a one-shot CLI call) until ctx is cancelled.
// onChange runs on the watcher goroutine.
func Watch(ctx context.Context, dir string, onChange func(key string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if key, ok := KeyForFile(event.Name); ok {
				onChange(key)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
