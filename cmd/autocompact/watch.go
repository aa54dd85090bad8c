package main

import (
	"context"
	"path/filepath"

	"github.com/deepnoodle-ai/autocompact/slogger"
	"github.com/fsnotify/fsnotify"
)

// watchConfig logs a warning whenever the config file changes. Settings are
// read once at startup, so a change only takes effect after a restart.
func watchConfig(ctx context.Context, path string, logger slogger.Logger) error {
	return watchFile(ctx, path, func(event fsnotify.Event) {
		logger.Warn("config file changed; restart autocompact to apply",
			"path", path, "op", event.Op.String())
	})
}

// watchFile calls onChange for writes, creates, renames and removals of path
// until ctx is cancelled. The parent directory is watched so editors that
// replace the file are still seen.
func watchFile(ctx context.Context, path string, onChange func(fsnotify.Event)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
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
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				onChange(event)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
