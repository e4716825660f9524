package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// waitForDevice blocks until path exists or ctx is done.
func waitForDevice(ctx context.Context, path string, log *logrus.Logger) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// the node may have appeared before the watch was armed
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	log.Infof("waiting for %s", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watch %s: event channel closed", dir)
			}
			if event.Name != path || !event.Has(fsnotify.Create) {
				continue
			}
			log.Infof("device appeared: %s", path)
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watch %s: error channel closed", dir)
			}
			log.WithError(err).Warn("device watch error")
		}
	}
}
