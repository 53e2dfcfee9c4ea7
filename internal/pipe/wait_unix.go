//go:build !windows

package pipe

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForEndpoint blocks until a socket exists at path or ctx ends.
func WaitForEndpoint(ctx context.Context, path string) error {
	if endpointExists(path) {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pipe: watch: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("pipe: watch %s: %w", dir, err)
	}
	// The socket may have appeared between the first check and Add.
	if endpointExists(path) {
		return nil
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pipe: wait for %s: %w", path, ctx.Err())
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("pipe: wait for %s: watcher closed", path)
			}
			if filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Create) && endpointExists(path) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("pipe: wait for %s: watcher closed", path)
			}
			return fmt.Errorf("pipe: watch %s: %w", dir, err)
		}
	}
}
