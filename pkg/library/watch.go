package library

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever the documents file of library id settles
// after being written, until ctx is done. It blocks; run it in a goroutine.
//
// The library directory is watched rather than the file so that atomic
// replacements (write to a temp file, then rename) are seen.
func (m *Manager) Watch(ctx context.Context, id string, onChange func()) error {
	path, err := m.DocumentsPath(id)
	if err != nil {
		return err
	}
	if _, err := m.Get(id); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching library %s: %w", id, err)
	}
	slog.Debug("Watching library documents", "library", id, "path", path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != documentsFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.debounce)
			} else {
				timer.Reset(m.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			slog.Debug("Library documents changed", "library", id)
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Library watcher error", "library", id, "error", err)
		}
	}
}
