package rules

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 300 * time.Millisecond

// Watch reloads the rule set whenever the rule file changes on disk. It
// blocks until the context is cancelled. Watch failures degrade to manual
// reload only; they are never fatal.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Rule file watch unavailable (%v), hot reload disabled", err)
		return err
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors and atomic writes
	// replace the inode, which silently drops a file-level watch.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Cannot watch %s (%v), hot reload disabled", dir, err)
		return err
	}

	log.Printf("🔍 Watching %s for rule changes", s.path)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, s.Reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  Rule watch error: %v", err)
		}
	}
}
