package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/luxweb/luxrag-go/internal/logging"
)

// WatchOp says what happened to a watched path.
type WatchOp int

const (
	// WatchUpsert means the file was created or modified and should be
	// (re-)ingested.
	WatchUpsert WatchOp = iota

	// WatchDelete means the path was removed or renamed away and its
	// documents should leave the index. The path may be a directory.
	WatchDelete
)

// WatchEvent is one debounced filesystem change.
type WatchEvent struct {
	Path string
	Op   WatchOp
}

// Watcher follows a corpus directory tree and reports batched document
// changes. Rapid bursts (editors writing temp files, rsync runs) collapse
// into a single batch per debounce window.
type Watcher struct {
	loader   *Loader
	debounce time.Duration
}

// NewWatcher wraps the loader's root in a recursive watcher. A zero debounce
// defaults to 500ms.
func NewWatcher(loader *Loader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{loader: loader, debounce: debounce}
}

// Run watches until ctx is cancelled, invoking handle with each debounced
// batch of events in deterministic (path-sorted) order. Chmod-only events are
// ignored.
func (w *Watcher) Run(ctx context.Context, handle func(context.Context, []WatchEvent)) error {
	log := logging.FromContext(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("corpus: start watcher: %w", err)
	}
	defer fw.Close()

	if err := addRecursive(fw, w.loader.Root()); err != nil {
		return err
	}
	log.Info("watching corpus for changes", "root", w.loader.Root(), "debounce", w.debounce.String())

	pending := make(map[string]WatchOp)
	var timer *time.Timer
	var fire <-chan time.Time

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
			return
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Chmod != 0 && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				pending[ev.Name] = WatchDelete
				resetTimer()

			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				info, err := os.Stat(ev.Name)
				if err != nil {
					// Gone again before we could look; treat as delete.
					pending[ev.Name] = WatchDelete
					resetTimer()
					continue
				}
				if info.IsDir() {
					// New directory: watch it and pick up anything already
					// inside (a moved-in tree only fires one event).
					if err := addRecursive(fw, ev.Name); err != nil {
						log.Warn("failed to watch new directory", "path", ev.Name, "error", err)
						continue
					}
					for _, path := range filesUnder(ev.Name) {
						pending[path] = WatchUpsert
					}
					resetTimer()
					continue
				}
				if supportedExtension(filepath.Ext(ev.Name)) && !strings.HasPrefix(filepath.Base(ev.Name), ".") {
					pending[ev.Name] = WatchUpsert
					resetTimer()
				}
			}

		case <-fire:
			if len(pending) == 0 {
				continue
			}
			batch := make([]WatchEvent, 0, len(pending))
			for path, op := range pending {
				batch = append(batch, WatchEvent{Path: path, Op: op})
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			pending = make(map[string]WatchOp)
			handle(ctx, batch)

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("corpus watcher error", "error", werr)
		}
	}
}

// addRecursive watches root and every directory below it.
func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("corpus: watch %s: %w", path, err)
		}
		return nil
	})
}

// filesUnder lists supported files below dir, best effort.
func filesUnder(dir string) []string {
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if supportedExtension(filepath.Ext(path)) && !strings.HasPrefix(d.Name(), ".") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}
