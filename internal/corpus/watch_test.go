package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collectEvents(t *testing.T, root string) (chan []WatchEvent, context.CancelFunc) {
	t.Helper()

	loader := newTestLoader(t, root)
	w := NewWatcher(loader, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan []WatchEvent, 16)
	go func() {
		_ = w.Run(ctx, func(_ context.Context, batch []WatchEvent) {
			events <- batch
		})
	}()

	// Give the watcher a moment to register its directories.
	time.Sleep(100 * time.Millisecond)
	return events, cancel
}

func waitForEvent(t *testing.T, events chan []WatchEvent, path string, op WatchOp) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-events:
			for _, ev := range batch {
				if ev.Path == path && ev.Op == op {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for op %d on %s", op, path)
		}
	}
}

func Test_Watcher_ReportsCreateAndRemove(t *testing.T) {
	root := t.TempDir()
	events, cancel := collectEvents(t, root)
	defer cancel()

	path := filepath.Join(root, "note.md")
	if err := os.WriteFile(path, []byte("# Note\n\nBody."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForEvent(t, events, path, WatchUpsert)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitForEvent(t, events, path, WatchDelete)
}

func Test_Watcher_IgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	events, cancel := collectEvents(t, root)
	defer cancel()

	ignored := filepath.Join(root, "binary.bin")
	if err := os.WriteFile(ignored, []byte{0x00, 0x01}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	wanted := filepath.Join(root, "doc.md")
	if err := os.WriteFile(wanted, []byte("content"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitForEvent(t, events, wanted, WatchUpsert)
	// The unsupported file must not have produced an event in any batch seen
	// so far; drain what is buffered and check.
	for {
		select {
		case batch := <-events:
			for _, ev := range batch {
				if ev.Path == ignored {
					t.Fatalf("unexpected event for unsupported file: %+v", ev)
				}
			}
		default:
			return
		}
	}
}

func Test_Watcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	events, cancel := collectEvents(t, root)
	defer cancel()

	dir := filepath.Join(root, "thermal")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Wait for the directory watch to land before writing into it.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(dir, "cooling.md")
	if err := os.WriteFile(path, []byte("cold plates"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForEvent(t, events, path, WatchUpsert)
}
