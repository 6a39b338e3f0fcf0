// Package watch re-runs sync passes when asset files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rjeczalik/notify"
	"github.com/runway-sync/runway/internal/utils"
)

const eventBufferSize = 256

// FilterCallback returns true for paths whose events should be dropped.
type FilterCallback func(path string) bool

// MatchFilter drops events for files match rejects. Directories and paths
// that no longer exist are always kept: a directory moved in or out of a
// root arrives as a single event for the directory itself.
func MatchFilter(match func(path string) bool) FilterCallback {
	return func(path string) bool {
		if match(path) {
			return false
		}
		info, err := os.Stat(path)
		if err != nil {
			return !os.IsNotExist(err)
		}
		return !info.IsDir()
	}
}

// Watcher forwards filesystem events under a set of directories, recursively.
type Watcher struct {
	roots     []string
	filter    FilterCallback
	rawEvents chan notify.EventInfo
	events    chan string
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewWatcher(roots []string, filter FilterCallback) *Watcher {
	return &Watcher{
		roots:  roots,
		filter: filter,
		done:   make(chan struct{}),
	}
}

// Start subscribes to events. A root that does not exist yet is replaced by
// its closest existing parent so files created later are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.events = make(chan string, eventBufferSize)

	for _, root := range existingRoots(w.roots) {
		slog.Info("watching", "dir", root)
		if err := notify.Watch(filepath.Join(root, "..."), w.rawEvents, notify.All); err != nil {
			notify.Stop(w.rawEvents)
			return fmt.Errorf("watch '%s': %w", root, err)
		}
	}

	w.wg.Add(1)
	go w.forward(ctx)
	return nil
}

// Stop unsubscribes and waits for the forwarding goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.rawEvents != nil {
			notify.Stop(w.rawEvents)
		}
		w.wg.Wait()
		slog.Debug("watcher stopped")
	})
}

// Events delivers changed paths. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan string {
	return w.events
}

func (w *Watcher) forward(ctx context.Context) {
	defer func() {
		close(w.events)
		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			path := event.Path()
			if w.filter != nil && w.filter(path) {
				continue
			}
			select {
			case w.events <- path:
				slog.Debug("file changed", "event", event.Event(), "path", path)
			default:
				// the orchestrator only needs to know that something changed
				slog.Debug("watch event dropped", "reason", "channel full", "path", path)
			}
		}
	}
}

func existingRoots(roots []string) []string {
	var out []string
	for _, root := range roots {
		dir := root
		for !utils.DirExists(dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
		if !slices.Contains(out, dir) {
			out = append(out, dir)
		}
	}
	return out
}
