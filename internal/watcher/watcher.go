package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/kazz187/agenthub/internal/eventbus"
	"github.com/kazz187/agenthub/pkg/panicerr"
)

// Watcher observes the local data directory and publishes a
// CollectionChanged event whenever a record file is written or removed.
// Agent processes share the directory, so changes made by another
// process surface on the bus the same way the hub's own writes do.
type Watcher struct {
	basePath string
	bus      *eventbus.Bus
	fw       *fsnotify.Watcher
}

func New(basePath string, bus *eventbus.Bus) *Watcher {
	return &Watcher{
		basePath: basePath,
		bus:      bus,
	}
}

// Start begins watching. It returns after the watcher goroutine is
// running; the goroutine exits when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fw = fw
	if err := fw.Add(w.basePath); err != nil {
		_ = fw.Close()
		return err
	}

	// Collection directories that predate this process never produce a
	// Create event, so pick them up here.
	entries, err := os.ReadDir(w.basePath)
	if err != nil {
		_ = fw.Close()
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(w.basePath, entry.Name())
		if err := fw.Add(path); err != nil {
			slog.Warn("failed to watch collection directory", "path", path, "error", err)
		}
	}

	go func() {
		defer fw.Close()
		_ = panicerr.SafeContext(w.run)(ctx)
	}()
	return nil
}

func (w *Watcher) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("data directory watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if strings.HasSuffix(event.Name, ".tmp") {
		return
	}
	rel, err := filepath.Rel(w.basePath, event.Name)
	if err != nil {
		return
	}

	// Collection directories appear lazily on first write; watch them
	// as they show up so record-level events are seen.
	if event.Op.Has(fsnotify.Create) {
		if rel == filepath.Base(rel) {
			if err := w.fw.Add(event.Name); err != nil {
				slog.Warn("failed to watch collection directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Remove) {
		return
	}
	collection, _, found := strings.Cut(filepath.ToSlash(rel), "/")
	if !found {
		return
	}
	w.bus.PublishNew(eventbus.CollectionChanged, rel, map[string]string{
		"collection": collection,
		"op":         event.Op.String(),
	})
}
