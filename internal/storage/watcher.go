package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/digitalmira/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to a durable database file made by any process,
// the way a browser fires "storage" events in other tabs. Bursts of events
// are coalesced into one onChange call per debounce window.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	names    map[string]struct{}
	debounce time.Duration
	onChange func()
	logger   logging.Logger

	pending  bool
	deadline time.Time

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher prepares a watcher for the database file at dbPath. The main
// file and its -wal and -journal companions are tracked; -shm is not, since
// readers touch it too.
func NewWatcher(dbPath string, debounce time.Duration, onChange func(), logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dbPath, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	if logger == nil {
		logger = logging.Nop()
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	base := filepath.Base(abs)
	return &Watcher{
		watcher: fw,
		dir:     filepath.Dir(abs),
		names: map[string]struct{}{
			base:              {},
			base + "-wal":     {},
			base + "-journal": {},
		},
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With("component", "watcher", "path", abs),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start subscribes to the database directory and returns immediately.
// Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.logger.Debug(ctx, "watching durable storage")
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the OS watch. It blocks until the
// loop has exited.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error(context.Background(), "close fs watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "fs watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if _, ok := w.names[filepath.Base(ev.Name)]; !ok {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug(ctx, "storage event", "op", ev.Op.String(), "file", ev.Name)
	w.pending = true
	w.deadline = time.Now().Add(w.debounce)
}

func (w *Watcher) flush(now time.Time) {
	if !w.pending || now.Before(w.deadline) {
		return
	}
	w.pending = false
	if w.onChange != nil {
		w.onChange()
	}
}
