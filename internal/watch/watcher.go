package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls a reload function when a watched file changes. A file
// matches when its base name starts with the watched base name, so a
// SQLite database also reacts to its -wal and -journal siblings.
type Watcher struct {
	paths    []string
	watcher  *fsnotify.Watcher
	reload   func() error
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func New(paths []string, reload func() error, logger *slog.Logger) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		abs = append(abs, a)
	}
	return &Watcher{
		paths:    abs,
		watcher:  fw,
		reload:   reload,
		logger:   logger,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period; call before Start.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Start watches the parent directories, since editors and SQLite replace
// files rather than writing them in place.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	dirs := map[string]bool{}
	for _, p := range w.paths {
		d := filepath.Dir(p)
		if dirs[d] {
			continue
		}
		if err := w.watcher.Add(d); err != nil {
			return err
		}
		dirs[d] = true
	}
	w.running = true
	w.logger.Info("file watcher started", "paths", w.paths)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(ev.Name) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("watched file changed", "event", ev.Op.String(), "file", ev.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.trigger)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "err", err)

		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) matches(name string) bool {
	a, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, p := range w.paths {
		if filepath.Dir(a) == filepath.Dir(p) && strings.HasPrefix(filepath.Base(a), filepath.Base(p)) {
			return true
		}
	}
	return false
}

func (w *Watcher) trigger() {
	start := time.Now()
	if err := w.reload(); err != nil {
		w.logger.Error("reload after file change failed", "err", err, "duration", time.Since(start))
		return
	}
	w.logger.Info("reloaded after file change", "duration", time.Since(start))
}
