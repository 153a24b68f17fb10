package rules

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// ReloadFunc observes the outcome of a watcher-triggered reload.
type ReloadFunc func(warnings []string, err error)

// Watcher reloads a Store whenever its backing file changes.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadFunc
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadFunc registers a callback run after every reload attempt.
func WithReloadFunc(fn ReloadFunc) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher watches the directory of the store's file. Editors often
// replace files by rename, so the directory is watched rather than the file.
func NewWatcher(store *Store, opts ...WatchOption) (*Watcher, error) {
	if store.Path() == "" {
		return nil, ErrNoPath
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		store:    store,
		watcher:  fw,
		debounce: defaultDebounce,
		onReload: func([]string, error) {},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start runs the watch loop until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop ends the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	target := filepath.Clean(w.store.Path())
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			warnings, err := w.store.Reload()
			w.onReload(warnings, err)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onReload(nil, err)
		}
	}
}
