// Package watch re-analyzes source files when they change on disk.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/config"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler is called with the absolute path of a changed file and its kind.
type Handler func(ctx context.Context, path string, kind analyzer.Kind)

// Watcher monitors a directory tree and calls its handler for files with a
// known kind whose content changed.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	root      string
	handler   Handler
	log       zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	hashes  map[string]uint64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period (default DefaultDebounce).
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithHandler sets the function called for each changed file.
func WithHandler(h Handler) Option {
	return func(w *Watcher) {
		w.handler = h
	}
}

// WithLogger sets the logger (default: disabled).
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = l.With().Str("component", "watch").Logger()
	}
}

// New creates a watcher rooted at root.
func New(root string, cfg *config.Config, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  DefaultDebounce,
		root:      abs,
		log:       zerolog.Nop(),
		pending:   make(map[string]time.Time),
		hashes:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Start registers every non-excluded directory and processes events until
// ctx is done or the watcher is stopped. It returns ctx.Err() on
// cancellation and nil after Stop.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.log.Info().Str("root", w.root).Int("dirs", len(w.fsWatcher.WatchList())).Msg("watching for changes")

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		w.processDebounced(ctx, done)
	}()
	defer wg.Wait()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watch error")
		}
	}
}

// addTree watches dir and every directory below it that is not excluded.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) excludedDir(name string) bool {
	for _, excluded := range w.config.Exclude.Dirs {
		if name == excluded {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

// handleEvent records a write or create of an interesting file. New
// directories are watched as they appear.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(info.Name()) {
				if err := w.addTree(path); err != nil {
					w.log.Warn().Err(err).Str("dir", w.rel(path)).Msg("failed to watch directory")
				}
			}
			return
		}
	}

	rel := w.rel(path)
	if w.config.ShouldExclude(rel) || !w.config.ShouldInclude(rel) {
		return
	}
	if _, ok := analyzer.KindFromPath(path); !ok {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced handles pending changes until ctx is done or done closes.
func (w *Watcher) processDebounced(ctx context.Context, done <-chan struct{}) {
	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			for _, path := range w.ready(time.Now()) {
				w.dispatch(ctx, path)
			}
		}
	}
}

// ready removes and returns the paths that have been quiet for the
// debounce period.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	return out
}

// changed reports whether the content of path differs from the last time
// it was handled. Unreadable files count as unchanged.
func (w *Watcher) changed(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn().Err(err).Str("file", w.rel(path)).Msg("failed to read changed file")
		}
		return false
	}
	sum := xxhash.Sum64(data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	if !w.changed(path) {
		return
	}
	kind, _ := analyzer.KindFromPath(path)
	w.log.Debug().Str("file", w.rel(path)).Str("kind", string(kind)).Msg("file changed")
	if w.handler != nil {
		w.handler(ctx, path, kind)
	}
}

// Stop closes the underlying watcher, ending Start.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories currently registered.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
