package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/goleak"

	"github.com/panbanda/prism/pkg/analyzer"
	"github.com/panbanda/prism/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, DefaultDebounce},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, DefaultDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tmpDir, cfg, WithDebounce(tt.debounce))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer w.Stop()

			if w.fsWatcher == nil {
				t.Error("fsWatcher should not be nil")
			}
			if w.config != cfg {
				t.Error("config should match")
			}
			if w.Root() != tmpDir {
				t.Errorf("Root() = %v, want %v", w.Root(), tmpDir)
			}
			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()
	if w.config == nil {
		t.Error("nil config should fall back to defaults")
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()

	w, err := New(tmpDir, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	tests := []struct {
		name        string
		event       fsnotify.Event
		wantPending bool
	}{
		{"write event for python file", fsnotify.Event{Name: filepath.Join(tmpDir, "app.py"), Op: fsnotify.Write}, true},
		{"create event for css file", fsnotify.Event{Name: filepath.Join(tmpDir, "site.css"), Op: fsnotify.Create}, true},
		{"remove event ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "gone.py"), Op: fsnotify.Remove}, false},
		{"chmod event ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "mode.py"), Op: fsnotify.Chmod}, false},
		{"unknown kind ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "notes.txt"), Op: fsnotify.Write}, false},
		{"excluded dir ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "node_modules", "lib.js"), Op: fsnotify.Write}, false},
		{"excluded pattern ignored", fsnotify.Event{Name: filepath.Join(tmpDir, "app.min.js"), Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.mu.Lock()
			w.pending = make(map[string]time.Time)
			w.mu.Unlock()

			w.handleEvent(tt.event)

			w.mu.Lock()
			_, pending := w.pending[tt.event.Name]
			w.mu.Unlock()
			if pending != tt.wantPending {
				t.Errorf("pending = %v, want %v", pending, tt.wantPending)
			}
		})
	}
}

func TestWatcher_handleEventInclude(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Include.Globs = []string{"src/**"}

	w, err := New(tmpDir, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	w.handleEvent(fsnotify.Event{Name: filepath.Join(tmpDir, "src", "a.py"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(tmpDir, "scripts", "b.py"), Op: fsnotify.Write})

	if _, ok := w.pending[filepath.Join(tmpDir, "src", "a.py")]; !ok {
		t.Error("src/a.py should be pending")
	}
	if _, ok := w.pending[filepath.Join(tmpDir, "scripts", "b.py")]; ok {
		t.Error("scripts/b.py should not be pending")
	}
}

func TestWatcher_ready(t *testing.T) {
	w, err := New(t.TempDir(), nil, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	now := time.Now()
	w.pending["old.py"] = now.Add(-200 * time.Millisecond)
	w.pending["new.py"] = now.Add(-10 * time.Millisecond)

	ready := w.ready(now)
	if len(ready) != 1 || ready[0] != "old.py" {
		t.Errorf("ready() = %v, want [old.py]", ready)
	}
	if _, ok := w.pending["old.py"]; ok {
		t.Error("old.py should be removed from pending")
	}
	if _, ok := w.pending["new.py"]; !ok {
		t.Error("new.py should stay pending")
	}
}

func TestWatcher_changed(t *testing.T) {
	tmpDir := t.TempDir()
	w, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	path := filepath.Join(tmpDir, "app.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !w.changed(path) {
		t.Error("first sighting should count as changed")
	}
	if w.changed(path) {
		t.Error("same content should not count as changed")
	}
	if err := os.WriteFile(path, []byte("x = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !w.changed(path) {
		t.Error("new content should count as changed")
	}
	if w.changed(filepath.Join(tmpDir, "missing.py")) {
		t.Error("missing file should not count as changed")
	}
}

func TestWatcher_StartHandlesChanges(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(tmpDir, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}

	type call struct {
		path string
		kind analyzer.Kind
	}
	var mu sync.Mutex
	var calls []call
	got := make(chan struct{}, 8)

	w, err := New(tmpDir, nil,
		WithDebounce(50*time.Millisecond),
		WithHandler(func(_ context.Context, path string, kind analyzer.Kind) {
			mu.Lock()
			calls = append(calls, call{path, kind})
			mu.Unlock()
			got <- struct{}{}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Start(ctx) }()

	// Wait until the tree is registered.
	deadline := time.Now().Add(2 * time.Second)
	for len(w.WatchedDirs()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	for _, d := range w.WatchedDirs() {
		if filepath.Base(d) == "node_modules" {
			t.Error("excluded directory should not be watched")
		}
	}

	target := filepath.Join(sub, "mod.py")
	if err := os.WriteFile(target, []byte("import os\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not called")
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() = %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls[0].path != target || calls[0].kind != analyzer.KindPython {
		t.Errorf("first call = %+v, want %s (py)", calls[0], target)
	}
}

func TestWatcher_StopEndsStart(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- w.Start(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(w.WatchedDirs()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start() after Stop = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("Start() should fail for a missing root")
	}
}
