package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yml")
	other := filepath.Join(dir, "other.yml")
	if err := os.WriteFile(cfg, []byte("debug: false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{cfg}, rec.record, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(cfg, []byte("debug: true\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) > 0 })
	time.Sleep(250 * time.Millisecond)
	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("callbacks = %v, want exactly one", got)
	}
	want, _ := filepath.Abs(cfg)
	if got[0] != filepath.Clean(want) {
		t.Errorf("path = %s, want %s", got[0], want)
	}
}

func TestWatcher_SeesRenameReplace(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(cfg, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{cfg}, rec.record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	tmp := filepath.Join(dir, ".config.yml.swp")
	if err := os.WriteFile(tmp, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, cfg); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) > 0 })
	if len(rec.snapshot()) == 0 {
		t.Error("expected a change callback after rename")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher([]string{filepath.Join(dir, "config.yml")}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	w.Stop()
	w.Stop()
	if len(w.Files()) != 1 {
		t.Errorf("Files() = %v", w.Files())
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "nope", "config.yml")}, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Error("expected error for missing directory")
	}
}
