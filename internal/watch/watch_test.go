package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	bursts [][]string
}

func (r *recorder) onChange(_ context.Context, paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bursts = append(r.bursts, paths)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bursts)
}

func startWatch(t *testing.T, dir string, rec *recorder) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, dir, 50*time.Millisecond, logger, rec.onChange)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatch_BurstIsDebounced(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatch(t, dir, rec)

	for _, name := range []string{"layout.html", "index.html", "post.html"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool { return rec.count() >= 1 }, "no change burst fired")
	time.Sleep(150 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("bursts = %d, want 1", n)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.bursts[0]) != 3 {
		t.Errorf("paths = %v, want 3 entries", rec.bursts[0])
	}
}

func TestWatch_NewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatch(t, dir, rec)

	sub := filepath.Join(dir, "partials")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "nav.html"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		for _, b := range rec.bursts {
			for _, p := range b {
				if p == "partials/nav.html" {
					return true
				}
			}
		}
		return false
	}, "file in new subdirectory not reported")
}

func TestWatch_IgnoresDotfiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatch(t, dir, rec)

	if err := os.WriteFile(filepath.Join(dir, ".layout.html.swp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := rec.count(); n != 0 {
		t.Errorf("bursts = %d, want 0", n)
	}
}

func TestIgnored(t *testing.T) {
	for path, want := range map[string]bool{
		"layout.html":        false,
		".hidden":            true,
		"post.html~":         true,
		"tmp/index.html.swp": true,
		"styles.css":         false,
	} {
		if got := ignored(path); got != want {
			t.Errorf("ignored(%q) = %v, want %v", path, got, want)
		}
	}
}
