package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/tramite/internal/testutil"
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

func TestWatch_DebouncesDocumentEvents(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = Watch(ctx, dir, 100*time.Millisecond, quiet, func(context.Context) { runs.Add(1) })
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, dir, "a.xml", "<results/>")
	testutil.WriteFile(t, dir, "b.xml", "<results/>")
	testutil.WriteFile(t, dir, "ignored.txt", "x")

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return runs.Load() >= 1 }, "watcher never reran")
	time.Sleep(300 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Errorf("runs = %d, want 1 after a burst", n)
	}

	testutil.WriteFile(t, dir, "sub/c.xml", "<results/>")
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return runs.Load() >= 2 }, "new subdirectory not watched")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIsDocument(t *testing.T) {
	tests := map[string]bool{
		"/x/a.xml":              true,
		"/x/A.XML":              true,
		"/x/.tramite-tmp-1.xml": false,
		"/x/a.json":             false,
	}
	for path, want := range tests {
		if got := isDocument(path); got != want {
			t.Errorf("isDocument(%q) = %v, want %v", path, got, want)
		}
	}
}
