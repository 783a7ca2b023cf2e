package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// startWatch runs Watch in the background and returns its change stream.
func startWatch(t *testing.T, dir string) <-chan Change {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan Change, 32)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{dir}, nil, func(c Change) { changes <- c })
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	})

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	return changes
}

// waitChange returns the first change for path with op.
func waitChange(t *testing.T, changes <-chan Change, path string, op Op) Change {
	t.Helper()
	want := filepath.ToSlash(path)
	timeout := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.File.Path == want && c.Op == op {
				return c
			}
		case <-timeout:
			t.Fatalf("no %s change for %s", op, want)
			return Change{}
		}
	}
}

func TestWatch_CreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	changes := startWatch(t, dir)

	path := filepath.Join(dir, "clip.mp4")
	writeFile(t, path, "data")

	c := waitChange(t, changes, path, OpUpsert)
	if c.File.Folder != filepath.ToSlash(dir) {
		t.Errorf("Folder = %q, want %q", c.File.Folder, filepath.ToSlash(dir))
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitChange(t, changes, path, OpRemove)
}

func TestWatch_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	changes := startWatch(t, dir)

	sub := filepath.Join(dir, "season1")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "ep1.mkv")
	writeFile(t, path, "x")
	waitChange(t, changes, path, OpUpsert)
}

func TestWatch_IgnoresFiltered(t *testing.T) {
	dir := t.TempDir()
	changes := startWatch(t, dir)

	writeFile(t, filepath.Join(dir, ".DS_Store"), "x")
	path := filepath.Join(dir, "after.mp4")
	writeFile(t, path, "y")

	timeout := time.After(3 * time.Second)
	for {
		select {
		case c := <-changes:
			if filepath.Base(c.File.Path) == ".DS_Store" {
				t.Fatalf("filtered file reported: %+v", c)
			}
			if c.File.Path == filepath.ToSlash(path) {
				return
			}
		case <-timeout:
			t.Fatal("no change for after.mp4")
		}
	}
}

func TestOp_String(t *testing.T) {
	if OpUpsert.String() != "upsert" || OpRemove.String() != "remove" {
		t.Errorf("unexpected names %q %q", OpUpsert, OpRemove)
	}
	if Op(9).String() != "Op(9)" {
		t.Errorf("Op(9).String() = %q", Op(9).String())
	}
}
