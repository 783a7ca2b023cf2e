package media

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen by Watch.
type Op int

const (
	OpUpsert Op = iota + 1 // Created or written
	OpRemove               // Removed or renamed away
)

func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Change is a filtered file system change.
type Change struct {
	Op   Op
	File File // Only Path and Folder are set for OpRemove
}

// Watch reports accepted changes under folders until ctx is cancelled.
// New subdirectories are watched as they appear.
func Watch(ctx context.Context, folders []string, logger *slog.Logger, fn func(Change)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	roots := make([]string, 0, len(folders))
	for _, folder := range folders {
		root, err := filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", folder, err)
		}
		if err := addTree(watcher, root); err != nil {
			return err
		}
		roots = append(roots, root)
	}

	logger.Info("watching media folders", "folders", roots)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !Filter(event.Name) {
				continue
			}
			root := rootOf(roots, event.Name)

			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				fn(Change{Op: OpRemove, File: File{
					Path:   filepath.ToSlash(event.Name),
					Folder: filepath.ToSlash(root),
				}})

			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				info, err := os.Stat(event.Name)
				if err != nil {
					// gone again before we looked
					continue
				}
				if info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						logger.Warn("watch new directory failed", "path", event.Name, "error", err)
					}
					continue
				}
				if !info.Mode().IsRegular() {
					continue
				}
				fn(Change{Op: OpUpsert, File: File{
					Path:    filepath.ToSlash(event.Name),
					Folder:  filepath.ToSlash(root),
					Size:    info.Size(),
					ModTime: info.ModTime(),
				}})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// addTree watches dir and every accepted directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if !Filter(p) {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func rootOf(roots []string, p string) string {
	best := ""
	for _, root := range roots {
		if (p == root || strings.HasPrefix(p, root+string(filepath.Separator))) && len(root) > len(best) {
			best = root
		}
	}
	return best
}
