package media

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// File is one discovered media file.
type File struct {
	Path    string // Absolute, slash separated on every platform
	Folder  string // Root folder the file was found under
	Size    int64
	ModTime time.Time
}

// Scan walks every folder concurrently and returns the accepted files sorted
// by path. A missing folder fails the whole scan.
func Scan(ctx context.Context, folders []string) ([]File, error) {
	var (
		mu    sync.Mutex
		files []File
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, folder := range folders {
		g.Go(func() error {
			found, err := scanFolder(gctx, folder)
			if err != nil {
				return err
			}
			mu.Lock()
			files = append(files, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Root returns folder as it appears in File.Folder.
func Root(folder string) (string, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", folder, err)
	}
	return filepath.ToSlash(abs), nil
}

func scanFolder(ctx context.Context, folder string) ([]File, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", folder, err)
	}

	var files []File
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !Filter(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		f, err := describe(root, p, d)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	return files, nil
}

func describe(root, p string, d fs.DirEntry) (File, error) {
	info, err := d.Info()
	if err != nil {
		return File{}, err
	}
	return File{
		Path:    filepath.ToSlash(p),
		Folder:  filepath.ToSlash(root),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
