package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/wslive/internal/config"
	"github.com/rickgao/wslive/internal/database"
	"github.com/rickgao/wslive/internal/logging"
	"github.com/rickgao/wslive/internal/media"
	"github.com/rickgao/wslive/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "wslive-indexer",
		Usage:   "Index media folders into PostgreSQL",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				EnvVars: []string{"WSLIVE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "PostgreSQL URL, overrides indexer.database",
				EnvVars: []string{"WSLIVE_DATABASE_URL"},
			},
			&cli.StringSliceFlag{
				Name:    "folder",
				Aliases: []string{"f"},
				Usage:   "media folder to index (repeatable), overrides indexer.folders",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "print the indexed files after the scan",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "keep running and apply file changes as they happen",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return err
	}

	dsn := c.String("database")
	if folders := c.StringSlice("folder"); len(folders) > 0 {
		cfg.Indexer.Folders = folders
	}
	if c.Bool("watch") {
		cfg.Indexer.Watch = true
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dsn == "" {
		if err := cfg.Indexer.Validate(); err != nil {
			return err
		}
	} else if len(cfg.Indexer.Folders) == 0 {
		return fmt.Errorf("at least one --folder is required")
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting wslive indexer", append(version.Attrs(), "folders", cfg.Indexer.Folders)...)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pool, err := database.Connect(ctx, dsn, cfg.Indexer.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := database.NewMediaStore(pool, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := index(ctx, store, cfg.Indexer.Folders, logger); err != nil {
		return err
	}
	if c.Bool("list") {
		files, err := store.List(ctx, "")
		if err != nil {
			return err
		}
		printIndex(os.Stdout, files)
	}
	if !cfg.Indexer.Watch {
		return nil
	}

	return media.Watch(ctx, cfg.Indexer.Folders, logger, func(ch media.Change) {
		apply(ctx, store, ch, logger)
	})
}

// index runs a full scan, upserts every file and prunes vanished rows.
func index(ctx context.Context, store *database.MediaStore, folders []string, logger *slog.Logger) error {
	files, err := media.Scan(ctx, folders)
	if err != nil {
		return err
	}

	rows := make([]database.MediaFile, len(files))
	byFolder := make(map[string][]string)
	for i, f := range files {
		rows[i] = toRow(f)
		byFolder[f.Folder] = append(byFolder[f.Folder], f.Path)
	}

	written, err := store.Upsert(ctx, rows)
	if err != nil {
		return err
	}

	pruned := 0
	for _, root := range roots(folders) {
		n, err := store.Prune(ctx, root, byFolder[root])
		if err != nil {
			return err
		}
		pruned += n
	}

	logger.Info("index complete", "files", len(files), "written", written, "pruned", pruned)
	return nil
}

func apply(ctx context.Context, store *database.MediaStore, ch media.Change, logger *slog.Logger) {
	switch ch.Op {
	case media.OpUpsert:
		if _, err := store.Upsert(ctx, []database.MediaFile{toRow(ch.File)}); err != nil {
			logger.Error("index file failed", "path", ch.File.Path, "error", err)
			return
		}
	case media.OpRemove:
		if _, err := store.Remove(ctx, ch.File.Path); err != nil {
			logger.Error("remove file failed", "path", ch.File.Path, "error", err)
			return
		}
	}
	logger.Debug("applied change", "op", ch.Op, "path", ch.File.Path)
}

// printIndex writes one tab separated line per indexed file.
func printIndex(w io.Writer, files []database.MediaFile) {
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.Path, f.Size, f.ModTime.UTC().Format(time.RFC3339))
	}
}

func toRow(f media.File) database.MediaFile {
	return database.MediaFile{
		Path:    f.Path,
		Folder:  f.Folder,
		Size:    f.Size,
		ModTime: f.ModTime,
	}
}

// roots returns the folders in the form media stores them.
func roots(folders []string) []string {
	out := make([]string, 0, len(folders))
	for _, folder := range folders {
		root, err := media.Root(folder)
		if err != nil {
			continue
		}
		out = append(out, root)
	}
	return out
}
