package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS media_files (
	id         UUID PRIMARY KEY,
	path       TEXT NOT NULL UNIQUE,
	folder     TEXT NOT NULL,
	size       BIGINT NOT NULL,
	mod_time   TIMESTAMPTZ NOT NULL,
	indexed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS media_files_folder_idx ON media_files (folder);
`

// MediaFile is one indexed row.
type MediaFile struct {
	ID        uuid.UUID
	Path      string
	Folder    string
	Size      int64
	ModTime   time.Time
	IndexedAt time.Time
}

// MediaStore reads and writes the media_files table.
type MediaStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewMediaStore creates a store on an open pool.
func NewMediaStore(db *pgxpool.Pool, logger *slog.Logger) *MediaStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the table and index when missing.
func (s *MediaStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Upsert inserts or refreshes files in one batch. Existing rows keep their ID.
// Returns the number of rows written.
func (s *MediaStore) Upsert(ctx context.Context, files []MediaFile) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, f := range files {
		id := f.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(`
			INSERT INTO media_files (id, path, folder, size, mod_time, indexed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (path) DO UPDATE SET
				folder = EXCLUDED.folder,
				size = EXCLUDED.size,
				mod_time = EXCLUDED.mod_time,
				indexed_at = EXCLUDED.indexed_at`,
			id, f.Path, f.Folder, f.Size, f.ModTime.UTC(), now,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for i := 0; i < len(files); i++ {
		ct, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("upsert %s: %w", files[i].Path, err)
		}
		written += int(ct.RowsAffected())
	}

	s.logger.Debug("upserted media files", "count", written)
	return written, nil
}

// Remove deletes path and, when path was a directory, everything under it.
func (s *MediaStore) Remove(ctx context.Context, path string) (int, error) {
	ct, err := s.db.Exec(ctx,
		`DELETE FROM media_files WHERE path = $1 OR starts_with(path, $1 || '/')`,
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", path, err)
	}
	return int(ct.RowsAffected()), nil
}

// Prune deletes rows under folder whose path is not in keep.
func (s *MediaStore) Prune(ctx context.Context, folder string, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	ct, err := s.db.Exec(ctx,
		`DELETE FROM media_files WHERE folder = $1 AND NOT (path = ANY($2))`,
		folder, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", folder, err)
	}
	return int(ct.RowsAffected()), nil
}

// List returns rows ordered by path. An empty folder lists every row.
func (s *MediaStore) List(ctx context.Context, folder string) ([]MediaFile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, path, folder, size, mod_time, indexed_at
		FROM media_files
		WHERE $1 = '' OR folder = $1
		ORDER BY path`,
		folder,
	)
	if err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	defer rows.Close()

	var files []MediaFile
	for rows.Next() {
		var f MediaFile
		if err := rows.Scan(&f.ID, &f.Path, &f.Folder, &f.Size, &f.ModTime, &f.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan media file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	return files, nil
}
