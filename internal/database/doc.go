// Package database stores the media index in PostgreSQL.
//
// The indexer keeps one row per discovered file in media_files, keyed by its
// absolute path. Full scans upsert every file and prune rows whose files have
// disappeared; watch mode applies single changes as they happen.
package database
