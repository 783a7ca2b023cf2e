// Package media discovers files in media folders for the indexer. It is
// independent of the connection code.
package media
