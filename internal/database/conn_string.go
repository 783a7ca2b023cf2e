package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/wslive/internal/config"
)

// BuildConnString builds a PostgreSQL URL from config. The password is
// omitted when empty so libpq style lookups (.pgpass, PGPASSWORD) still apply.
func BuildConnString(cfg config.DBConfig) string {
	user := url.QueryEscape(cfg.User)
	if cfg.Password != "" {
		user += ":" + url.QueryEscape(cfg.Password)
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		user,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
