package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all values are usable. Indexer database fields are
// checked separately by IndexerConfig.Validate.
func (c *Config) Validate() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Server.HeartbeatInterval <= 0 {
		return errors.New("server.heartbeat_interval must be > 0")
	}

	switch c.Client.Protocol {
	case "ws://", "wss://":
	default:
		return fmt.Errorf("client.protocol must be ws:// or wss://, got %q", c.Client.Protocol)
	}
	if c.Client.Hostname == "" {
		return errors.New("client.hostname is required")
	}
	if err := validatePort("client.port", c.Client.Port); err != nil {
		return err
	}
	if err := c.Client.Reconnect.validate("client.reconnect"); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

// Validate checks the settings the indexer needs before it touches the database.
func (c *IndexerConfig) Validate() error {
	if len(c.Folders) == 0 {
		return errors.New("indexer.folders requires at least one folder")
	}
	return c.Database.validate("indexer.database")
}

func (r *ReconnectConfig) validate(prefix string) error {
	switch r.Policy {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("%s.policy must be fixed or exponential, got %q", prefix, r.Policy)
	}
	if r.Delay <= 0 {
		return fmt.Errorf("%s.delay must be > 0", prefix)
	}
	if r.Policy == "exponential" && r.MaxDelay < r.Delay {
		return fmt.Errorf("%s.max_delay (%v) cannot be less than delay (%v)", prefix, r.MaxDelay, r.Delay)
	}
	if r.Jitter < 0 || r.Jitter >= 1 {
		return fmt.Errorf("%s.jitter must be in [0, 1), got %v", prefix, r.Jitter)
	}
	if r.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >= 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
