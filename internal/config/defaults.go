package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort              = 8080
	DefaultHeartbeatInterval = 3 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultProtocol          = "ws://"
	DefaultHostname          = "localhost"
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultReconnectPolicy   = "fixed"
	DefaultReconnectDelay    = 1000 * time.Millisecond
	DefaultReconnectMaxDelay = 30 * time.Second
	DefaultReconnectJitter   = 0.2
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
	DefaultMetricsPath       = "/metrics"
	DefaultDBHost            = "localhost"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.HeartbeatInterval == 0 {
		c.Server.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	// Client defaults
	if c.Client.Protocol == "" {
		c.Client.Protocol = DefaultProtocol
	}
	if c.Client.Hostname == "" {
		c.Client.Hostname = DefaultHostname
	}
	if c.Client.Port == 0 {
		c.Client.Port = DefaultPort
	}
	if c.Client.HandshakeTimeout == 0 {
		c.Client.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Client.WriteTimeout == 0 {
		c.Client.WriteTimeout = DefaultWriteTimeout
	}
	applyReconnectDefaults(&c.Client.Reconnect)

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	applyDBDefaults(&c.Indexer.Database)
}

func applyReconnectDefaults(r *ReconnectConfig) {
	if r.Policy == "" {
		r.Policy = DefaultReconnectPolicy
	}
	if r.Delay == 0 {
		r.Delay = DefaultReconnectDelay
	}
	if r.Policy == "exponential" {
		if r.MaxDelay == 0 {
			r.MaxDelay = DefaultReconnectMaxDelay
		}
		if r.Jitter == 0 {
			r.Jitter = DefaultReconnectJitter
		}
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Host == "" {
		db.Host = DefaultDBHost
	}
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
