package config

import "time"

// Config is the root configuration shared by the server, client and indexer.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Indexer IndexerConfig `yaml:"indexer"`
}

// ServerConfig holds websocket server settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	DisableGreeting   bool          `yaml:"disable_greeting"`
}

// ClientConfig holds reconnecting client settings.
type ClientConfig struct {
	Protocol         string          `yaml:"protocol"` // "ws://" or "wss://"
	Hostname         string          `yaml:"hostname"`
	Port             int             `yaml:"port"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	DisableTimestamp bool            `yaml:"disable_timestamp"` // Skip the local timestamp sent on open
}

// ReconnectConfig selects the client reconnect policy.
type ReconnectConfig struct {
	Policy      string        `yaml:"policy"` // "fixed" or "exponential"
	Delay       time.Duration `yaml:"delay"`  // Fixed delay, or base delay for exponential
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      float64       `yaml:"jitter"`       // Fraction of the delay, exponential only
	MaxAttempts int           `yaml:"max_attempts"` // 0 = unlimited
}

// LogConfig holds log sink settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IndexerConfig holds media indexer settings.
type IndexerConfig struct {
	Database DBConfig `yaml:"database"`
	Folders  []string `yaml:"folders"`
	Watch    bool     `yaml:"watch"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
