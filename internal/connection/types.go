package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/wslive/internal/transport"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrManagerDestroyed = errors.New("manager destroyed")
)

// Config addresses the server. Zero fields take the defaults.
type Config struct {
	Protocol string // "ws://" or "wss://"
	Hostname string
	Port     int
}

// DefaultConfig returns the default address, ws://localhost:8080.
func DefaultConfig() Config {
	return Config{
		Protocol: "ws://",
		Hostname: "localhost",
		Port:     8080,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Protocol == "" {
		c.Protocol = d.Protocol
	}
	if c.Hostname == "" {
		c.Hostname = d.Hostname
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	return c
}

// URL returns the dial address.
func (c Config) URL() string {
	c = c.withDefaults()
	return transport.URL(c.Protocol, c.Hostname, c.Port)
}

// EventKind mirrors the four transport event kinds.
type EventKind = transport.EventKind

const (
	EventOpened  = transport.EventOpened
	EventClosed  = transport.EventClosed
	EventError   = transport.EventError
	EventMessage = transport.EventMessage
)

// Event is a lifecycle notification from the Manager.
type Event struct {
	Kind    EventKind
	Attempt uuid.UUID // Connection attempt that produced the event
	Seq     uint64    // Attempt number, starting at 1
	At      time.Time

	Data []byte // EventMessage payload
	Err  error  // EventError cause

	// EventClosed only
	Code          int
	Reason        string
	Intentional   bool          // Close was requested by the owner
	WillReconnect bool          // A retry has been scheduled
	Reconnect     time.Duration // Delay before the retry
}

// State is the observable manager state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// attempt is one connection instance. closeIntent is written once, by Close
// or Destroy, and read once when the transport reports closure.
type attempt struct {
	id          uuid.UUID
	seq         uint64
	handle      transport.Handle
	opened      bool
	closeIntent bool
}
