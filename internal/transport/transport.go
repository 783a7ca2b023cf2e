// Package transport implements the transport handle: a bidirectional websocket
// message channel observed through an ordered event stream.
//
// A handle reports exactly four event kinds:
//   - EventOpened: the handshake completed and the channel is usable
//   - EventMessage: a data frame arrived (Data holds the raw payload)
//   - EventError: the channel failed; always followed by EventClosed
//   - EventClosed: the channel is gone; the last event on the stream
//
// Client handles are created by a Dialer and establish asynchronously. Server
// handles are created by Accept from an already upgraded connection.
package transport

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotOpen = errors.New("transport not open")
)

// EventKind identifies a transport event.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventClosed
	EventError
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	case EventMessage:
		return "message"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single observation from a transport handle.
type Event struct {
	Kind        EventKind
	Data        []byte    // Message payload (EventMessage only)
	MessageType int       // websocket.TextMessage or websocket.BinaryMessage
	Err         error     // Cause (EventError only)
	Code        int       // Close code (EventClosed only)
	Reason      string    // Close reason (EventClosed only)
	At          time.Time // Local time the event was observed
}

// State is the observable phase of a handle.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handle is a single message channel instance.
type Handle interface {
	// Events returns the ordered event stream. It is closed right after the
	// EventClosed event has been delivered.
	Events() <-chan Event

	// Send writes a text frame. Returns ErrNotOpen unless the handle is open.
	Send(payload []byte) error

	// Ping writes a ping control frame.
	Ping(payload []byte) error

	// Close requests a graceful close. Safe to call more than once.
	Close() error

	// Abort tears the connection down without a closing handshake.
	Abort() error

	// State returns the current phase.
	State() State

	// RemoteAddr returns the peer address, or "" before the handshake.
	RemoteAddr() string
}

// Dialer creates client handles.
type Dialer interface {
	// Dial returns immediately with a handle in StateConnecting. The outcome
	// is reported on the handle's event stream.
	Dial(url string) Handle
}

// URL joins a protocol prefix such as "ws://" with host and port.
func URL(protocol, hostname string, port int) string {
	return fmt.Sprintf("%s%s:%d", protocol, hostname, port)
}
