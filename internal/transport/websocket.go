package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options configures websocket handles.
type Options struct {
	HandshakeTimeout time.Duration // Dial handshake limit
	WriteTimeout     time.Duration // Write deadline for sends and control frames
	CloseGrace       time.Duration // How long to wait for the peer's close frame
	EventBuffer      int           // Event channel buffer size

	// OnPong is called from the read goroutine for every pong frame.
	OnPong func()
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		CloseGrace:       time.Second,
		EventBuffer:      64,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = d.CloseGrace
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = d.EventBuffer
	}
	return o
}

// WSDialer dials websocket handles with gorilla/websocket.
type WSDialer struct {
	opts   Options
	logger *slog.Logger
}

// NewDialer creates a websocket dialer.
func NewDialer(opts Options, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{opts: opts.withDefaults(), logger: logger}
}

// Dial starts an asynchronous connection attempt.
func (d *WSDialer) Dial(url string) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(d.opts, d.logger.With("url", url))
	h.cancel = cancel

	go h.dial(ctx, url)
	return h
}

// Accept wraps a server-side connection that has completed the upgrade.
// The returned handle is open and emits EventOpened first.
func Accept(conn *websocket.Conn, opts Options, logger *slog.Logger) Handle {
	if logger == nil {
		logger = slog.Default()
	}
	h := newHandle(opts.withDefaults(), logger)
	h.conn = conn
	h.state = StateOpen
	h.installHandlers(conn)

	go func() {
		h.emit(Event{Kind: EventOpened})
		h.readLoop(conn)
	}()
	return h
}

// wsHandle implements Handle. All events are emitted from one goroutine, so
// the stream preserves transport order.
type wsHandle struct {
	opts   Options
	logger *slog.Logger

	events chan Event

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	requested bool // Close or Abort was called
	cancel    context.CancelFunc
}

func newHandle(opts Options, logger *slog.Logger) *wsHandle {
	return &wsHandle{
		opts:   opts,
		logger: logger,
		events: make(chan Event, opts.EventBuffer),
		state:  StateConnecting,
		cancel: func() {},
	}
}

func (h *wsHandle) Events() <-chan Event {
	return h.events
}

func (h *wsHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *wsHandle) RemoteAddr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return ""
	}
	return h.conn.RemoteAddr().String()
}

// Send writes a text frame.
func (h *wsHandle) Send(payload []byte) error {
	h.mu.Lock()
	if h.state != StateOpen {
		h.mu.Unlock()
		return ErrNotOpen
	}
	conn := h.conn
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Ping writes a ping control frame.
func (h *wsHandle) Ping(payload []byte) error {
	h.mu.Lock()
	if h.state != StateOpen {
		h.mu.Unlock()
		return ErrNotOpen
	}
	conn := h.conn
	h.mu.Unlock()

	return conn.WriteControl(websocket.PingMessage, payload, time.Now().Add(h.opts.WriteTimeout))
}

// Close sends a close frame and lets the read loop finish once the peer
// answers, or after CloseGrace.
func (h *wsHandle) Close() error {
	h.mu.Lock()
	switch h.state {
	case StateClosing, StateClosed:
		h.mu.Unlock()
		return nil
	case StateConnecting:
		h.state = StateClosing
		h.requested = true
		cancel := h.cancel
		h.mu.Unlock()
		cancel()
		return nil
	}
	h.state = StateClosing
	h.requested = true
	conn := h.conn
	h.mu.Unlock()

	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.opts.WriteTimeout),
	)
	if err != nil {
		return conn.Close()
	}

	time.AfterFunc(h.opts.CloseGrace, func() { conn.Close() })
	return nil
}

// Abort closes the underlying socket immediately.
func (h *wsHandle) Abort() error {
	h.mu.Lock()
	if h.state == StateClosed {
		h.mu.Unlock()
		return nil
	}
	h.state = StateClosing
	h.requested = true
	conn := h.conn
	cancel := h.cancel
	h.mu.Unlock()

	cancel()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// dial establishes the connection and then runs the read loop.
func (h *wsHandle) dial(ctx context.Context, url string) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  h.opts.HandshakeTimeout,
		EnableCompression: false,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		h.mu.Lock()
		requested := h.requested
		h.state = StateClosed
		h.mu.Unlock()

		if !requested {
			h.logger.Debug("websocket dial failed", "error", err)
			h.emit(Event{Kind: EventError, Err: err})
		}
		h.finish(websocket.CloseAbnormalClosure, "")
		return
	}

	h.mu.Lock()
	if h.requested {
		// Close or Abort raced with a successful handshake.
		h.state = StateClosed
		h.mu.Unlock()
		conn.Close()
		h.finish(websocket.CloseNormalClosure, "")
		return
	}
	h.conn = conn
	h.state = StateOpen
	h.mu.Unlock()

	h.installHandlers(conn)
	h.logger.Debug("websocket connected")
	h.emit(Event{Kind: EventOpened})
	h.readLoop(conn)
}

func (h *wsHandle) installHandlers(conn *websocket.Conn) {
	onPong := h.opts.OnPong
	if onPong == nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		onPong()
		return nil
	})
}

// readLoop delivers data frames until the connection fails or closes.
func (h *wsHandle) readLoop(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err == nil {
			h.emit(Event{Kind: EventMessage, Data: data, MessageType: mt})
			continue
		}

		h.mu.Lock()
		requested := h.requested
		h.state = StateClosed
		h.mu.Unlock()
		conn.Close()

		code, reason := websocket.CloseAbnormalClosure, ""
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			code, reason = ce.Code, ce.Text
		}
		// gorilla reports a dropped socket as a 1006 CloseError.
		if !requested && (ce == nil || ce.Code == websocket.CloseAbnormalClosure) {
			h.emit(Event{Kind: EventError, Err: err})
		}
		h.finish(code, reason)
		return
	}
}

func (h *wsHandle) emit(ev Event) {
	ev.At = time.Now()
	h.events <- ev
}

// finish emits the terminal event and closes the stream.
func (h *wsHandle) finish(code int, reason string) {
	h.emit(Event{Kind: EventClosed, Code: code, Reason: reason})
	close(h.events)
}
