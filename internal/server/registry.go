package server

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/wslive/internal/metrics"
	"github.com/rickgao/wslive/internal/transport"
)

// Errors
var (
	ErrIdentifierCollision = errors.New("transport already registered")
)

// MessageHandler receives every data frame from a registered connection.
type MessageHandler func(c *Conn, data []byte)

// Conn is one registered server-side connection.
type Conn struct {
	ID         uint64    // Sequential, never reused by the registry that assigned it
	Session    uuid.UUID // Log correlation
	RemoteAddr string
	AcceptedAt time.Time

	handle transport.Handle
	alive  atomic.Bool

	done     chan struct{}
	doneOnce sync.Once
}

// Alive reports whether the connection answered the most recent probe, or
// has not been probed yet.
func (c *Conn) Alive() bool {
	return c.alive.Load()
}

// MarkAlive records a probe acknowledgment.
func (c *Conn) MarkAlive() {
	c.alive.Store(true)
}

// probe clears the liveness flag and reports whether it was set.
func (c *Conn) probe() bool {
	return c.alive.CompareAndSwap(true, false)
}

// Send writes a text frame to the peer.
func (c *Conn) Send(payload []byte) error {
	return c.handle.Send(payload)
}

// Done is closed once the connection has been unregistered.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Registry tracks accepted connections by ID.
type Registry struct {
	logger    *slog.Logger
	metrics   *metrics.Server
	onMessage MessageHandler

	mu      sync.Mutex
	nextID  uint64
	conns   map[uint64]*Conn
	handles map[transport.Handle]*Conn
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryMetrics records registrations and the active connection count.
func WithRegistryMetrics(m *metrics.Server) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithMessageHandler passes every received data frame to fn.
func WithMessageHandler(fn MessageHandler) RegistryOption {
	return func(r *Registry) {
		r.onMessage = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:  logger,
		conns:   make(map[uint64]*Conn),
		handles: make(map[transport.Handle]*Conn),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register assigns the next ID to h, marks it alive and starts consuming its
// events. A handle that is already registered is rejected with
// ErrIdentifierCollision and the registry is left untouched.
func (r *Registry) Register(h transport.Handle, remoteAddr string) (*Conn, error) {
	r.mu.Lock()
	if existing, ok := r.handles[h]; ok {
		r.mu.Unlock()
		r.metrics.RegistrationRejected()
		r.logger.Error("duplicate registration rejected", "conn_id", existing.ID, "remote", remoteAddr)
		return nil, ErrIdentifierCollision
	}

	r.nextID++
	c := &Conn{
		ID:         r.nextID,
		Session:    uuid.New(),
		RemoteAddr: remoteAddr,
		AcceptedAt: time.Now(),
		handle:     h,
		done:       make(chan struct{}),
	}
	c.alive.Store(true)
	r.conns[c.ID] = c
	r.handles[h] = c
	r.mu.Unlock()

	r.metrics.ConnRegistered()
	r.logger.Info("connection registered",
		"conn_id", c.ID,
		"session", c.Session,
		"remote", remoteAddr,
	)

	go r.watch(c)
	return c, nil
}

// Unregister removes c. It reports whether c was still registered. Safe to
// call more than once.
func (r *Registry) Unregister(c *Conn) bool {
	c.alive.Store(false)

	r.mu.Lock()
	if r.conns[c.ID] != c {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, c.ID)
	delete(r.handles, c.handle)
	r.mu.Unlock()

	c.doneOnce.Do(func() { close(c.done) })
	r.metrics.ConnUnregistered()
	r.logger.Debug("connection unregistered", "conn_id", c.ID)
	return true
}

// ForEach calls fn for every registered connection. It iterates a snapshot,
// so fn may unregister connections. Order is unspecified.
func (r *Registry) ForEach(fn func(*Conn)) {
	for _, c := range r.snapshot() {
		fn(c)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll gracefully closes and unregisters every connection.
func (r *Registry) CloseAll() {
	for _, c := range r.snapshot() {
		if err := c.handle.Close(); err != nil {
			r.logger.Debug("close failed", "conn_id", c.ID, "error", err)
		}
		r.Unregister(c)
	}
}

func (r *Registry) snapshot() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// watch consumes the handle's events until it closes.
func (r *Registry) watch(c *Conn) {
	for ev := range c.handle.Events() {
		switch ev.Kind {
		case transport.EventMessage:
			r.metrics.MessageReceived()
			r.logger.Info("received", "conn_id", c.ID, "message", string(ev.Data))
			if r.onMessage != nil {
				r.onMessage(c, ev.Data)
			}
		case transport.EventError:
			r.logger.Warn("connection error", "conn_id", c.ID, "error", ev.Err)
		case transport.EventClosed:
			if r.Unregister(c) {
				r.logger.Info("connection closed", "conn_id", c.ID, "code", ev.Code)
			}
		}
	}
}
