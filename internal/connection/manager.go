package connection

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/wslive/internal/metrics"
	"github.com/rickgao/wslive/internal/queue"
	"github.com/rickgao/wslive/internal/transport"
)

// Manager presents one self-healing logical connection on top of
// short-lived transport handles.
type Manager struct {
	dialer  transport.Dialer
	policy  ReconnectPolicy
	logger  *slog.Logger
	metrics *metrics.Client

	events *queue.Queue[Event]
	out    <-chan Event

	mu        sync.Mutex
	cfg       Config
	current   *attempt // Owned attempt, nil when disconnected
	seq       uint64
	failures  int // Unexpected closes since the last successful open
	retry     *time.Timer
	retryGen  uint64 // Bumped on every cancel so stale timers never fire
	destroyed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics records attempts, reconnects and open state.
func WithMetrics(m *metrics.Client) ManagerOption {
	return func(mg *Manager) {
		mg.metrics = m
	}
}

// WithEventBuffer sets the initial event queue capacity.
func WithEventBuffer(n int) ManagerOption {
	return func(mg *Manager) {
		mg.events = queue.New[Event](n)
	}
}

// NewManager creates a disconnected manager. A nil policy retries every
// DefaultReconnectDelay forever.
func NewManager(dialer transport.Dialer, policy ReconnectPolicy, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = FixedDelay{Delay: DefaultReconnectDelay}
	}

	m := &Manager{
		dialer: dialer,
		policy: policy,
		logger: logger,
		events: queue.New[Event](64),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events.Observe(m.metrics.SetQueued)
	m.out = m.events.Chan()
	return m
}

// Events returns the lifecycle stream. It is closed after Destroy once every
// queued event has been delivered.
func (m *Manager) Events() <-chan Event {
	return m.out
}

// Open starts a connection attempt with cfg and remembers cfg for retries.
// It is a no-op while an attempt is connecting or open.
func (m *Manager) Open(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrManagerDestroyed
	}
	if m.current != nil {
		return nil
	}

	m.cfg = cfg.withDefaults()
	m.cancelRetryLocked()
	m.startLocked()
	return nil
}

// Close releases the owned transport and asks it to close. No reconnect
// follows. The EventClosed notification still arrives once the transport
// finishes. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.cancelRetryLocked()
	a := m.release()
	m.mu.Unlock()

	if a == nil {
		return nil
	}

	m.logger.Info("closing connection", "attempt", a.seq)
	if err := a.handle.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Destroy closes the connection, cancels timers and ends the event stream.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.cancelRetryLocked()
	a := m.release()
	m.events.Close()
	m.mu.Unlock()

	if a != nil {
		if err := a.handle.Close(); err != nil {
			m.logger.Debug("close on destroy failed", "error", err)
		}
	}
	m.logger.Debug("connection manager destroyed")
}

// IsOpen reports whether an owned transport is in the open phase.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.current
	return a != nil && a.opened && a.handle.State() == transport.StateOpen
}

// State returns the current manager state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.current
	switch {
	case a == nil:
		return StateDisconnected
	case !a.opened:
		return StateConnecting
	case a.handle.State() == transport.StateOpen:
		return StateOpen
	default:
		return StateClosing
	}
}

// Config returns the address used by the current or next attempt.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Send writes a text frame on the open connection.
func (m *Manager) Send(payload []byte) error {
	m.mu.Lock()
	a := m.current
	if a == nil || !a.opened {
		m.mu.Unlock()
		return ErrNotConnected
	}
	h := a.handle
	m.mu.Unlock()

	if err := h.Send(payload); err != nil {
		if errors.Is(err, transport.ErrNotOpen) {
			return ErrNotConnected
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// startLocked dials a new attempt. Must be called with lock held.
func (m *Manager) startLocked() {
	m.seq++
	a := &attempt{
		id:  uuid.New(),
		seq: m.seq,
	}
	url := m.cfg.URL()
	a.handle = m.dialer.Dial(url)
	m.current = a

	m.metrics.AttemptStarted()
	m.logger.Info("connecting", "url", url, "attempt", a.seq, "attempt_id", a.id)

	go m.watch(a)
}

// release drops ownership of the current attempt and marks it intentional.
// Must be called with lock held.
func (m *Manager) release() *attempt {
	a := m.current
	if a == nil {
		return nil
	}
	a.closeIntent = true
	m.current = nil
	if a.opened {
		m.metrics.SetOpen(false)
	}
	return a
}

// watch consumes one attempt's transport events until the stream ends.
func (m *Manager) watch(a *attempt) {
	for ev := range a.handle.Events() {
		m.dispatch(a, ev)
	}
}

// dispatch applies one transport event to the state machine and republishes it.
func (m *Manager) dispatch(a *attempt, tev transport.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Event{
		Kind:    tev.Kind,
		Attempt: a.id,
		Seq:     a.seq,
		At:      tev.At,
	}

	switch tev.Kind {
	case transport.EventOpened:
		if m.current != a {
			// Released by Close before the handshake finished.
			return
		}
		a.opened = true
		m.failures = 0
		m.cancelRetryLocked()
		m.metrics.SetOpen(true)
		m.logger.Info("connected", "attempt", a.seq, "remote", a.handle.RemoteAddr())

	case transport.EventMessage:
		ev.Data = tev.Data

	case transport.EventError:
		ev.Err = tev.Err
		m.logger.Warn("connection error", "attempt", a.seq, "error", tev.Err)

	case transport.EventClosed:
		ev.Code = tev.Code
		ev.Reason = tev.Reason
		ev.Intentional = a.closeIntent

		if m.current == a {
			m.current = nil
			if a.opened {
				m.metrics.SetOpen(false)
			}
		}

		if a.closeIntent || m.destroyed {
			m.logger.Info("connection closed", "attempt", a.seq, "code", tev.Code)
			break
		}

		m.failures++
		delay, ok := m.policy.Next(m.failures)
		if !ok {
			m.logger.Error("giving up reconnecting", "attempt", a.seq, "failures", m.failures)
			break
		}
		ev.WillReconnect = true
		ev.Reconnect = delay
		m.scheduleRetryLocked(delay)
		m.logger.Warn("connection lost, reconnecting",
			"attempt", a.seq,
			"code", tev.Code,
			"delay", delay,
		)

	default:
		return
	}

	m.events.Push(ev)
}

// scheduleRetryLocked arms the single retry timer. Must be called with lock held.
func (m *Manager) scheduleRetryLocked(delay time.Duration) {
	m.cancelRetryLocked()
	gen := m.retryGen
	m.retry = time.AfterFunc(delay, func() {
		m.fireRetry(gen)
	})
	m.metrics.ReconnectScheduled()
}

// cancelRetryLocked stops any pending retry. Must be called with lock held.
func (m *Manager) cancelRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	m.retryGen++
}

func (m *Manager) fireRetry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.retryGen || m.destroyed || m.current != nil {
		return
	}
	m.retry = nil
	m.startLocked()
}
