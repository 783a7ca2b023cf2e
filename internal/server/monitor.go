package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/wslive/internal/metrics"
)

// DefaultHeartbeatInterval is the probe interval.
const DefaultHeartbeatInterval = 3000 * time.Millisecond

// Monitor probes every registered connection once per interval. A connection
// that has not acknowledged the previous probe is aborted and unregistered.
type Monitor struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(registry *Registry, interval time.Duration, logger *slog.Logger, m *metrics.Server) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Monitor{
		registry: registry,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// Start begins the probe loop. It is a no-op if the monitor is running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.run(ctx, m.done)

	m.logger.Info("heartbeat monitor started", "interval", m.interval)
}

// Stop cancels the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	m.logger.Info("heartbeat monitor stopped")
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one heartbeat tick and returns how many connections were probed
// and evicted.
func (m *Monitor) Sweep() (probed, evicted int) {
	m.registry.ForEach(func(c *Conn) {
		if !c.probe() {
			m.evict(c)
			evicted++
			return
		}

		if err := c.handle.Ping(nil); err != nil {
			// the next tick evicts it
			m.logger.Debug("ping failed", "conn_id", c.ID, "error", err)
		}
		m.metrics.ProbeSent()
		probed++
	})

	if evicted > 0 {
		m.logger.Info("heartbeat sweep", "probed", probed, "evicted", evicted)
	}
	return probed, evicted
}

// evict unregisters c before aborting it so the closed event that follows
// finds nothing to remove.
func (m *Monitor) evict(c *Conn) {
	removed := m.registry.Unregister(c)
	if err := c.handle.Abort(); err != nil {
		m.logger.Debug("abort failed", "conn_id", c.ID, "error", err)
	}
	if removed {
		m.metrics.ConnEvicted()
		m.logger.Warn("evicted unresponsive connection",
			"conn_id", c.ID,
			"remote", c.RemoteAddr,
			"connected_for", time.Since(c.AcceptedAt).Round(time.Millisecond),
		)
	}
}
