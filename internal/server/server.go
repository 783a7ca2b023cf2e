package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/wslive/internal/config"
	"github.com/rickgao/wslive/internal/metrics"
	"github.com/rickgao/wslive/internal/transport"
	"github.com/rickgao/wslive/internal/version"
)

// Greeting is the first frame sent on every accepted connection.
func Greeting(acceptedAt time.Time) string {
	return "accepted " + acceptedAt.UTC().Format(time.RFC3339Nano)
}

// Server accepts websocket clients, registers them and runs the heartbeat.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger

	registry *Registry
	monitor  *Monitor
	metrics  *metrics.Server

	promReg     *prometheus.Registry
	metricsPath string
	onMessage   MessageHandler

	upgrader websocket.Upgrader
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics registers server metrics on reg and serves them at path.
func WithMetrics(reg *prometheus.Registry, path string) Option {
	return func(s *Server) {
		s.promReg = reg
		s.metricsPath = path
	}
}

// WithOnMessage passes every received data frame to fn.
func WithOnMessage(fn MessageHandler) Option {
	return func(s *Server) {
		s.onMessage = fn
	}
}

// New creates a server. Nothing listens until Run or Serve.
func New(cfg config.ServerConfig, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(r *http.Request) bool { return true },
			EnableCompression: false,
		},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.promReg != nil {
		s.metrics = metrics.NewServer(s.promReg)
	}
	s.registry = NewRegistry(logger,
		WithRegistryMetrics(s.metrics),
		WithMessageHandler(s.onMessage),
	)
	s.monitor = NewMonitor(s.registry, cfg.HeartbeatInterval, logger, s.metrics)
	return s
}

// Registry returns the connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handler returns the HTTP handler: websocket upgrades on /, health on
// /health and metrics when enabled.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	if s.promReg != nil {
		mux.Handle(s.metricsPath, metrics.Handler(s.promReg))
	}
	mux.HandleFunc("/", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// Pongs can arrive before Register returns the Conn.
	var owner atomic.Pointer[Conn]
	h := transport.Accept(conn, transport.Options{
		WriteTimeout: s.cfg.WriteTimeout,
		OnPong: func() {
			if c := owner.Load(); c != nil {
				c.MarkAlive()
			}
		},
	}, s.logger.With("remote", r.RemoteAddr))

	c, ok := s.admit(h, r.RemoteAddr)
	if !ok {
		return
	}
	owner.Store(c)

	if s.cfg.DisableGreeting {
		return
	}
	if err := c.Send([]byte(Greeting(c.AcceptedAt))); err != nil {
		s.logger.Warn("greeting failed", "conn_id", c.ID, "error", err)
	}
}

// admit registers h, terminating it when the registry refuses it.
func (s *Server) admit(h transport.Handle, remoteAddr string) (*Conn, bool) {
	c, err := s.registry.Register(h, remoteAddr)
	if err == nil {
		return c, true
	}
	if err := h.Abort(); err != nil {
		s.logger.Debug("abort rejected connection failed", "remote", remoteAddr, "error", err)
	}
	return nil, false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := struct {
		Status      string `json:"status"`
		Version     string `json:"version"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "healthy",
		Version:     version.Version,
		Connections: s.registry.Len(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	}

	json.NewEncoder(w).Encode(health)
}

// Run listens on the configured port and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and runs the heartbeat monitor until ctx is
// cancelled. Shutdown stops the monitor first, then closes every connection,
// then drains HTTP within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	s.monitor.Start(gctx)
	s.logger.Info("server listening", "addr", ln.Addr().String())

	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		s.monitor.Stop()
		s.registry.CloseAll()

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
