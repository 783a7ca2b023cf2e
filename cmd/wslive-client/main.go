package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/wslive/internal/config"
	"github.com/rickgao/wslive/internal/connection"
	"github.com/rickgao/wslive/internal/logging"
	"github.com/rickgao/wslive/internal/metrics"
	"github.com/rickgao/wslive/internal/transport"
	"github.com/rickgao/wslive/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "wslive-client",
		Usage:   "Hold a self-healing websocket connection and report its status",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				EnvVars: []string{"WSLIVE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "override client.hostname",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "override client.port",
			},
			&cli.BoolFlag{
				Name:  "tls",
				Usage: "dial wss:// instead of ws://",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address, e.g. :9091",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("host") {
		cfg.Client.Hostname = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Client.Port = c.Int("port")
	}
	if c.Bool("tls") {
		cfg.Client.Protocol = "wss://"
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("starting wslive client", version.Attrs()...)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var opts []connection.ManagerOption
	if addr := c.String("metrics-addr"); addr != "" {
		reg := metrics.NewRegistry()
		opts = append(opts, connection.WithMetrics(metrics.NewClient(reg)))

		metricsServer := &http.Server{Addr: addr, Handler: metrics.Handler(reg)}
		go func() {
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	dialer := transport.NewDialer(transport.Options{
		HandshakeTimeout: cfg.Client.HandshakeTimeout,
		WriteTimeout:     cfg.Client.WriteTimeout,
	}, logger)

	mgr := connection.NewManager(dialer, connection.PolicyFromConfig(cfg.Client.Reconnect), logger, opts...)
	defer mgr.Destroy()

	if err := mgr.Open(connection.Config{
		Protocol: cfg.Client.Protocol,
		Hostname: cfg.Client.Hostname,
		Port:     cfg.Client.Port,
	}); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		mgr.Destroy()
	}()

	return report(os.Stdout, mgr, !cfg.Client.DisableTimestamp, logger)
}

// report prints the connection status on every transition and sends the
// local timestamp whenever the connection opens. It returns when the event
// stream ends.
func report(w io.Writer, mgr *connection.Manager, sendTimestamp bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	connected := false
	fmt.Fprintln(w, status(connected))

	for ev := range mgr.Events() {
		if now := mgr.IsOpen(); now != connected {
			connected = now
			fmt.Fprintln(w, status(connected))
		}

		switch ev.Kind {
		case connection.EventOpened:
			if !sendTimestamp {
				continue
			}
			stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
			if err := mgr.Send([]byte(stamp)); err != nil {
				logger.Warn("send timestamp failed", "error", err)
			}
		case connection.EventMessage:
			logger.Info("message", "data", string(ev.Data))
		}
	}
	return nil
}

func status(connected bool) string {
	if connected {
		return "connected: yes"
	}
	return "connected: no"
}
