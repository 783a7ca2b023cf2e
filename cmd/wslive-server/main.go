package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rickgao/wslive/internal/config"
	"github.com/rickgao/wslive/internal/logging"
	"github.com/rickgao/wslive/internal/metrics"
	"github.com/rickgao/wslive/internal/server"
	"github.com/rickgao/wslive/internal/version"
)

func main() {
	app := &cli.App{
		Name:      "wslive-server",
		Usage:     "Accept websocket clients and evict the ones that stop answering pings",
		Version:   version.String(),
		ArgsUsage: "[port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				EnvVars: []string{"WSLIVE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log.level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "serve Prometheus metrics",
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

	if c.Args().Present() {
		port, err := strconv.Atoi(c.Args().First())
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", c.Args().First(), err)
		}
		cfg.Server.Port = port
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.Bool("metrics") {
		cfg.Metrics.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting wslive server", append(version.Attrs(),
		"port", cfg.Server.Port,
		"heartbeat_interval", cfg.Server.HeartbeatInterval,
	)...)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var opts []server.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics(metrics.NewRegistry(), cfg.Metrics.Path))
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	s := server.New(cfg.Server, logger, opts...)
	return s.Run(ctx)
}
