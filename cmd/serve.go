package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/server"
	"github.com/desertthunder/callsync/internal/shared"
)

// Serve runs the HTTP server and, when an interval is configured, the periodic sweep
// under one supervisor until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.tasksEngine(ctx)
	if err != nil {
		return err
	}
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	cfg := r.config.Server
	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	srv := server.NewFromConfig(engine, cfg, db.PingContext, r.logger)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	supervisor := server.NewSupervisor(shared.NewSlogLogger(r.logger))
	supervisor.Add(server.NewHTTPService(httpServer, 10*time.Second))

	interval := cmd.String("interval")
	if interval == "" {
		interval = r.config.Schedule.Interval
	}
	if interval != "" {
		every, err := time.ParseDuration(interval)
		if err != nil || every <= 0 {
			return fmt.Errorf("%w: interval %q", shared.ErrInvalidFlag, interval)
		}
		lookback := shared.ParseDurationOr(r.config.Schedule.Lookback, 24*time.Hour)
		supervisor.Add(server.NewSchedulerService(engine, every, lookback, r.logger))
		r.logger.Info("scheduled sweeps enabled", "interval", every, "lookback", lookback)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("server listening", "addr", addr)
	if err := supervisor.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	r.logger.Info("server stopped")
	return nil
}
