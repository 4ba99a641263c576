// Package daemon assembles dockmond: the engine client, the refresh loop,
// the HTTP API and the systemd readiness notification.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"dockmon/internal/aggregator"
	"dockmon/internal/api"
	"dockmon/internal/config"
	"dockmon/internal/engine"
	"dockmon/internal/gateway"
	"dockmon/internal/infra/docker"
	"dockmon/internal/metrics"
	"dockmon/internal/telemetry"
	"dockmon/internal/watch"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const pingTimeout = 5 * time.Second

// Run connects to the container engine and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	rt, err := docker.NewRuntime(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer rt.Close()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	return Serve(ctx, cfg, rt, ln)
}

// Serve runs the daemon against an existing engine client and listener. The
// listener is closed on return.
func Serve(ctx context.Context, cfg config.Config, client engine.Client, ln net.Listener) error {
	if err := checkEngine(ctx, client); err != nil {
		_ = ln.Close()
		return err
	}

	if cfg.Trace {
		shutdown := telemetry.Setup()
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Failed to flush traces.", "err", err)
			}
		}()
	}

	broker := watch.NewBroker()
	defer broker.Close()

	cycles := metrics.NewCycleMetrics()
	agg := aggregator.New(client, cfg.Aggregator(),
		aggregator.OnPublish(broker.Publish),
		aggregator.WithCycleObserver(cycles.Observe),
	)
	reg := metrics.NewRegistry(agg.Snapshot, cycles)
	srv := api.NewServer(agg, gateway.New(client, agg, cfg.LogLines), broker,
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting refresh loop.", "interval", cfg.RefreshInterval)

		// Notify systemd once the first snapshot is available.
		go func() {
			select {
			case <-agg.Ready():
				sent, err := systemd.SdNotify(false, systemd.SdNotifyReady)
				if err != nil {
					slog.Error("Failed to notify systemd that the daemon is ready.", "err", err)
				} else if sent {
					slog.Debug("Notified systemd that the daemon is ready.")
				}
			case <-ctx.Done():
			}
		}()

		return agg.Run(ctx)
	})
	g.Go(func() error { return srv.Serve(ctx, ln, cfg.ShutdownGrace) })
	return g.Wait()
}

// checkEngine fails fast when the socket exists but may not be used. An
// unreachable engine is not fatal: the loop keeps retrying and the API
// reports idle until it comes up.
func checkEngine(ctx context.Context, client engine.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := client.Ping(pingCtx)
	switch {
	case err == nil:
		slog.Info("Connected to container engine.")
		return nil
	case errors.Is(err, engine.ErrPermission):
		return fmt.Errorf("container engine socket: %w (add the user to the docker group or run with access to the socket)", err)
	default:
		slog.Warn("Container engine not reachable yet, will retry every cycle.", "err", err)
		return nil
	}
}
