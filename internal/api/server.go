// Package api serves the snapshot, container actions, the live watch
// stream and Prometheus metrics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"dockmon/internal/gateway"
	"dockmon/internal/snapshot"
	"dockmon/internal/watch"

	"github.com/gorilla/websocket"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
)

// Aggregator is the read side of the refresh loop.
type Aggregator interface {
	Snapshot() *snapshot.Snapshot
	LastError() error
}

// Actions are the on-demand container operations.
type Actions interface {
	TailLogs(ctx context.Context, id string, lines int) ([]string, error)
	Restart(ctx context.Context, id string) error
	LiveStats(ctx context.Context, id string) (gateway.LiveStats, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}

type Server struct {
	agg      Aggregator
	actions  Actions
	broker   *watch.Broker
	metrics  http.Handler
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewServer wires the handlers. metrics may be nil, in which case /metrics
// is not served.
func NewServer(agg Aggregator, actions Actions, broker *watch.Broker, metrics http.Handler) *Server {
	return &Server{
		agg:     agg,
		actions: actions,
		broker:  broker,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
		log: slog.With("component", "api"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/v1/instances/{name}", s.handleInstance)
	mux.HandleFunc("GET /api/v1/containers/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/containers/{id}/logs", s.handleLogs)
	mux.HandleFunc("POST /api/v1/containers/{id}/restart", s.handleRestart)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/watch", s.handleWatch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, waiting at most grace for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, grace)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("http server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}
