// Package gateway serves on-demand container actions. Calls go straight to
// the container engine and never touch the published snapshot.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dockmon/internal/engine"
	"dockmon/internal/snapshot"
	"dockmon/internal/stats"
)

const (
	DefaultLogLines = 100
	MaxLogLines     = 5000
)

// ErrContainerGone is returned for any action on a container the engine no
// longer knows.
var ErrContainerGone = errors.New("container no longer exists")

// Refresher runs an aggregation cycle on demand.
type Refresher interface {
	RunOnce(ctx context.Context) (*snapshot.Snapshot, error)
}

// LiveStats is a fresh stats reading of one container.
type LiveStats struct {
	ID      string            `json:"id"`
	Read    time.Time         `json:"read"`
	Metrics stats.MetricPoint `json:"metrics"`
	Network stats.NetworkIO   `json:"network"`
}

type Gateway struct {
	client    engine.Client
	refresher Refresher
	logLines  int
	log       *slog.Logger
}

// New creates a Gateway. logLines is the tail length used when a caller
// asks for zero or fewer lines.
func New(client engine.Client, refresher Refresher, logLines int) *Gateway {
	if logLines <= 0 {
		logLines = DefaultLogLines
	}
	return &Gateway{
		client:    client,
		refresher: refresher,
		logLines:  min(logLines, MaxLogLines),
		log:       slog.With("component", "gateway"),
	}
}

// TailLogs returns the last lines of the container's output, most recent
// last.
func (g *Gateway) TailLogs(ctx context.Context, id string, lines int) ([]string, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("tail logs: %w", ErrContainerGone)
	}
	if lines <= 0 {
		lines = g.logLines
	}
	lines = min(lines, MaxLogLines)

	out, err := g.client.TailLogs(ctx, id, lines)
	if err != nil {
		return nil, translate("tail logs", id, err)
	}
	return out, nil
}

// Restart asks the engine to restart the container and returns as soon as
// the engine accepts the request. The new state shows up on the next
// cycle.
func (g *Gateway) Restart(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("restart: %w", ErrContainerGone)
	}
	if err := g.client.Restart(ctx, id); err != nil {
		return translate("restart", id, err)
	}
	g.log.Info("container restart requested", "id", engine.ShortID(id))
	return nil
}

// LiveStats reads stats once and normalizes them against the engine's own
// pre-sample.
func (g *Gateway) LiveStats(ctx context.Context, id string) (LiveStats, error) {
	if strings.TrimSpace(id) == "" {
		return LiveStats{}, fmt.Errorf("live stats: %w", ErrContainerGone)
	}
	prev, cur, err := g.client.ReadLiveStats(ctx, id)
	if err != nil {
		return LiveStats{}, translate("live stats", id, err)
	}
	return LiveStats{
		ID:      id,
		Read:    cur.Read,
		Metrics: stats.Normalize(prev, cur),
		Network: cur.Network,
	}, nil
}

// Refresh runs a cycle immediately and returns the snapshot it published.
// The cycle is detached from ctx so a caller going away never cuts it
// short; cancelling ctx only stops the wait for its result.
func (g *Gateway) Refresh(ctx context.Context) (*snapshot.Snapshot, error) {
	type result struct {
		snap *snapshot.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := g.refresher.RunOnce(context.WithoutCancel(ctx))
		done <- result{snap, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("refresh: %w", res.err)
		}
		return res.snap, nil
	case <-ctx.Done():
		g.log.Debug("refresh caller went away, cycle continues", "err", ctx.Err())
		return nil, fmt.Errorf("refresh: %w", ctx.Err())
	}
}

func translate(op, id string, err error) error {
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%s %q: %w", op, engine.ShortID(id), ErrContainerGone)
	}
	return fmt.Errorf("%s %q: %w", op, engine.ShortID(id), err)
}
