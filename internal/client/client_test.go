package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dockmon/internal/adapter/fake"
	"dockmon/internal/aggregator"
	"dockmon/internal/api"
	"dockmon/internal/engine"
	"dockmon/internal/gateway"
	"dockmon/internal/grouping"
	"dockmon/internal/watch"
)

type daemon struct {
	engine *fake.Engine
	agg    *aggregator.Aggregator
	client *Client
}

func startDaemon(t *testing.T) *daemon {
	t.Helper()

	e := fake.NewEngine()
	e.AddContainer(engine.ContainerDescriptor{
		ID: "0123456789abcdef", Name: "shop-web-1", State: engine.StateRunning,
		Labels: map[string]string{grouping.DefaultLabel: "shop"},
	})
	e.SetLogs("0123456789abcdef", "a", "b", "c")

	broker := watch.NewBroker()
	agg := aggregator.New(e, aggregator.Config{}, aggregator.OnPublish(broker.Publish))
	srv := httptest.NewServer(api.NewServer(agg, gateway.New(e, agg, 0), broker, nil).Handler())
	t.Cleanup(func() {
		broker.Close()
		srv.Close()
	})

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &daemon{engine: e, agg: agg, client: c}
}

func TestNewNormalizesURL(t *testing.T) {
	c, err := New("localhost:9000/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Server() != "http://localhost:9000" {
		t.Fatalf("Server() = %q", c.Server())
	}
	if _, err := New("ftp://localhost"); err == nil {
		t.Fatal("New() accepted an ftp url")
	}
}

func TestSnapshotNotReady(t *testing.T) {
	d := startDaemon(t)

	_, err := d.client.Snapshot(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Snapshot() error = %v, want ErrNotReady", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Snapshot() error = %#v, want 503 APIError", err)
	}

	h, err := d.client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.Status != "idle" {
		t.Fatalf("Health().Status = %q, want idle", h.Status)
	}
}

func TestRoundTrip(t *testing.T) {
	d := startDaemon(t)
	ctx := context.Background()

	snap, err := d.client.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if snap.TotalContainers != 1 {
		t.Fatalf("Refresh().TotalContainers = %d, want 1", snap.TotalContainers)
	}

	g, err := d.client.Instance(ctx, "shop")
	if err != nil {
		t.Fatalf("Instance() error = %v", err)
	}
	if len(g.Containers) != 1 || g.Containers[0].Name != "shop-web-1" {
		t.Fatalf("Instance() = %+v", g)
	}
	if _, err := d.client.Instance(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Instance(nope) error = %v, want ErrNotFound", err)
	}

	lines, err := d.client.Logs(ctx, "shop-web-1", 2)
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if len(lines) != 2 || lines[1] != "c" {
		t.Fatalf("Logs() = %v, want [b c]", lines)
	}

	if err := d.client.Restart(ctx, "shop-web-1"); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if err := d.client.Restart(ctx, "ghost-id"); !errors.Is(err, ErrContainerGone) {
		t.Fatalf("Restart(ghost) error = %v, want ErrContainerGone", err)
	}

	live, err := d.client.LiveStats(ctx, "0123456789abcdef")
	if err != nil {
		t.Fatalf("LiveStats() error = %v", err)
	}
	if live.ID != "0123456789abcdef" {
		t.Fatalf("LiveStats().ID = %q", live.ID)
	}
}

func TestEngineErrors(t *testing.T) {
	d := startDaemon(t)
	d.engine.RestartErr = func(context.Context, string) error {
		return fmt.Errorf("restart: %w", engine.ErrEngine)
	}
	if err := d.client.Restart(context.Background(), "0123456789abcdef"); !errors.Is(err, ErrEngine) {
		t.Fatalf("Restart() error = %v, want ErrEngine", err)
	}

	d.engine.ListContainersErr = func(context.Context) error { return engine.ErrConnection }
	if _, err := d.client.Refresh(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Refresh() error = %v, want ErrUnavailable", err)
	}
}

func TestWatch(t *testing.T) {
	d := startDaemon(t)
	if _, err := d.agg.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := d.client.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	next := func() uint64 {
		t.Helper()
		select {
		case snap, ok := <-updates:
			if !ok {
				t.Fatal("watch channel closed early")
			}
			return snap.Sequence
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
		return 0
	}

	if got := next(); got != 1 {
		t.Fatalf("first sequence = %d, want 1", got)
	}
	if _, err := d.agg.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := next(); got != 2 {
		t.Fatalf("second sequence = %d, want 2", got)
	}

	cancel()
	select {
	case _, ok := <-updates:
		for ok {
			_, ok = <-updates
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}
