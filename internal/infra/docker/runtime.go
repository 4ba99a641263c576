package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dockmon/internal/engine"
	"dockmon/internal/stats"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

var _ engine.Client = (*Runtime)(nil)

// defaultRestartTimeout is how long the engine waits for a graceful stop
// before killing the container on restart.
const defaultRestartTimeout = 10

// Runtime implements engine.Client using the Docker Engine API.
type Runtime struct {
	cli            *client.Client
	restartTimeout int
}

// NewRuntime creates a Runtime talking to host. An empty host falls back to
// the environment (DOCKER_HOST) and then to the platform default socket.
func NewRuntime(host string) (*Runtime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if strings.TrimSpace(host) != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewRuntimeFromClient(cli), nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli *client.Client) *Runtime {
	return &Runtime{cli: cli, restartTimeout: defaultRestartTimeout}
}

func (r *Runtime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker daemon: %w", classify(err))
	}
	return nil
}

func (r *Runtime) ListContainers(ctx context.Context, all bool) ([]engine.ContainerDescriptor, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", classify(err))
	}

	out := make([]engine.ContainerDescriptor, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		labels := make(map[string]string, len(c.Labels))
		for key, value := range c.Labels {
			labels[key] = value
		}

		ports := make([]engine.Port, 0, len(c.Ports))
		for _, p := range c.Ports {
			ports = append(ports, engine.Port{
				IP:          p.IP,
				PrivatePort: p.PrivatePort,
				PublicPort:  p.PublicPort,
				Protocol:    p.Type,
			})
		}

		out = append(out, engine.ContainerDescriptor{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			State:   engine.ParseState(string(c.State)),
			Status:  c.Status,
			Labels:  labels,
			Created: time.Unix(c.Created, 0).UTC(),
			Ports:   ports,
		})
	}
	return out, nil
}

func (r *Runtime) InspectContainer(ctx context.Context, id string) (engine.ContainerDetails, error) {
	info, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		return engine.ContainerDetails{}, fmt.Errorf("inspect container %q: %w", id, classify(err))
	}

	details := engine.ContainerDetails{ID: info.ID}
	if info.State != nil {
		details.State = engine.ParseState(string(info.State.Status))
		details.StartedAt = parseEngineTime(info.State.StartedAt)
	}
	if info.Config != nil {
		details.TTY = info.Config.Tty
	}
	return details, nil
}

func (r *Runtime) ReadStats(ctx context.Context, id string) (stats.RawStatsReading, error) {
	resp, err := r.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return stats.RawStatsReading{}, fmt.Errorf("read stats %q: %w", id, classify(err))
	}
	defer resp.Body.Close()

	var s container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return stats.RawStatsReading{}, fmt.Errorf("decode stats %q: %w", id, err)
	}
	_, cur := readingsFromStats(&s)
	return cur, nil
}

func (r *Runtime) ReadLiveStats(ctx context.Context, id string) (*stats.RawStatsReading, stats.RawStatsReading, error) {
	// stream=false blocks until the engine has a second sample, which
	// populates precpu_stats.
	resp, err := r.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return nil, stats.RawStatsReading{}, fmt.Errorf("read live stats %q: %w", id, classify(err))
	}
	defer resp.Body.Close()

	var s container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, stats.RawStatsReading{}, fmt.Errorf("decode live stats %q: %w", id, err)
	}
	prev, cur := readingsFromStats(&s)
	return prev, cur, nil
}

func (r *Runtime) TailLogs(ctx context.Context, id string, lines int) ([]string, error) {
	details, err := r.InspectContainer(ctx, id)
	if err != nil {
		return nil, err
	}

	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(lines),
	}
	rc, err := r.cli.ContainerLogs(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("container logs %q: %w", id, classify(err))
	}
	defer rc.Close()

	var buf bytes.Buffer
	if details.TTY {
		_, err = io.Copy(&buf, rc)
	} else {
		// Non-TTY output is multiplexed with an 8-byte header per frame.
		_, err = stdcopy.StdCopy(&buf, &buf, rc)
	}
	if err != nil {
		return nil, fmt.Errorf("read logs %q: %w", id, err)
	}
	return splitLines(buf.String()), nil
}

func (r *Runtime) Restart(ctx context.Context, id string) error {
	timeout := r.restartTimeout
	if err := r.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("restart container %q: %w", id, classify(err))
	}
	return nil
}

func (r *Runtime) Close() error {
	return r.cli.Close()
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return []string{}
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// parseEngineTime parses the RFC 3339 timestamps in inspect output. The
// engine reports "0001-01-01T00:00:00Z" for containers that never started.
func parseEngineTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() || t.Year() <= 1 {
		return time.Time{}
	}
	return t.UTC()
}
