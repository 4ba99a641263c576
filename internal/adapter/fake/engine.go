package fake

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"dockmon/internal/engine"
	"dockmon/internal/stats"
)

var _ engine.Client = (*Engine)(nil)

type containerState struct {
	desc    engine.ContainerDescriptor
	details engine.ContainerDetails
	reading *stats.RawStatsReading
	prev    *stats.RawStatsReading
	logs    []string
}

// Engine is an in-memory implementation of engine.Client. Error hooks run
// before the in-memory behaviour; a non-nil return is passed through.
type Engine struct {
	CallRecorder
	mu         sync.Mutex
	containers map[string]*containerState
	order      []string

	PingErr             func(ctx context.Context) error
	ListContainersErr   func(ctx context.Context) error
	InspectContainerErr func(ctx context.Context, id string) error
	ReadStatsErr        func(ctx context.Context, id string) error
	ReadLiveStatsErr    func(ctx context.Context, id string) error
	TailLogsErr         func(ctx context.Context, id string, lines int) error
	RestartErr          func(ctx context.Context, id string) error
}

// NewEngine creates an Engine with no containers.
func NewEngine() *Engine {
	return &Engine{containers: make(map[string]*containerState)}
}

// AddContainer registers or replaces a container. Listing order follows
// insertion order.
func (e *Engine) AddContainer(desc engine.ContainerDescriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.containers[desc.ID]; !ok {
		e.order = append(e.order, desc.ID)
	}
	desc.Labels = maps.Clone(desc.Labels)
	e.containers[desc.ID] = &containerState{
		desc:    desc,
		details: engine.ContainerDetails{ID: desc.ID, State: desc.State},
	}
}

// RemoveContainer drops a container; later calls for it fail with
// engine.ErrNotFound.
func (e *Engine) RemoveContainer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.containers, id)
	e.order = slices.DeleteFunc(e.order, func(v string) bool { return v == id })
}

// SetDetails sets the inspect result for a container.
func (e *Engine) SetDetails(id string, details engine.ContainerDetails) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cs, ok := e.containers[id]; ok {
		details.ID = id
		cs.details = details
	}
}

// SetReading sets the next stats reading returned for a container. The
// previously set reading becomes the live-stats pre-sample.
func (e *Engine) SetReading(id string, r stats.RawStatsReading) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cs, ok := e.containers[id]; ok {
		cs.prev = cs.reading
		cs.reading = &r
	}
}

// SetLogs sets the full log output of a container.
func (e *Engine) SetLogs(id string, lines ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cs, ok := e.containers[id]; ok {
		cs.logs = slices.Clone(lines)
	}
}

func (e *Engine) Ping(ctx context.Context) error {
	e.record("Ping")
	if e.PingErr != nil {
		return e.PingErr(ctx)
	}
	return nil
}

func (e *Engine) ListContainers(ctx context.Context, all bool) ([]engine.ContainerDescriptor, error) {
	e.record("ListContainers", all)
	if e.ListContainersErr != nil {
		if err := e.ListContainersErr(ctx); err != nil {
			return nil, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]engine.ContainerDescriptor, 0, len(e.order))
	for _, id := range e.order {
		cs := e.containers[id]
		if !all && !cs.desc.State.Running() {
			continue
		}
		desc := cs.desc
		desc.Labels = maps.Clone(cs.desc.Labels)
		desc.Ports = slices.Clone(cs.desc.Ports)
		out = append(out, desc)
	}
	return out, nil
}

func (e *Engine) InspectContainer(ctx context.Context, id string) (engine.ContainerDetails, error) {
	e.record("InspectContainer", id)
	if e.InspectContainerErr != nil {
		if err := e.InspectContainerErr(ctx, id); err != nil {
			return engine.ContainerDetails{}, err
		}
	}
	cs, err := e.lookup(id)
	if err != nil {
		return engine.ContainerDetails{}, err
	}
	return cs.details, nil
}

func (e *Engine) ReadStats(ctx context.Context, id string) (stats.RawStatsReading, error) {
	e.record("ReadStats", id)
	if e.ReadStatsErr != nil {
		if err := e.ReadStatsErr(ctx, id); err != nil {
			return stats.RawStatsReading{}, err
		}
	}
	cs, err := e.lookup(id)
	if err != nil {
		return stats.RawStatsReading{}, err
	}
	if cs.reading == nil {
		return stats.RawStatsReading{OnlineCPUs: 1, Memory: stats.MemoryRaw{}}, nil
	}
	return *cs.reading, nil
}

func (e *Engine) ReadLiveStats(ctx context.Context, id string) (*stats.RawStatsReading, stats.RawStatsReading, error) {
	e.record("ReadLiveStats", id)
	if e.ReadLiveStatsErr != nil {
		if err := e.ReadLiveStatsErr(ctx, id); err != nil {
			return nil, stats.RawStatsReading{}, err
		}
	}
	cs, err := e.lookup(id)
	if err != nil {
		return nil, stats.RawStatsReading{}, err
	}
	cur := stats.RawStatsReading{OnlineCPUs: 1, Memory: stats.MemoryRaw{}}
	if cs.reading != nil {
		cur = *cs.reading
	}
	if cs.prev == nil {
		return nil, cur, nil
	}
	prev := *cs.prev
	return &prev, cur, nil
}

func (e *Engine) TailLogs(ctx context.Context, id string, lines int) ([]string, error) {
	e.record("TailLogs", id, lines)
	if e.TailLogsErr != nil {
		if err := e.TailLogsErr(ctx, id, lines); err != nil {
			return nil, err
		}
	}
	cs, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	logs := cs.logs
	if lines >= 0 && len(logs) > lines {
		logs = logs[len(logs)-lines:]
	}
	return slices.Clone(logs), nil
}

func (e *Engine) Restart(ctx context.Context, id string) error {
	e.record("Restart", id)
	if e.RestartErr != nil {
		if err := e.RestartErr(ctx, id); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cs, ok := e.containers[id]
	if !ok {
		return fmt.Errorf("restart container %q: %w", id, engine.ErrNotFound)
	}
	cs.desc.State = engine.StateRunning
	cs.details.State = engine.StateRunning
	return nil
}

func (e *Engine) Close() error {
	e.record("Close")
	return nil
}

func (e *Engine) lookup(id string) (containerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cs, ok := e.containers[id]
	if !ok {
		return containerState{}, fmt.Errorf("container %q: %w", id, engine.ErrNotFound)
	}
	return *cs, nil
}
