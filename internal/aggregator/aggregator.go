// Package aggregator runs the refresh loop: it polls the container engine,
// normalizes stats, groups containers into instances and publishes an
// immutable snapshot per cycle.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"dockmon/internal/engine"
	"dockmon/internal/grouping"
	"dockmon/internal/snapshot"
	"dockmon/internal/stats"
	"dockmon/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// State is the readiness of the aggregator.
type State int

const (
	// StateIdle means no snapshot has been published yet.
	StateIdle State = iota
	// StateReady means a snapshot is available. The aggregator never goes
	// back to StateIdle.
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "idle"
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CycleObserver is told the duration and outcome of every cycle.
type CycleObserver func(d time.Duration, err error)

type Option func(*Aggregator)

func WithClock(c Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) { a.tracer = t }
}

// OnPublish registers fn to run, on the cycle goroutine, after each
// snapshot is published.
func OnPublish(fn func(*snapshot.Snapshot)) Option {
	return func(a *Aggregator) { a.publishHooks = append(a.publishHooks, fn) }
}

func WithCycleObserver(fn CycleObserver) Option {
	return func(a *Aggregator) { a.observers = append(a.observers, fn) }
}

// Aggregator owns snapshot construction and publication.
type Aggregator struct {
	client       engine.Client
	cfg          Config
	grouper      grouping.Grouper
	clock        Clock
	tracer       trace.Tracer
	log          *slog.Logger
	store        snapshot.Store
	publishHooks []func(*snapshot.Snapshot)
	observers    []CycleObserver

	ready     chan struct{}
	readyOnce sync.Once

	// cycleMu serializes cycles and guards samples and seq.
	cycleMu sync.Mutex
	samples map[string]stats.RawStatsReading
	seq     uint64

	errMu   sync.Mutex
	lastErr error
}

// probe is the outcome of the per-container calls of one cycle.
type probe struct {
	details    *engine.ContainerDetails
	reading    *stats.RawStatsReading
	inspectErr error
	statsErr   error
}

func New(client engine.Client, cfg Config, opts ...Option) *Aggregator {
	cfg = cfg.withDefaults()
	a := &Aggregator{
		client:  client,
		cfg:     cfg,
		grouper: grouping.New(cfg.GroupLabel),
		clock:   realClock{},
		tracer:  telemetry.Tracer(),
		log:     slog.With("component", "aggregator"),
		ready:   make(chan struct{}),
		samples: make(map[string]stats.RawStatsReading),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the latest published snapshot, or nil while idle. It
// never blocks.
func (a *Aggregator) Snapshot() *snapshot.Snapshot {
	return a.store.Load()
}

func (a *Aggregator) State() State {
	if a.store.Load() == nil {
		return StateIdle
	}
	return StateReady
}

// Ready is closed once the first snapshot is published.
func (a *Aggregator) Ready() <-chan struct{} {
	return a.ready
}

// LastError returns the error of the most recent cycle, nil if it
// succeeded.
func (a *Aggregator) LastError() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.lastErr
}

// Run executes a cycle immediately and then once per interval until ctx is
// cancelled. Cycles never overlap; ticks that fire during a cycle are
// dropped. On shutdown the in-flight cycle gets ShutdownGrace to finish
// before its engine calls are cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	cycleCtx, cancelCycles := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelCycles()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		grace := time.NewTimer(a.cfg.ShutdownGrace)
		defer grace.Stop()
		select {
		case <-grace.C:
			a.log.Warn("shutdown grace elapsed, cancelling in-flight cycle")
			cancelCycles()
		case <-done:
		}
	}()

	a.log.Info("refresh loop started", "interval", a.cfg.Interval, "group_label", a.grouper.Label())
	_, _ = a.RunOnce(cycleCtx)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("refresh loop stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			_, _ = a.RunOnce(cycleCtx)
		}
	}
}

// RunOnce performs one full cycle and publishes its snapshot. When the
// container listing fails nothing is published and the previous snapshot
// stays current. A cycle whose ctx is cancelled is discarded: it publishes
// nothing and is not recorded as a failure.
func (a *Aggregator) RunOnce(ctx context.Context) (*snapshot.Snapshot, error) {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := a.clock.Now()
	ctx, span := a.tracer.Start(ctx, "dockmon.cycle")
	snap, err := a.cycle(ctx, span, start)
	if cerr := ctx.Err(); cerr != nil {
		err = fmt.Errorf("refresh cycle abandoned: %w", cerr)
		telemetry.End(span, err)
		a.log.Debug("refresh cycle cancelled, nothing published")
		return nil, err
	}
	telemetry.End(span, err)

	elapsed := a.clock.Now().Sub(start)
	for _, observe := range a.observers {
		observe(elapsed, err)
	}
	a.setLastErr(err)

	if err != nil {
		if errors.Is(err, engine.ErrPermission) {
			a.log.Error("refresh cycle failed, keeping last snapshot", "err", err)
		} else {
			a.log.Warn("refresh cycle failed, keeping last snapshot", "err", err)
		}
		return nil, err
	}

	a.publish(snap)
	return snap, nil
}

func (a *Aggregator) cycle(ctx context.Context, span trace.Span, start time.Time) (*snapshot.Snapshot, error) {
	listCtx, cancel := context.WithTimeout(ctx, a.cfg.StatsTimeout)
	descs, err := a.client.ListContainers(listCtx, true)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("refresh cycle: %w", err)
	}

	probes := a.probeAll(ctx, descs)
	now := a.clock.Now()

	records := make([]snapshot.ContainerRecord, 0, len(descs))
	next := make(map[string]stats.RawStatsReading, len(descs))
	statsFailed := 0
	for i, d := range descs {
		p := probes[i]
		rec := a.record(d, p, now)

		if p.reading != nil {
			var prev *stats.RawStatsReading
			if r, ok := a.samples[d.ID]; ok {
				prev = &r
			}
			mp := stats.Normalize(prev, *p.reading)
			network := p.reading.Network
			rec.Metrics = &mp
			rec.Network = &network
			next[d.ID] = *p.reading
		} else if r, ok := a.samples[d.ID]; ok && d.State.Running() {
			next[d.ID] = r
		}
		if p.statsErr != nil {
			statsFailed++
		}
		records = append(records, rec)
	}
	// Readings of containers that are gone are dropped here.
	a.samples = next

	snap := &snapshot.Snapshot{
		Timestamp:       now,
		TotalContainers: len(records),
		Instances:       grouping.Partition(records),
		CycleDuration:   now.Sub(start),
	}
	var (
		cpu      float64
		mem      uint64
		measured int
	)
	for _, rec := range records {
		if rec.Running() {
			snap.RunningContainers++
		}
		if rec.Metrics != nil {
			measured++
			cpu += rec.Metrics.CPUPercent
			mem += rec.Metrics.MemoryUsedBytes
		}
	}
	if measured > 0 {
		snap.GlobalCPUPercent = &cpu
		snap.GlobalMemoryUsedBytes = &mem
	}

	span.SetAttributes(
		attribute.Int("containers.total", snap.TotalContainers),
		attribute.Int("containers.running", snap.RunningContainers),
		attribute.Int("containers.stats_failed", statsFailed),
		attribute.Int("instances", len(snap.Instances)),
	)
	return snap, nil
}

func (a *Aggregator) record(d engine.ContainerDescriptor, p probe, now time.Time) snapshot.ContainerRecord {
	rec := snapshot.ContainerRecord{
		ID:       d.ID,
		ShortID:  engine.ShortID(d.ID),
		Name:     d.Name,
		Image:    d.Image,
		State:    d.State,
		Status:   d.Status,
		Instance: a.grouper.GroupName(d.Labels),
		Service:  grouping.ServiceName(d.Labels, d.Name),
		Created:  d.Created,
		Ports:    slices.Clone(d.Ports),
	}
	if p.details != nil {
		rec.StartedAt = p.details.StartedAt
	}
	if rec.Running() && !rec.StartedAt.IsZero() && now.After(rec.StartedAt) {
		rec.Uptime = now.Sub(rec.StartedAt).Truncate(time.Second)
	}
	return rec
}

// probeAll inspects every container and reads stats of the running ones
// with at most MaxConcurrency calls in flight.
func (a *Aggregator) probeAll(ctx context.Context, descs []engine.ContainerDescriptor) []probe {
	out := make([]probe, len(descs))
	var g errgroup.Group
	g.SetLimit(a.cfg.MaxConcurrency)
	for i, d := range descs {
		g.Go(func() error {
			out[i] = a.probe(ctx, d)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Aggregator) probe(ctx context.Context, d engine.ContainerDescriptor) probe {
	var p probe

	inspectCtx, cancel := context.WithTimeout(ctx, a.cfg.StatsTimeout)
	details, err := a.client.InspectContainer(inspectCtx, d.ID)
	cancel()
	if err != nil {
		p.inspectErr = err
		a.logProbeErr("inspect", d, err)
	} else {
		p.details = &details
	}

	if !d.State.Running() || engine.Transient(p.inspectErr) {
		return p
	}

	statsCtx, cancel := context.WithTimeout(ctx, a.cfg.StatsTimeout)
	reading, err := a.client.ReadStats(statsCtx, d.ID)
	cancel()
	if err != nil {
		p.statsErr = err
		a.logProbeErr("stats", d, err)
		return p
	}
	p.reading = &reading
	return p
}

func (a *Aggregator) logProbeErr(call string, d engine.ContainerDescriptor, err error) {
	if engine.Transient(err) {
		a.log.Debug("container vanished during cycle", "call", call, "container", d.Name, "id", engine.ShortID(d.ID))
		return
	}
	a.log.Warn("container probe failed", "call", call, "container", d.Name, "id", engine.ShortID(d.ID), "err", err)
}

func (a *Aggregator) publish(snap *snapshot.Snapshot) {
	a.seq++
	snap.Sequence = a.seq

	if first := a.store.Publish(snap); first {
		a.readyOnce.Do(func() { close(a.ready) })
		a.log.Info("first snapshot published",
			"containers", snap.TotalContainers,
			"running", snap.RunningContainers,
			"instances", len(snap.Instances))
	}
	for _, hook := range a.publishHooks {
		hook(snap)
	}
	a.log.Debug("snapshot published",
		"sequence", snap.Sequence,
		"containers", snap.TotalContainers,
		"running", snap.RunningContainers,
		"duration", snap.CycleDuration)
}

// Degraded reports whether the most recent cycle failed. The published
// snapshot is then older than one interval.
func (a *Aggregator) Degraded() bool {
	return a.LastError() != nil
}

func (a *Aggregator) setLastErr(err error) {
	a.errMu.Lock()
	a.lastErr = err
	a.errMu.Unlock()
}
