// Package metrics exposes the published snapshot in Prometheus format.
package metrics

import (
	"errors"
	"time"

	"dockmon/internal/engine"
	"dockmon/internal/snapshot"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "dockmon"

// SnapshotSource returns the latest snapshot or nil while idle.
type SnapshotSource func() *snapshot.Snapshot

// Collector turns the current snapshot into const metrics on every scrape.
// It holds no per-container state, so containers that disappear stop being
// exported on the next scrape.
type Collector struct {
	source SnapshotSource

	up                *prometheus.Desc
	sequence          *prometheus.Desc
	age               *prometheus.Desc
	containers        *prometheus.Desc
	running           *prometheus.Desc
	instanceTotal     *prometheus.Desc
	instanceRunning   *prometheus.Desc
	instanceCPU       *prometheus.Desc
	instanceMemory    *prometheus.Desc
	containerRunning  *prometheus.Desc
	containerCPU      *prometheus.Desc
	containerMemory   *prometheus.Desc
	containerMemLimit *prometheus.Desc
	containerRx       *prometheus.Desc
	containerTx       *prometheus.Desc
	containerUptime   *prometheus.Desc

	now func() time.Time
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source SnapshotSource) *Collector {
	containerLabels := []string{"instance", "name", "id"}
	instanceLabels := []string{"instance"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source:            source,
		up:                desc("snapshot_ready", "1 once a snapshot has been published, else 0", nil),
		sequence:          desc("snapshot_sequence", "Sequence number of the latest published snapshot", nil),
		age:               desc("snapshot_age_seconds", "Seconds since the latest snapshot was taken", nil),
		containers:        desc("containers", "Containers known to the engine", nil),
		running:           desc("containers_running", "Containers in the running state", nil),
		instanceTotal:     desc("instance_containers", "Containers per instance", instanceLabels),
		instanceRunning:   desc("instance_containers_running", "Running containers per instance", instanceLabels),
		instanceCPU:       desc("instance_cpu_percent", "Summed CPU percent of an instance, 100 per busy core", instanceLabels),
		instanceMemory:    desc("instance_memory_used_bytes", "Summed working-set memory of an instance", instanceLabels),
		containerRunning:  desc("container_running", "1 if the container is running, else 0", containerLabels),
		containerCPU:      desc("container_cpu_percent", "Container CPU percent, 100 per busy core", containerLabels),
		containerMemory:   desc("container_memory_used_bytes", "Container working-set memory", containerLabels),
		containerMemLimit: desc("container_memory_limit_bytes", "Container memory limit", containerLabels),
		containerRx:       desc("container_network_receive_bytes_total", "Bytes received across all container interfaces", containerLabels),
		containerTx:       desc("container_network_transmit_bytes_total", "Bytes sent across all container interfaces", containerLabels),
		containerUptime:   desc("container_uptime_seconds", "Seconds since the container started", containerLabels),
		now:               time.Now,
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.up, c.sequence, c.age, c.containers, c.running,
		c.instanceTotal, c.instanceRunning, c.instanceCPU, c.instanceMemory,
		c.containerRunning, c.containerCPU, c.containerMemory, c.containerMemLimit,
		c.containerRx, c.containerTx, c.containerUptime,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.source()
	if snap == nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.sequence, prometheus.CounterValue, float64(snap.Sequence))
	ch <- prometheus.MustNewConstMetric(c.age, prometheus.GaugeValue, max(c.now().Sub(snap.Timestamp).Seconds(), 0))
	ch <- prometheus.MustNewConstMetric(c.containers, prometheus.GaugeValue, float64(snap.TotalContainers))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(snap.RunningContainers))

	for _, g := range snap.Instances {
		ch <- prometheus.MustNewConstMetric(c.instanceTotal, prometheus.GaugeValue, float64(g.TotalContainers), g.Name)
		ch <- prometheus.MustNewConstMetric(c.instanceRunning, prometheus.GaugeValue, float64(g.RunningContainers), g.Name)
		ch <- prometheus.MustNewConstMetric(c.instanceCPU, prometheus.GaugeValue, g.CPUPercent, g.Name)
		ch <- prometheus.MustNewConstMetric(c.instanceMemory, prometheus.GaugeValue, float64(g.MemoryUsedBytes), g.Name)

		for _, rec := range g.Containers {
			c.collectContainer(ch, rec)
		}
	}
}

func (c *Collector) collectContainer(ch chan<- prometheus.Metric, rec snapshot.ContainerRecord) {
	labels := []string{rec.Instance, rec.Name, rec.ShortID}

	running := 0.0
	if rec.Running() {
		running = 1
		ch <- prometheus.MustNewConstMetric(c.containerUptime, prometheus.GaugeValue, rec.Uptime.Seconds(), labels...)
	}
	ch <- prometheus.MustNewConstMetric(c.containerRunning, prometheus.GaugeValue, running, labels...)

	if m := rec.Metrics; m != nil {
		ch <- prometheus.MustNewConstMetric(c.containerCPU, prometheus.GaugeValue, m.CPUPercent, labels...)
		ch <- prometheus.MustNewConstMetric(c.containerMemory, prometheus.GaugeValue, float64(m.MemoryUsedBytes), labels...)
		if m.MemoryPercent != nil {
			ch <- prometheus.MustNewConstMetric(c.containerMemLimit, prometheus.GaugeValue, float64(m.MemoryLimitBytes), labels...)
		}
	}
	if n := rec.Network; n != nil {
		ch <- prometheus.MustNewConstMetric(c.containerRx, prometheus.CounterValue, float64(n.RxBytes), labels...)
		ch <- prometheus.MustNewConstMetric(c.containerTx, prometheus.CounterValue, float64(n.TxBytes), labels...)
	}
}

// CycleMetrics counts aggregation cycles by outcome.
type CycleMetrics struct {
	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewCycleMetrics() *CycleMetrics {
	return &CycleMetrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Aggregation cycles by result",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of aggregation cycles",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}

// Observe records one cycle. It matches aggregator.CycleObserver.
func (m *CycleMetrics) Observe(d time.Duration, err error) {
	m.duration.Observe(d.Seconds())
	m.cycles.WithLabelValues(cycleResult(err)).Inc()
}

func cycleResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, engine.ErrConnection):
		return "unreachable"
	case errors.Is(err, engine.ErrPermission):
		return "permission_denied"
	default:
		return "error"
	}
}

func (m *CycleMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.cycles.Describe(ch)
	m.duration.Describe(ch)
}

func (m *CycleMetrics) Collect(ch chan<- prometheus.Metric) {
	m.cycles.Collect(ch)
	m.duration.Collect(ch)
}

// NewRegistry returns a registry with the snapshot collector, the cycle
// metrics and the Go runtime and process collectors.
func NewRegistry(source SnapshotSource, cycles *CycleMetrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(source), cycles)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
