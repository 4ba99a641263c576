package docker

import (
	"dockmon/internal/stats"

	"github.com/docker/docker/api/types/container"
)

// readingsFromStats converts an engine stats payload into the current
// reading and, when the engine included one, the previous reading.
func readingsFromStats(s *container.StatsResponse) (*stats.RawStatsReading, stats.RawStatsReading) {
	mem := stats.DetectMemory(s.MemoryStats.Usage, s.MemoryStats.Limit, s.MemoryStats.Stats)

	var network stats.NetworkIO
	for _, n := range s.Networks {
		network.RxBytes += n.RxBytes
		network.TxBytes += n.TxBytes
	}

	cur := stats.RawStatsReading{
		Read:        s.Read.UTC(),
		CPUTicks:    s.CPUStats.CPUUsage.TotalUsage,
		SystemTicks: s.CPUStats.SystemUsage,
		OnlineCPUs:  onlineCPUs(s.CPUStats),
		Memory:      mem,
		Network:     network,
	}

	if s.PreCPUStats.SystemUsage == 0 {
		return nil, cur
	}
	prev := stats.RawStatsReading{
		Read:        s.PreRead.UTC(),
		CPUTicks:    s.PreCPUStats.CPUUsage.TotalUsage,
		SystemTicks: s.PreCPUStats.SystemUsage,
		OnlineCPUs:  onlineCPUs(s.PreCPUStats),
		Memory:      mem,
		Network:     network,
	}
	return &prev, cur
}

// onlineCPUs prefers the engine's online_cpus and falls back to the
// per-CPU usage vector that older cgroup v1 engines report.
func onlineCPUs(c container.CPUStats) uint32 {
	if c.OnlineCPUs > 0 {
		return c.OnlineCPUs
	}
	if n := len(c.CPUUsage.PercpuUsage); n > 0 {
		return uint32(n)
	}
	return 1
}
