package stats

// MetricPoint is a container's computed resource usage for one cycle.
// MemoryPercent is nil when the container has no finite memory limit.
type MetricPoint struct {
	CPUPercent       float64  `json:"cpuPercent"`
	MemoryUsedBytes  uint64   `json:"memoryUsedBytes"`
	MemoryLimitBytes uint64   `json:"memoryLimitBytes"`
	MemoryPercent    *float64 `json:"memoryPercent,omitempty"`
}

// Normalize computes a MetricPoint from the current reading and, when
// available, the previous reading of the same container. Without a previous
// reading CPU usage is reported as zero.
func Normalize(prev *RawStatsReading, cur RawStatsReading) MetricPoint {
	used, limit := MemoryUsage(cur.Memory)
	mp := MetricPoint{
		MemoryUsedBytes:  used,
		MemoryLimitBytes: limit,
	}
	if limit > 0 && limit < unlimitedMemory {
		pct := float64(used) / float64(limit) * 100
		mp.MemoryPercent = &pct
	}
	if prev != nil {
		mp.CPUPercent = CPUPercent(*prev, cur)
	}
	return mp
}

// CPUPercent returns the container's share of host CPU between two readings,
// scaled so that one fully busy core is 100. The result is clamped to
// [0, onlineCPUs*100]. Counter resets and a stalled system counter yield 0.
func CPUPercent(prev, cur RawStatsReading) float64 {
	if cur.CPUTicks <= prev.CPUTicks || cur.SystemTicks <= prev.SystemTicks {
		return 0
	}
	cpuDelta := float64(cur.CPUTicks - prev.CPUTicks)
	systemDelta := float64(cur.SystemTicks - prev.SystemTicks)

	cpus := float64(cur.OnlineCPUs)
	if cpus < 1 {
		cpus = 1
	}
	pct := cpuDelta / systemDelta * cpus * 100
	return min(max(pct, 0), cpus*100)
}

// MemoryUsage returns the working-set usage and the limit for a reading.
// Page cache that the kernel can reclaim is excluded where the breakdown
// allows it.
func MemoryUsage(m Memory) (used, limit uint64) {
	switch m := m.(type) {
	case MemoryV1:
		reclaimable := m.Cache
		if m.HasInactiveFile {
			reclaimable = m.TotalInactiveFile
		}
		return subtractIfSmaller(m.Usage, reclaimable), m.Limit
	case MemoryV2:
		return subtractIfSmaller(m.Usage, m.InactiveFile), m.Limit
	case MemoryRaw:
		return m.Usage, m.Limit
	default:
		return 0, 0
	}
}

func subtractIfSmaller(usage, v uint64) uint64 {
	if v < usage {
		return usage - v
	}
	return usage
}
