// Package stats turns raw engine resource readings into CPU and memory
// percentages, independent of the host's cgroup version.
package stats

import "time"

// unlimitedMemory is the threshold above which a reported memory limit is
// treated as "no limit". cgroup v1 reports PAGE_COUNTER_MAX (~2^63) for
// unconstrained containers.
const unlimitedMemory = uint64(1) << 62

// RawStatsReading is one point-in-time resource reading for a container.
type RawStatsReading struct {
	Read time.Time
	// CPUTicks is the container's cumulative CPU time in nanoseconds.
	CPUTicks uint64
	// SystemTicks is the host-wide cumulative CPU time. It advances
	// independently of the container.
	SystemTicks uint64
	OnlineCPUs  uint32
	Memory      Memory
	Network     NetworkIO
}

// NetworkIO is the sum of received and transmitted bytes over all of a
// container's interfaces.
type NetworkIO struct {
	RxBytes uint64 `json:"rxBytes"`
	TxBytes uint64 `json:"txBytes"`
}

// Memory is a memory reading in one of the cgroup reporting schemes.
// Implementations: MemoryV1, MemoryV2, MemoryRaw.
type Memory interface {
	isMemory()
}

// MemoryV1 is a cgroup v1 reading. Usage includes the page cache.
type MemoryV1 struct {
	Usage             uint64
	Limit             uint64
	TotalInactiveFile uint64
	// Cache is only consulted when total_inactive_file is missing.
	Cache           uint64
	HasInactiveFile bool
}

// MemoryV2 is a cgroup v2 reading.
type MemoryV2 struct {
	Usage        uint64
	Limit        uint64
	InactiveFile uint64
}

// MemoryRaw carries usage without a breakdown (stopped containers, Windows
// hosts, very old engines).
type MemoryRaw struct {
	Usage uint64
	Limit uint64
}

func (MemoryV1) isMemory()  {}
func (MemoryV2) isMemory()  {}
func (MemoryRaw) isMemory() {}

// DetectMemory picks the variant matching the keys present in the engine's
// memory breakdown. The v1 keys are checked first because v1 breakdowns
// also carry a plain "inactive_file" entry for the container's own cgroup.
func DetectMemory(usage, limit uint64, breakdown map[string]uint64) Memory {
	if v, ok := breakdown["total_inactive_file"]; ok {
		return MemoryV1{Usage: usage, Limit: limit, TotalInactiveFile: v, HasInactiveFile: true, Cache: breakdown["cache"]}
	}
	if v, ok := breakdown["cache"]; ok {
		return MemoryV1{Usage: usage, Limit: limit, Cache: v}
	}
	if v, ok := breakdown["inactive_file"]; ok {
		return MemoryV2{Usage: usage, Limit: limit, InactiveFile: v}
	}
	return MemoryRaw{Usage: usage, Limit: limit}
}
