// Package snapshot holds the immutable view of all containers that the
// aggregator publishes once per cycle.
package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dockmon/internal/engine"
	"dockmon/internal/stats"
)

// ContainerRecord is one container as seen during a cycle.
type ContainerRecord struct {
	ID        string             `json:"id"`
	ShortID   string             `json:"shortId"`
	Name      string             `json:"name"`
	Image     string             `json:"image"`
	State     engine.State       `json:"state"`
	Status    string             `json:"status"`
	Instance  string             `json:"instance"`
	Service   string             `json:"service"`
	Created   time.Time          `json:"created"`
	StartedAt time.Time          `json:"startedAt,omitzero"`
	Uptime    time.Duration      `json:"uptime"`
	Ports     []engine.Port      `json:"ports,omitempty"`
	Metrics   *stats.MetricPoint `json:"metrics,omitempty"`
	Network   *stats.NetworkIO   `json:"network,omitempty"`
}

// Running reports whether the container was running when listed.
func (r ContainerRecord) Running() bool {
	return r.State.Running()
}

// InstanceGroup is the set of containers sharing an instance name.
type InstanceGroup struct {
	Name              string            `json:"name"`
	Containers        []ContainerRecord `json:"containers"`
	TotalContainers   int               `json:"totalContainers"`
	RunningContainers int               `json:"runningContainers"`
	CPUPercent        float64           `json:"cpuPercent"`
	MemoryUsedBytes   uint64            `json:"memoryUsedBytes"`
}

// Snapshot is the result of one cycle. A published Snapshot is never
// modified.
type Snapshot struct {
	Sequence              uint64          `json:"sequence"`
	Timestamp             time.Time       `json:"timestamp"`
	TotalContainers       int             `json:"totalContainers"`
	RunningContainers     int             `json:"runningContainers"`
	Instances             []InstanceGroup `json:"instances"`
	GlobalCPUPercent      *float64        `json:"globalCpuPercent,omitempty"`
	GlobalMemoryUsedBytes *uint64         `json:"globalMemoryUsedBytes,omitempty"`
	CycleDuration         time.Duration   `json:"cycleDuration"`
}

// Instance returns the group with the given name.
func (s *Snapshot) Instance(name string) (InstanceGroup, bool) {
	for _, g := range s.Instances {
		if g.Name == name {
			return g, true
		}
	}
	return InstanceGroup{}, false
}

// MinPrefixLen is the shortest id prefix accepted as a container reference.
const MinPrefixLen = 4

var (
	// ErrNoMatch means no container in the snapshot matches a reference.
	ErrNoMatch = errors.New("no such container")
	// ErrAmbiguousRef means an id prefix matches more than one container.
	ErrAmbiguousRef = errors.New("ambiguous container reference")
)

// Container finds a container by full id, exact name or unique id prefix.
func (s *Snapshot) Container(ref string) (ContainerRecord, bool) {
	c, err := s.Lookup(ref)
	return c, err == nil
}

// Lookup resolves ref trying the full id first, then the exact name, then
// an id prefix of at least MinPrefixLen characters. A prefix shared by
// several containers is rejected with ErrAmbiguousRef.
func (s *Snapshot) Lookup(ref string) (ContainerRecord, error) {
	if ref == "" {
		return ContainerRecord{}, ErrNoMatch
	}

	var (
		named, prefixed ContainerRecord
		hasName         bool
		prefixMatches   int
	)
	for _, g := range s.Instances {
		for _, c := range g.Containers {
			if c.ID == ref {
				return c, nil
			}
			if c.Name == ref && !hasName {
				named, hasName = c, true
			}
			if len(ref) >= MinPrefixLen && strings.HasPrefix(c.ID, ref) {
				prefixed = c
				prefixMatches++
			}
		}
	}

	switch {
	case hasName:
		return named, nil
	case prefixMatches == 1:
		return prefixed, nil
	case prefixMatches > 1:
		return ContainerRecord{}, fmt.Errorf("%w: %q matches %d containers", ErrAmbiguousRef, ref, prefixMatches)
	default:
		return ContainerRecord{}, ErrNoMatch
	}
}

// Store is a single reference cell holding the latest Snapshot. Readers
// never block and always see a complete Snapshot.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// Load returns the latest Snapshot, or nil before the first publish.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Publish replaces the current Snapshot. It reports whether this was the
// first publish.
func (s *Store) Publish(snap *Snapshot) bool {
	assertInvariants(snap)
	return s.current.Swap(snap) == nil
}
