//go:build debug

package snapshot

import "fmt"

// assertInvariants panics when a Snapshot about to be published is not
// internally consistent. Only active in debug builds.
func assertInvariants(s *Snapshot) {
	if s == nil {
		panic("assertion failed: publishing nil snapshot")
	}
	total, running := 0, 0
	for _, g := range s.Instances {
		if len(g.Containers) == 0 {
			panic(fmt.Sprintf("assertion failed: instance %q has no containers", g.Name))
		}
		total += len(g.Containers)
		running += g.RunningContainers
	}
	if total != s.TotalContainers {
		panic(fmt.Sprintf("assertion failed: instances hold %d containers, snapshot reports %d", total, s.TotalContainers))
	}
	if running != s.RunningContainers {
		panic(fmt.Sprintf("assertion failed: instances hold %d running containers, snapshot reports %d", running, s.RunningContainers))
	}
}
