// Package grouping assigns containers to instances by label.
package grouping

import (
	"cmp"
	"slices"
	"strings"

	"dockmon/internal/snapshot"
)

const (
	// DefaultLabel is the compose project label set by `docker compose`.
	DefaultLabel = "com.docker.compose.project"
	// ServiceLabel names the compose service a container belongs to.
	ServiceLabel = "com.docker.compose.service"
	// Ungrouped is the instance for containers without a grouping label.
	Ungrouped = "ungrouped"
)

// Grouper derives instance names from container labels.
type Grouper struct {
	label string
}

// New returns a Grouper keyed on label, or DefaultLabel when label is blank.
func New(label string) Grouper {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultLabel
	}
	return Grouper{label: label}
}

// Label returns the label key the Grouper reads.
func (g Grouper) Label() string {
	if g.label == "" {
		return DefaultLabel
	}
	return g.label
}

// GroupName returns the value of the grouping label, unmodified, or
// Ungrouped when the label is missing or blank.
func (g Grouper) GroupName(labels map[string]string) string {
	v, ok := labels[g.Label()]
	if !ok || strings.TrimSpace(v) == "" {
		return Ungrouped
	}
	return v
}

// ServiceName returns the compose service label, falling back to the
// container name.
func ServiceName(labels map[string]string, name string) string {
	if v := strings.TrimSpace(labels[ServiceLabel]); v != "" {
		return v
	}
	return name
}

// Partition groups records by their Instance field and computes per-group
// rollups. Groups are sorted by name with Ungrouped last; containers within
// a group are sorted by name. Every record lands in exactly one group.
func Partition(records []snapshot.ContainerRecord) []snapshot.InstanceGroup {
	index := make(map[string]int)
	var groups []snapshot.InstanceGroup
	for _, rec := range records {
		name := rec.Instance
		if name == "" {
			name = Ungrouped
			rec.Instance = Ungrouped
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, snapshot.InstanceGroup{Name: name})
		}
		g := &groups[i]
		g.Containers = append(g.Containers, rec)
		g.TotalContainers++
		if rec.Running() {
			g.RunningContainers++
		}
		if rec.Metrics != nil {
			g.CPUPercent += rec.Metrics.CPUPercent
			g.MemoryUsedBytes += rec.Metrics.MemoryUsedBytes
		}
	}

	for i := range groups {
		slices.SortFunc(groups[i].Containers, func(a, b snapshot.ContainerRecord) int {
			return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
		})
	}
	slices.SortFunc(groups, func(a, b snapshot.InstanceGroup) int {
		switch {
		case a.Name == b.Name:
			return 0
		case a.Name == Ungrouped:
			return 1
		case b.Name == Ungrouped:
			return -1
		default:
			return cmp.Compare(a.Name, b.Name)
		}
	})
	return groups
}
