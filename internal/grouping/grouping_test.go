package grouping

import (
	"testing"

	"dockmon/internal/engine"
	"dockmon/internal/snapshot"
	"dockmon/internal/stats"
)

func TestGroupName(t *testing.T) {
	g := New("")

	tests := []struct {
		name   string
		labels map[string]string
		want   string
	}{
		{name: "nil labels", labels: nil, want: Ungrouped},
		{name: "missing label", labels: map[string]string{"other": "x"}, want: Ungrouped},
		{name: "empty value", labels: map[string]string{DefaultLabel: ""}, want: Ungrouped},
		{name: "blank value", labels: map[string]string{DefaultLabel: "  "}, want: Ungrouped},
		{name: "value returned unmodified", labels: map[string]string{DefaultLabel: "Shop_Prod "}, want: "Shop_Prod "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.GroupName(tt.labels); got != tt.want {
				t.Fatalf("GroupName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupNameCustomLabel(t *testing.T) {
	g := New("acme.stack")
	labels := map[string]string{"acme.stack": "billing", DefaultLabel: "ignored"}
	if got := g.GroupName(labels); got != "billing" {
		t.Fatalf("GroupName() = %q, want billing", got)
	}
	if g.Label() != "acme.stack" {
		t.Fatalf("Label() = %q", g.Label())
	}
}

func TestServiceName(t *testing.T) {
	if got := ServiceName(map[string]string{ServiceLabel: "web"}, "shop-web-1"); got != "web" {
		t.Fatalf("ServiceName() = %q, want web", got)
	}
	if got := ServiceName(nil, "scratch"); got != "scratch" {
		t.Fatalf("ServiceName() = %q, want scratch", got)
	}
}

func TestPartition(t *testing.T) {
	records := []snapshot.ContainerRecord{
		{ID: "4", Name: "loose", Instance: Ungrouped, State: engine.StateExited},
		{ID: "2", Name: "shop-web", Instance: "shop", State: engine.StateRunning, Metrics: &stats.MetricPoint{CPUPercent: 12.5, MemoryUsedBytes: 100}},
		{ID: "1", Name: "shop-db", Instance: "shop", State: engine.StateRunning, Metrics: &stats.MetricPoint{CPUPercent: 2.5, MemoryUsedBytes: 300}},
		{ID: "3", Name: "blog-app", Instance: "blog", State: engine.StatePaused},
		{ID: "5", Name: "nameless", Instance: ""},
	}

	groups := Partition(records)

	wantNames := []string{"blog", "shop", Ungrouped}
	if len(groups) != len(wantNames) {
		t.Fatalf("Partition() returned %d groups, want %d", len(groups), len(wantNames))
	}
	total := 0
	for i, g := range groups {
		if g.Name != wantNames[i] {
			t.Fatalf("group %d = %q, want %q", i, g.Name, wantNames[i])
		}
		total += len(g.Containers)
		if g.TotalContainers != len(g.Containers) {
			t.Fatalf("group %q TotalContainers = %d, want %d", g.Name, g.TotalContainers, len(g.Containers))
		}
	}
	if total != len(records) {
		t.Fatalf("partition holds %d containers, want %d", total, len(records))
	}

	shop := groups[1]
	if shop.Containers[0].Name != "shop-db" {
		t.Fatalf("containers not sorted by name: %q first", shop.Containers[0].Name)
	}
	if shop.RunningContainers != 2 || shop.CPUPercent != 15 || shop.MemoryUsedBytes != 400 {
		t.Fatalf("shop rollup = %+v", shop)
	}
	if groups[2].TotalContainers != 2 {
		t.Fatalf("ungrouped holds %d containers, want 2", groups[2].TotalContainers)
	}
}

func TestPartitionEmpty(t *testing.T) {
	if groups := Partition(nil); len(groups) != 0 {
		t.Fatalf("Partition(nil) = %v, want empty", groups)
	}
}
