package statuscmd

import (
	"strconv"
	"strings"
	"time"

	"dockmon/cmd/dockmon/ui"
	"dockmon/internal/snapshot"
)

func renderOverview(snap *snapshot.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(ui.KeyValues("",
		ui.KV("Containers", ui.Ratio(snap.RunningContainers, snap.TotalContainers)+" running"),
		ui.KV("CPU", ui.PercentPtr(snap.GlobalCPUPercent)),
		ui.KV("Memory", globalMemory(snap)),
		ui.KV("Updated", snap.Timestamp.Local().Format(time.TimeOnly)+ui.Muted(" #"+strconv.FormatUint(snap.Sequence, 10))),
	))
	if len(snap.Instances) == 0 {
		sb.WriteString("\n" + ui.InfoMsg("No containers."))
		return sb.String()
	}

	rows := make([][]string, 0, len(snap.Instances))
	for _, g := range snap.Instances {
		rows = append(rows, []string{
			g.Name,
			ui.Ratio(g.RunningContainers, g.TotalContainers),
			ui.Percent(g.CPUPercent),
			ui.Bytes(g.MemoryUsedBytes),
		})
	}
	sb.WriteString("\n" + ui.Table([]string{"INSTANCE", "RUNNING", "CPU", "MEMORY"}, rows))
	return sb.String()
}

func renderInstance(g snapshot.InstanceGroup) string {
	var sb strings.Builder
	sb.WriteString(ui.KeyValues("",
		ui.KV("Instance", ui.Accent(g.Name)),
		ui.KV("Containers", ui.Ratio(g.RunningContainers, g.TotalContainers)+" running"),
		ui.KV("CPU", ui.Percent(g.CPUPercent)),
		ui.KV("Memory", ui.Bytes(g.MemoryUsedBytes)),
	))

	rows := make([][]string, 0, len(g.Containers))
	for _, c := range g.Containers {
		cpu, mem, memPct := ui.Muted("-"), ui.Muted("-"), ui.Muted("-")
		if m := c.Metrics; m != nil {
			cpu = ui.Percent(m.CPUPercent)
			mem = ui.Bytes(m.MemoryUsedBytes)
			memPct = ui.PercentPtr(m.MemoryPercent)
		}
		ports := make([]string, 0, len(c.Ports))
		for _, p := range c.Ports {
			ports = append(ports, p.String())
		}
		rows = append(rows, []string{
			c.Name,
			c.Service,
			ui.State(c.State),
			ui.Duration(c.Uptime),
			cpu,
			mem,
			memPct,
			strings.Join(ports, ", "),
			ui.Muted(c.ShortID),
		})
	}
	sb.WriteString("\n" + ui.Table(
		[]string{"NAME", "SERVICE", "STATE", "UPTIME", "CPU", "MEM", "MEM %", "PORTS", "ID"},
		rows,
	))
	return sb.String()
}

func globalMemory(snap *snapshot.Snapshot) string {
	if snap.GlobalMemoryUsedBytes == nil {
		return ui.Muted("-")
	}
	return ui.Bytes(*snap.GlobalMemoryUsedBytes)
}
