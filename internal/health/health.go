// Package health folds host-level telemetry (CPU, memory) into the
// daemon's status surface alongside device telemetry.
package health

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a point-in-time snapshot of host resource usage.
type HostStats struct {
	CPUPercent float64
	MemUsedPct float64
}

// Snapshot reads current CPU and memory utilization. Errors from either
// gopsutil call are swallowed into a zero value for that field: the
// status endpoint should degrade, not fail, if host telemetry is
// unavailable (e.g. inside a restricted container).
func Snapshot() HostStats {
	var stats HostStats

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemUsedPct = vm.UsedPercent
	}
	return stats
}
