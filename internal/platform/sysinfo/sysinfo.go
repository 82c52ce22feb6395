// Package sysinfo reports host and process resources for startup logs and the
// health endpoint.
package sysinfo

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"vietscribe-go/internal/platform/logging"
)

// Snapshot is a point-in-time view of the machine running the pipeline.
type Snapshot struct {
	Hostname       string  `json:"hostname,omitempty"`
	Platform       string  `json:"platform,omitempty"`
	CPUModel       string  `json:"cpu_model,omitempty"`
	LogicalCPUs    int     `json:"logical_cpus"`
	MemTotalMB     uint64  `json:"mem_total_mb"`
	MemAvailableMB uint64  `json:"mem_available_mb"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	ProcessRSSMB   uint64  `json:"process_rss_mb"`
	Goroutines     int     `json:"goroutines"`
}

const mb = 1024 * 1024

// Collect gathers what the host exposes. Probes that fail leave their fields
// zero; only a context error is returned.
func Collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		LogicalCPUs: runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
	}
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.Platform = info.Platform + " " + info.PlatformVersion
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		snap.CPUModel = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemTotalMB = vm.Total / mb
		snap.MemAvailableMB = vm.Available / mb
		snap.MemUsedPercent = vm.UsedPercent
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfoWithContext(ctx); err == nil && rss != nil {
			snap.ProcessRSSMB = rss.RSS / mb
		}
	}
	return snap, ctx.Err()
}

// Log writes one summary line for snap.
func Log(logger *logging.Logger, snap Snapshot) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "host %s (%s), %d cpu %s, memory %d/%d MB available, rss %d MB",
		snap.Hostname, snap.Platform, snap.LogicalCPUs, snap.CPUModel,
		snap.MemAvailableMB, snap.MemTotalMB, snap.ProcessRSSMB)
}
