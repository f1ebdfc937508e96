package server

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// collectSystemMetrics collects host metrics using gopsutil. Individual
// probe failures degrade to zero values rather than failing the endpoint.
func collectSystemMetrics(ctx context.Context) map[string]interface{} {
	metrics := make(map[string]interface{})

	// CPU usage
	metrics["cpu"] = 0.0
	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		metrics["cpu"] = cpuPercent[0]
	}

	// Memory usage
	metrics["memory"] = 0.0
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		metrics["memory"] = memInfo.UsedPercent
	}

	// Disk usage
	metrics["disk"] = 0.0
	if diskInfo, err := disk.UsageWithContext(ctx, "/"); err == nil {
		metrics["disk"] = diskInfo.UsedPercent
	}

	// Network I/O
	network := map[string]interface{}{"in": uint64(0), "out": uint64(0)}
	if netInfo, err := net.IOCountersWithContext(ctx, false); err == nil && len(netInfo) > 0 {
		network["in"] = netInfo[0].BytesRecv
		network["out"] = netInfo[0].BytesSent
	}
	metrics["network"] = network

	// Process count
	metrics["processes"] = 0
	if processes, err := process.ProcessesWithContext(ctx); err == nil {
		metrics["processes"] = len(processes)
	}

	metrics["timestamp"] = time.Now()
	return metrics
}
