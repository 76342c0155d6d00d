package system

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// HostSummary describes the machine the backend runs on, next to the unit
// metrics of the dashboard.
type HostSummary struct {
	Hostname      string    `json:"hostname"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	CPUUsage      float64   `json:"cpu_usage"`
	MemoryUsage   float64   `json:"memory_usage"`
	DiskUsage     float64   `json:"disk_usage"`
	NetworkRx     uint64    `json:"network_rx"`
	NetworkTx     uint64    `json:"network_tx"`
	Timestamp     time.Time `json:"timestamp"`
}

// Reader samples host usage. CPU usage is measured since the previous call,
// so the first reading covers the time since boot.
type Reader struct {
	diskPath string
}

func NewReader(diskPath string) *Reader {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Reader{diskPath: diskPath}
}

func (r *Reader) Read(ctx context.Context) (HostSummary, error) {
	out := HostSummary{Timestamp: time.Now().UTC()}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostSummary{}, fmt.Errorf("host info: %w", err)
	}
	out.Hostname = info.Hostname
	out.UptimeSeconds = info.Uptime

	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return HostSummary{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(pct) > 0 {
		out.CPUUsage = round1(pct[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostSummary{}, fmt.Errorf("virtual memory: %w", err)
	}
	out.MemoryUsage = round1(vm.UsedPercent)

	du, err := disk.UsageWithContext(ctx, r.diskPath)
	if err != nil {
		return HostSummary{}, fmt.Errorf("disk usage %s: %w", r.diskPath, err)
	}
	out.DiskUsage = round1(du.UsedPercent)

	// interface counters are optional in containers
	if counters, netErr := net.IOCountersWithContext(ctx, false); netErr == nil && len(counters) > 0 {
		out.NetworkRx = counters[0].BytesRecv
		out.NetworkTx = counters[0].BytesSent
	}
	return out, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
