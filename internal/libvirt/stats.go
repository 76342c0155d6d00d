package libvirt

import (
	"fmt"
	"strings"

	golibvirt "github.com/digitalocean/go-libvirt"
)

// Typed-parameter names reported by virConnectGetAllDomainStats.
const (
	fieldState          = "state.state"
	fieldCPUTime        = "cpu.time"
	fieldBalloonRSS     = "balloon.rss"
	fieldBalloonCurrent = "balloon.current"
	fieldBalloonMaximum = "balloon.maximum"
	suffixNetRxBytes    = ".rx.bytes"
	suffixNetTxBytes    = ".tx.bytes"
	prefixNet           = "net."
)

const domainStateRunning = 1

const statsMask = uint32(golibvirt.DomainStatsState |
	golibvirt.DomainStatsCPUTotal |
	golibvirt.DomainStatsBalloon |
	golibvirt.DomainStatsInterface)

// domainStats is the subset of one stats record the sampler needs. Memory is
// in bytes, CPU time in nanoseconds.
type domainStats struct {
	state      uint64
	cpuTime    uint64
	memUsed    uint64
	memLimit   uint64
	netRxBytes uint64
	netTxBytes uint64
}

func (d domainStats) running() bool {
	return d.state == domainStateRunning
}

func parseDomainStats(params []golibvirt.TypedParam) domainStats {
	fields := make(map[string]uint64, len(params))
	for _, p := range params {
		fields[p.Field] = asUint64(p.Value.I)
	}

	var out domainStats
	out.state = fields[fieldState]
	out.cpuTime = fields[fieldCPUTime]

	used := fields[fieldBalloonRSS]
	if used == 0 {
		used = fields[fieldBalloonCurrent]
	}
	out.memUsed = used * 1024
	out.memLimit = fields[fieldBalloonMaximum] * 1024

	for k, v := range fields {
		if !strings.HasPrefix(k, prefixNet) {
			continue
		}
		switch {
		case strings.HasSuffix(k, suffixNetRxBytes):
			out.netRxBytes += v
		case strings.HasSuffix(k, suffixNetTxBytes):
			out.netTxBytes += v
		}
	}
	return out
}

func asUint64(v any) uint64 {
	switch t := v.(type) {
	case uint64:
		return t
	case uint32:
		return uint64(t)
	case int64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case int32:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case int:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case float64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	default:
		return 0
	}
}

func stateName(v uint64) string {
	switch v {
	case 0:
		return "nostate"
	case 1:
		return "running"
	case 2:
		return "blocked"
	case 3:
		return "paused"
	case 4:
		return "shutdown"
	case 5:
		return "exited"
	case 6:
		return "crashed"
	case 7:
		return "pmsuspended"
	default:
		return "unknown"
	}
}

func uuidString(u golibvirt.UUID) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

// sumCPUStats adds every field of an all-CPU NodeGetCPUStats reply, giving a
// monotonic host-wide CPU counter in nanoseconds.
func sumCPUStats(stats []golibvirt.NodeGetCPUStats) uint64 {
	var total uint64
	for _, st := range stats {
		if strings.EqualFold(st.Field, "utilization") {
			continue
		}
		total += st.Value
	}
	return total
}
