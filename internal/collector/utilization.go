package collector

import "autoguard/internal/model"

// Compute derives a utilization reading from two consecutive snapshots of the
// same unit. It never returns negative values.
func Compute(prev, cur model.Snapshot) model.UtilizationReading {
	return model.UtilizationReading{
		UnitID:           cur.UnitID,
		UnitName:         cur.UnitName,
		CPUPercent:       cpuPercent(prev, cur),
		MemoryPercent:    percentOf(cur.MemoryUsage, cur.MemoryLimit),
		MemoryUsageBytes: cur.MemoryUsage,
		MemoryLimitBytes: cur.MemoryLimit,
		NetRxDelta:       deltaCounter(cur.NetRxBytes, prev.NetRxBytes),
		NetTxDelta:       deltaCounter(cur.NetTxBytes, prev.NetTxBytes),
		TakenAt:          cur.TakenAt,
	}
}

// cpuPercent may exceed 100 on oversubscribed hosts; it is not clamped upward.
func cpuPercent(prev, cur model.Snapshot) float64 {
	if cur.SystemCounter <= prev.SystemCounter {
		return 0
	}
	if cur.CPUCounter < prev.CPUCounter {
		// counter reset
		return 0
	}
	cores := cur.Cores
	if cores == 0 {
		cores = 1
	}
	systemDelta := float64(cur.SystemCounter - prev.SystemCounter)
	cpuDelta := float64(cur.CPUCounter - prev.CPUCounter)
	return (cpuDelta / systemDelta) * float64(cores) * 100
}

func deltaCounter(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

func percentOf(value, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return (float64(value) / float64(total)) * 100
}
