package model

import "time"

// Snapshot holds the raw cumulative counters of one unit at one tick.
type Snapshot struct {
	UnitID        string
	UnitName      string
	CPUCounter    uint64
	SystemCounter uint64
	Cores         uint32
	MemoryUsage   uint64
	MemoryLimit   uint64
	NetRxBytes    uint64
	NetTxBytes    uint64
	TakenAt       time.Time
}

type UtilizationReading struct {
	UnitID           string    `json:"unit_id"`
	UnitName         string    `json:"unit_name"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryPercent    float64   `json:"memory_percent"`
	MemoryUsageBytes uint64    `json:"memory_usage_bytes"`
	MemoryLimitBytes uint64    `json:"memory_limit_bytes"`
	NetRxDelta       uint64    `json:"network_rx_delta"`
	NetTxDelta       uint64    `json:"network_tx_delta"`
	TakenAt          time.Time `json:"timestamp"`
}

// Source is the label alerts and gauges use for the unit.
func (r UtilizationReading) Source() string {
	if r.UnitName != "" {
		return r.UnitName
	}
	return r.UnitID
}
