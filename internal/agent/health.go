package agent

import (
	"sync/atomic"
	"time"

	"autoguard/internal/model"
)

type HealthStatus struct {
	libvirtConnected atomic.Bool
	storeConnected   atomic.Bool
	lastCycleAt      atomic.Int64
	lastAlertAt      atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{}
}

func (h *HealthStatus) SetLibvirtConnected(ok bool) {
	h.libvirtConnected.Store(ok)
}

func (h *HealthStatus) SetStoreConnected(ok bool) {
	h.storeConnected.Store(ok)
}

func (h *HealthStatus) MarkCycle(ts time.Time) {
	h.lastCycleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) MarkAlert(ts time.Time) {
	h.lastAlertAt.Store(ts.UnixNano())
}

// ObserveReadings marks a completed monitor cycle.
func (h *HealthStatus) ObserveReadings([]model.UtilizationReading) {
	h.MarkCycle(time.Now())
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"libvirt_connected": h.libvirtConnected.Load(),
		"store_connected":   h.storeConnected.Load(),
	}
	if v := h.lastCycleAt.Load(); v > 0 {
		out["last_cycle_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastAlertAt.Load(); v > 0 {
		out["last_alert_at"] = time.Unix(0, v).UTC()
	}
	return out
}
