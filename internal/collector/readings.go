package collector

import (
	"math"
	"sync"
	"time"

	"autoguard/internal/model"
)

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// Readings keeps the latest reading per unit for request handlers. It is
// written once per cycle by the scheduler.
type Readings struct {
	mu       sync.RWMutex
	byUnit   map[string]model.UtilizationReading
	summary  model.MetricsSummary
	cycleAt  time.Time
	hasCycle bool
}

func NewReadings() *Readings {
	return &Readings{byUnit: map[string]model.UtilizationReading{}}
}

func (r *Readings) Get(unitID string) (model.UtilizationReading, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byUnit[unitID]
	return v, ok
}

func (r *Readings) All() []model.UtilizationReading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.UtilizationReading, 0, len(r.byUnit))
	for _, v := range r.byUnit {
		out = append(out, v)
	}
	return out
}

// Summary returns the summary published by the last completed cycle.
func (r *Readings) Summary() (model.MetricsSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary, r.hasCycle
}

func (r *Readings) LastCycle() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cycleAt
}

func (r *Readings) replace(readings []model.UtilizationReading, summary model.MetricsSummary) {
	next := make(map[string]model.UtilizationReading, len(readings))
	for _, v := range readings {
		next[v.UnitID] = v
	}
	r.mu.Lock()
	r.byUnit = next
	r.summary = summary
	r.cycleAt = summary.Timestamp
	r.hasCycle = true
	r.mu.Unlock()
}

// Summarize builds the dashboard summary. Averages cover units that produced
// a reading; counts cover every listed unit.
func Summarize(units []model.Unit, readings []model.UtilizationReading, at time.Time) model.MetricsSummary {
	online := 0
	for _, u := range units {
		if u.Running {
			online++
		}
	}
	s := model.MetricsSummary{
		TotalServers:  len(units),
		OnlineServers: online,
		SystemHealth:  HealthDegraded,
		Timestamp:     at,
	}
	if online > 0 {
		s.SystemHealth = HealthHealthy
	}
	if len(readings) == 0 {
		return s
	}
	var cpu, mem float64
	for _, r := range readings {
		cpu += r.CPUPercent
		mem += r.MemoryPercent
	}
	n := float64(len(readings))
	s.AvgCPUUsage = round2(cpu / n)
	s.AvgMemoryUsage = round2(mem / n)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
