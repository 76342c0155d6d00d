package alerting

import (
	"fmt"

	"autoguard/internal/model"
)

// Thresholds are strict lower bounds: a reading must exceed them to fire.
type Thresholds struct {
	CPUWarning     float64
	CPUCritical    float64
	MemoryWarning  float64
	MemoryCritical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:     80,
		CPUCritical:    90,
		MemoryWarning:  85,
		MemoryCritical: 95,
	}
}

// Evaluator turns readings into alert drafts. It keeps no state, so a unit
// that stays above a threshold produces a draft on every cycle.
type Evaluator struct {
	th Thresholds
}

func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

func (e *Evaluator) Evaluate(r model.UtilizationReading) []model.AlertDraft {
	var drafts []model.AlertDraft
	source := r.Source()
	if r.CPUPercent > e.th.CPUWarning {
		drafts = append(drafts, model.AlertDraft{
			Severity: severity(r.CPUPercent, e.th.CPUCritical),
			Type:     model.AlertTypeCPUHigh,
			Message:  fmt.Sprintf("High CPU usage on %s: %.1f%%", source, r.CPUPercent),
			Source:   source,
		})
	}
	if r.MemoryPercent > e.th.MemoryWarning {
		drafts = append(drafts, model.AlertDraft{
			Severity: severity(r.MemoryPercent, e.th.MemoryCritical),
			Type:     model.AlertTypeMemoryHigh,
			Message:  fmt.Sprintf("High memory usage on %s: %.1f%%", source, r.MemoryPercent),
			Source:   source,
		})
	}
	return drafts
}

func severity(value, critical float64) model.Severity {
	if value > critical {
		return model.SeverityCritical
	}
	return model.SeverityWarning
}
