package model

import "time"

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	AlertTypeCPUHigh    = "cpu_high"
	AlertTypeMemoryHigh = "memory_high"
)

// AlertDraft is an alert decision that has no identity yet.
type AlertDraft struct {
	Severity Severity `json:"severity"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Source   string   `json:"source"`
}

type Alert struct {
	ID         int64      `json:"id"`
	Severity   Severity   `json:"severity"`
	Type       string     `json:"type"`
	Message    string     `json:"message"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	AutoHealed bool       `json:"auto_healed"`
}
