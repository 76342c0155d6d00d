package model

import "time"

type EventName string

const (
	EventMetricsUpdate      EventName = "metrics_update"
	EventNewAlert           EventName = "new_alert"
	EventAlertResolved      EventName = "alert_resolved"
	EventAutoHealComplete   EventName = "auto_heal_complete"
	EventDeploymentComplete EventName = "deployment_complete"
	EventServerAction       EventName = "server_action"
	EventConnected          EventName = "connected"
)

// Envelope is transport-agnostic framing for published events.
type Envelope struct {
	ID        string    `json:"id"`
	Event     EventName `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type MetricsSummary struct {
	TotalServers   int       `json:"total_servers"`
	OnlineServers  int       `json:"online_servers"`
	AvgCPUUsage    float64   `json:"avg_cpu_usage"`
	AvgMemoryUsage float64   `json:"avg_memory_usage"`
	SystemHealth   string    `json:"system_health"`
	Timestamp      time.Time `json:"timestamp"`
}

type AlertResolved struct {
	AlertID    int64     `json:"alert_id"`
	AutoHealed bool      `json:"auto_healed"`
	Timestamp  time.Time `json:"timestamp"`
}

type AutoHealResult struct {
	AlertID int64  `json:"alert_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type DeploymentResult struct {
	DeploymentID string    `json:"deployment_id"`
	Status       string    `json:"status"`
	Output       string    `json:"output,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type ServerAction struct {
	ServerID  string    `json:"server_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type Connected struct {
	Message string `json:"message"`
}
