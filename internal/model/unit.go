package model

// Unit is a monitored runtime entity as reported by the runtime collaborator.
type Unit struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	UUID    string `json:"uuid,omitempty"`
	State   string `json:"status"`
	Running bool   `json:"running"`
}

type UnitFilter struct {
	RunningOnly bool
}

// Server is the /api/servers view of a unit with its latest reading, if any.
type Server struct {
	Unit
	CPUUsage    *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage *float64 `json:"memory_usage,omitempty"`
	MemoryLimit uint64   `json:"memory_limit,omitempty"`
	NetworkRx   uint64   `json:"network_rx,omitempty"`
	NetworkTx   uint64   `json:"network_tx,omitempty"`
}
