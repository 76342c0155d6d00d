package version

import (
	"time"

	"autoguard/internal/config"
)

// Get describes the running backend. The request is accepted for symmetry
// with remote callers and may be nil.
func Get(cfg config.Config, _ *GetVersionRequest) *GetVersionResponse {
	return &GetVersionResponse{
		NodeID:          cfg.NodeID,
		Version:         cfg.AgentVersion,
		ListenAddr:      cfg.ListenAddr,
		GRPCListenAddr:  cfg.GRPCListenAddr,
		ProbeListenAddr: cfg.ProbeListenAddr,
		StoreBackend:    cfg.StoreBackend,
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
