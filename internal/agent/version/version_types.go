package version

type GetVersionRequest struct {
	NodeID string `json:"node_id"`
}

type GetVersionResponse struct {
	NodeID          string `json:"node_id"`
	Version         string `json:"version"`
	ListenAddr      string `json:"listen_addr"`
	GRPCListenAddr  string `json:"grpc_listen_addr"`
	ProbeListenAddr string `json:"probe_listen_addr"`
	StoreBackend    string `json:"store_backend"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}
