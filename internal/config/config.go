package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix        = "AUTOGUARD"
	HardcodedVersion = "0.3.0"
)

const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Keys shared by defaults, environment variables and CLI flag bindings.
// AUTOGUARD_<KEY> in upper case overrides each of them.
const (
	KeyConfigFile        = "config_file"
	KeyNodeID            = "node_id"
	KeyListenAddr        = "listen_addr"
	KeyGRPCListenAddr    = "grpc_listen_addr"
	KeyProbeListenAddr   = "probe_listen_addr"
	KeyLibvirtURI        = "libvirt_uri"
	KeyMonitorInterval   = "monitor_interval"
	KeyHealthInterval    = "health_interval"
	KeyReconnectInterval = "reconnect_interval"
	KeyReconnectJitter   = "reconnect_max_jitter"
	KeyShutdownTimeout   = "shutdown_timeout"
	KeyStoreBackend      = "store_backend"
	KeyRedisURL          = "redis_url"
	KeySQLitePath        = "sqlite_path"
	KeyAlertCapacity     = "alert_capacity"
	KeyCPUWarning        = "cpu_warning_percent"
	KeyCPUCritical       = "cpu_critical_percent"
	KeyMemoryWarning     = "memory_warning_percent"
	KeyMemoryCritical    = "memory_critical_percent"
	KeyAnsibleBinary     = "ansible_binary"
	KeyAnsibleInventory  = "ansible_inventory"
	KeyAutoHealPlaybook  = "auto_heal_playbook"
	KeyDeployPlaybook    = "deploy_playbook"
	KeyAutoHealTimeout   = "auto_heal_timeout"
	KeyDeployTimeout     = "deploy_timeout"
	KeyAllowedOrigins    = "allowed_origins"
	KeySubscriberBuffer  = "subscriber_buffer"
	KeyWSWriteTimeout    = "ws_write_timeout"
	KeyWSPingInterval    = "ws_ping_interval"
	KeyTLSCertPath       = "tls_cert_path"
	KeyTLSKeyPath        = "tls_key_path"
	KeyLogLevel          = "log_level"
	KeyLogJSON           = "log_json"
	KeyHostDiskPath      = "host_disk_path"
	KeyGRPCTarget        = "grpc_target"
	KeyWatchEvents       = "watch_events"
)

type Config struct {
	NodeID             string
	ListenAddr         string
	GRPCListenAddr     string
	ProbeListenAddr    string
	LibvirtURI         string
	MonitorInterval    time.Duration
	HealthInterval     time.Duration
	ReconnectInterval  time.Duration
	MaxReconnectJitter time.Duration
	ShutdownTimeout    time.Duration
	StoreBackend       string
	RedisURL           string
	SQLitePath         string
	AlertCapacity      int
	CPUWarning         float64
	CPUCritical        float64
	MemoryWarning      float64
	MemoryCritical     float64
	AnsibleBinary      string
	AnsibleInventory   string
	AutoHealPlaybook   string
	DeployPlaybook     string
	AutoHealTimeout    time.Duration
	DeployTimeout      time.Duration
	AllowedOrigins     []string
	SubscriberBuffer   int
	WSWriteTimeout     time.Duration
	WSPingInterval     time.Duration
	TLSCertPath        string
	TLSKeyPath         string
	LogLevel           string
	LogJSON            bool
	HostDiskPath       string
	AgentVersion       string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	v.SetDefault(KeyNodeID, hostname)
	v.SetDefault(KeyListenAddr, "0.0.0.0:5000")
	v.SetDefault(KeyGRPCListenAddr, "0.0.0.0:5001")
	v.SetDefault(KeyProbeListenAddr, "0.0.0.0:7443")
	v.SetDefault(KeyLibvirtURI, "qemu+unix:///system")
	v.SetDefault(KeyMonitorInterval, 30*time.Second)
	v.SetDefault(KeyHealthInterval, 10*time.Second)
	v.SetDefault(KeyReconnectInterval, 4*time.Second)
	v.SetDefault(KeyReconnectJitter, 900*time.Millisecond)
	v.SetDefault(KeyShutdownTimeout, 20*time.Second)
	v.SetDefault(KeyStoreBackend, StoreRedis)
	v.SetDefault(KeyRedisURL, "redis://localhost:6379/0")
	v.SetDefault(KeySQLitePath, "autoguard.db")
	v.SetDefault(KeyAlertCapacity, 100)
	v.SetDefault(KeyCPUWarning, 80.0)
	v.SetDefault(KeyCPUCritical, 90.0)
	v.SetDefault(KeyMemoryWarning, 85.0)
	v.SetDefault(KeyMemoryCritical, 95.0)
	v.SetDefault(KeyAnsibleBinary, "ansible-playbook")
	v.SetDefault(KeyAnsibleInventory, "/app/ansible/inventory.ini")
	v.SetDefault(KeyAutoHealPlaybook, "/app/ansible/auto-heal.yml")
	v.SetDefault(KeyDeployPlaybook, "/app/ansible/deploy.yml")
	v.SetDefault(KeyAutoHealTimeout, 120*time.Second)
	v.SetDefault(KeyDeployTimeout, 300*time.Second)
	v.SetDefault(KeyAllowedOrigins, "localhost:3000")
	v.SetDefault(KeySubscriberBuffer, 64)
	v.SetDefault(KeyWSWriteTimeout, 5*time.Second)
	v.SetDefault(KeyWSPingInterval, 10*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyHostDiskPath, "/")
	v.SetDefault(KeyGRPCTarget, "127.0.0.1:5001")
}

// NewViper returns a viper instance with defaults and AUTOGUARD_* env lookup.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// REDIS_URL is honoured for compatibility with existing deployments.
	_ = v.BindEnv(KeyRedisURL, EnvPrefix+"_REDIS_URL", "REDIS_URL")
	return v
}

// Load reads an optional config file, then builds and validates the config.
// Pass nil to use NewViper.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		NodeID:             v.GetString(KeyNodeID),
		ListenAddr:         v.GetString(KeyListenAddr),
		GRPCListenAddr:     v.GetString(KeyGRPCListenAddr),
		ProbeListenAddr:    v.GetString(KeyProbeListenAddr),
		LibvirtURI:         v.GetString(KeyLibvirtURI),
		MonitorInterval:    v.GetDuration(KeyMonitorInterval),
		HealthInterval:     v.GetDuration(KeyHealthInterval),
		ReconnectInterval:  v.GetDuration(KeyReconnectInterval),
		MaxReconnectJitter: v.GetDuration(KeyReconnectJitter),
		ShutdownTimeout:    v.GetDuration(KeyShutdownTimeout),
		StoreBackend:       strings.ToLower(v.GetString(KeyStoreBackend)),
		RedisURL:           v.GetString(KeyRedisURL),
		SQLitePath:         v.GetString(KeySQLitePath),
		AlertCapacity:      v.GetInt(KeyAlertCapacity),
		CPUWarning:         v.GetFloat64(KeyCPUWarning),
		CPUCritical:        v.GetFloat64(KeyCPUCritical),
		MemoryWarning:      v.GetFloat64(KeyMemoryWarning),
		MemoryCritical:     v.GetFloat64(KeyMemoryCritical),
		AnsibleBinary:      v.GetString(KeyAnsibleBinary),
		AnsibleInventory:   v.GetString(KeyAnsibleInventory),
		AutoHealPlaybook:   v.GetString(KeyAutoHealPlaybook),
		DeployPlaybook:     v.GetString(KeyDeployPlaybook),
		AutoHealTimeout:    v.GetDuration(KeyAutoHealTimeout),
		DeployTimeout:      v.GetDuration(KeyDeployTimeout),
		AllowedOrigins:     splitList(v.GetString(KeyAllowedOrigins)),
		SubscriberBuffer:   v.GetInt(KeySubscriberBuffer),
		WSWriteTimeout:     v.GetDuration(KeyWSWriteTimeout),
		WSPingInterval:     v.GetDuration(KeyWSPingInterval),
		TLSCertPath:        v.GetString(KeyTLSCertPath),
		TLSKeyPath:         v.GetString(KeyTLSKeyPath),
		LogLevel:           strings.ToLower(v.GetString(KeyLogLevel)),
		LogJSON:            v.GetBool(KeyLogJSON),
		HostDiskPath:       v.GetString(KeyHostDiskPath),
		AgentVersion:       HardcodedVersion,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return errors.New("AUTOGUARD_NODE_ID is required")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("AUTOGUARD_LISTEN_ADDR is required")
	}
	if strings.TrimSpace(c.GRPCListenAddr) == "" {
		return errors.New("AUTOGUARD_GRPC_LISTEN_ADDR is required")
	}
	if c.LibvirtURI == "" {
		return errors.New("AUTOGUARD_LIBVIRT_URI is required")
	}
	if c.MonitorInterval <= 0 {
		return errors.New("AUTOGUARD_MONITOR_INTERVAL must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("AUTOGUARD_HEALTH_INTERVAL must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("AUTOGUARD_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.AutoHealTimeout <= 0 || c.DeployTimeout <= 0 {
		return errors.New("automation timeouts must be > 0")
	}
	if c.AlertCapacity <= 0 {
		return errors.New("AUTOGUARD_ALERT_CAPACITY must be > 0")
	}
	if c.CPUCritical < c.CPUWarning {
		return errors.New("cpu critical threshold must not be below the warning threshold")
	}
	if c.MemoryCritical < c.MemoryWarning {
		return errors.New("memory critical threshold must not be below the warning threshold")
	}
	switch c.StoreBackend {
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("AUTOGUARD_REDIS_URL is required for the redis store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("AUTOGUARD_SQLITE_PATH is required for the sqlite store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported store backend %q", c.StoreBackend)
	}
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return errors.New("both TLS cert and key are required")
	}
	return nil
}

// TLSConfig returns nil when no certificate is configured.
func (c Config) TLSConfig() (*tls.Config, error) {
	if c.TLSCertPath == "" {
		return nil, nil
	}
	crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, Certificates: []tls.Certificate{crt}}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
