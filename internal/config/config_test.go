package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.ListenAddr)
	assert.Equal(t, "0.0.0.0:5001", cfg.GRPCListenAddr)
	assert.Equal(t, 30*time.Second, cfg.MonitorInterval)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 100, cfg.AlertCapacity)
	assert.Equal(t, 80.0, cfg.CPUWarning)
	assert.Equal(t, 90.0, cfg.CPUCritical)
	assert.Equal(t, 85.0, cfg.MemoryWarning)
	assert.Equal(t, 95.0, cfg.MemoryCritical)
	assert.Equal(t, 120*time.Second, cfg.AutoHealTimeout)
	assert.Equal(t, 300*time.Second, cfg.DeployTimeout)
	assert.Equal(t, []string{"localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, HardcodedVersion, cfg.AgentVersion)
	assert.NotEmpty(t, cfg.NodeID)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AUTOGUARD_MONITOR_INTERVAL", "5s")
	t.Setenv("AUTOGUARD_STORE_BACKEND", "SQLite")
	t.Setenv("AUTOGUARD_SQLITE_PATH", "/var/lib/autoguard/state.db")
	t.Setenv("AUTOGUARD_ALLOWED_ORIGINS", "dash.example.com, localhost:3000 ,")
	t.Setenv("AUTOGUARD_CPU_WARNING_PERCENT", "70")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, "/var/lib/autoguard/state.db", cfg.SQLitePath)
	assert.Equal(t, []string{"dash.example.com", "localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 70.0, cfg.CPUWarning)
}

func TestRedisURLFallback(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)

	t.Setenv("AUTOGUARD_REDIS_URL", "redis://primary:6379/0")
	cfg, err = Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "redis://primary:6379/0", cfg.RedisURL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend: memory\nalert_capacity: 25\nlisten_addr: 127.0.0.1:9000\n"), 0o600))

	v := NewViper()
	v.Set(KeyConfigFile, path)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 25, cfg.AlertCapacity)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)

	v = NewViper()
	v.Set(KeyConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load(v)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load(NewViper())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty node id", func(c *Config) { c.NodeID = " " }},
		{"zero interval", func(c *Config) { c.MonitorInterval = 0 }},
		{"critical below warning", func(c *Config) { c.CPUCritical = 50 }},
		{"memory critical below warning", func(c *Config) { c.MemoryCritical = 10 }},
		{"unknown store", func(c *Config) { c.StoreBackend = "etcd" }},
		{"sqlite without path", func(c *Config) { c.StoreBackend = StoreSQLite; c.SQLitePath = "" }},
		{"redis without url", func(c *Config) { c.RedisURL = "" }},
		{"cert without key", func(c *Config) { c.TLSCertPath = "/tmp/cert.pem" }},
		{"zero capacity", func(c *Config) { c.AlertCapacity = 0 }},
		{"zero automation timeout", func(c *Config) { c.DeployTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestTLSConfigDisabled(t *testing.T) {
	tlsCfg, err := Config{}.TLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}
