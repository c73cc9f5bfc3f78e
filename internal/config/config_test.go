package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  node_id: node-1\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 9090, cfg.Server.MetricsPort)
	require.Equal(t, cfg.Cache.GlobalHardLimit, cfg.Cache.GlobalSoftLimit)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigRequiresNodeID(t *testing.T) {
	path := writeConfig(t, "server:\n  metrics_port: 9090\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidateRejectsSoftLimitAboveHardLimit(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{NodeID: "node-1", MetricsPort: 9090},
		Storage: StorageConfig{MaxDiskUsage: 0.9},
		Cache:   CacheConfig{GlobalSoftLimit: 100, GlobalHardLimit: 50},
	}
	require.Error(t, cfg.Validate())
}
