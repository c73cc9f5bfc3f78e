// Package config loads and validates the storage-engine core's process
// configuration, the same YAML-driven shape the teacher's storage-node
// used, re-scoped from tenant:key KV sections to the Counter, Cache,
// Transaction and Replication components this repo actually builds.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the metrics/health HTTP listener's configuration.
type ServerConfig struct {
	NodeID          string        `yaml:"node_id"`
	Host            string        `yaml:"host"`
	MetricsPort     int           `yaml:"metrics_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds the pebble-backed LSM engine's data directory
// and the byte budget its own SSTable+WAL footprint is held to.
type StorageConfig struct {
	DataDir        string  `yaml:"data_dir"`
	MaxEngineBytes int64   `yaml:"max_engine_bytes"`
	MaxDiskUsage   float64 `yaml:"max_disk_usage"`
}

// CounterConfig holds Counter Manager settings.
type CounterConfig struct {
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// CacheConfig holds Cache Manager settings.
type CacheConfig struct {
	GlobalSoftLimit        int64         `yaml:"global_soft_limit"`
	GlobalHardLimit        int64         `yaml:"global_hard_limit"`
	RebalancingGracePeriod time.Duration `yaml:"rebalancing_grace_period"`
	SpareStackCap          int           `yaml:"spare_stack_cap"`
	RebalanceWorkers       int           `yaml:"rebalance_workers"`
}

// ReplicationConfig holds Replication Context settings.
type ReplicationConfig struct {
	ContextTTL   time.Duration `yaml:"context_ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for a storage-engine
// core process.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Counter     CounterConfig     `yaml:"counter"`
	Cache       CacheConfig       `yaml:"cache"`
	Replication ReplicationConfig `yaml:"replication"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file, applies defaults
// for anything left unspecified, and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/var/lib/storagecore"
	}
	if cfg.Storage.MaxDiskUsage == 0 {
		cfg.Storage.MaxDiskUsage = 0.9
	}
	if cfg.Storage.MaxEngineBytes == 0 {
		cfg.Storage.MaxEngineBytes = 64 << 30 // 64GiB
	}

	if cfg.Counter.SyncInterval == 0 {
		cfg.Counter.SyncInterval = 30 * time.Second
	}

	if cfg.Cache.GlobalHardLimit == 0 {
		cfg.Cache.GlobalHardLimit = 512 << 20 // 512MiB
	}
	if cfg.Cache.GlobalSoftLimit == 0 {
		cfg.Cache.GlobalSoftLimit = cfg.Cache.GlobalHardLimit
	}
	if cfg.Cache.RebalancingGracePeriod == 0 {
		cfg.Cache.RebalancingGracePeriod = 5 * time.Second
	}
	if cfg.Cache.SpareStackCap == 0 {
		cfg.Cache.SpareStackCap = 8
	}
	if cfg.Cache.RebalanceWorkers == 0 {
		cfg.Cache.RebalanceWorkers = 2
	}

	if cfg.Replication.ContextTTL == 0 {
		cfg.Replication.ContextTTL = 10 * time.Minute
	}
	if cfg.Replication.ReapInterval == 0 {
		cfg.Replication.ReapInterval = time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks invariants LoadConfig can't enforce through
// defaulting alone.
func (c *Config) Validate() error {
	if c.Server.NodeID == "" {
		return fmt.Errorf("server.node_id is required")
	}
	if c.Server.MetricsPort < 1 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 1 and 65535")
	}
	if c.Storage.MaxDiskUsage < 0 || c.Storage.MaxDiskUsage > 1 {
		return fmt.Errorf("storage.max_disk_usage must be between 0 and 1")
	}
	if c.Storage.MaxEngineBytes <= 0 {
		return fmt.Errorf("storage.max_engine_bytes must be positive")
	}
	if c.Cache.GlobalSoftLimit > c.Cache.GlobalHardLimit {
		return fmt.Errorf("cache.global_soft_limit must not exceed cache.global_hard_limit")
	}
	return nil
}
