// Command storage-core boots one storage-engine core process: it opens
// the pebble-backed LSM engine, wires the Counter, Cache, Transaction
// and Replication managers on top of it, and serves metrics and health
// probes over HTTP. It does not expose a document API of its own —
// that surface is out of scope per this repo's spec, and callers embed
// the packages under internal/ directly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/cache"
	"github.com/Frrank1/arangodb/internal/config"
	"github.com/Frrank1/arangodb/internal/counter"
	"github.com/Frrank1/arangodb/internal/health"
	"github.com/Frrank1/arangodb/internal/logging"
	"github.com/Frrank1/arangodb/internal/lsmengine"
	"github.com/Frrank1/arangodb/internal/obsmetrics"
	"github.com/Frrank1/arangodb/internal/replication"
	"github.com/Frrank1/arangodb/internal/server"
	"github.com/Frrank1/arangodb/internal/storage/diskmanager"
	"github.com/Frrank1/arangodb/internal/txn"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("storage-core: starting",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("data_dir", cfg.Storage.DataDir))

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatal("storage-core: failed to create data directory", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := obsmetrics.New(registry)

	engine, err := lsmengine.Open(cfg.Storage.DataDir, lsmengine.Options{}, logger)
	if err != nil {
		logger.Fatal("storage-core: failed to open LSM engine", zap.Error(err))
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("storage-core: error closing engine", zap.Error(err))
		}
	}()

	diskCfg := diskmanager.DefaultConfig(engine, uint64(cfg.Storage.MaxEngineBytes))
	diskCfg.CircuitBreakerThreshold = cfg.Storage.MaxDiskUsage * 100
	diskCfg.ThrottleThreshold = diskCfg.CircuitBreakerThreshold - 5
	diskCfg.WarningThreshold = diskCfg.CircuitBreakerThreshold - 15
	diskMgr, err := diskmanager.NewDiskManager(diskCfg, logger)
	if err != nil {
		logger.Fatal("storage-core: failed to start disk manager", zap.Error(err))
	}

	counterMgr := counter.New(engine, counter.Config{SyncInterval: cfg.Counter.SyncInterval}, logger, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := counterMgr.Recover(ctx); err != nil {
		logger.Fatal("storage-core: counter recovery failed", zap.Error(err))
	}
	counterMgr.Start(ctx)

	cacheMgr := cache.New(cache.Config{
		GlobalSoftLimit:        cfg.Cache.GlobalSoftLimit,
		GlobalHardLimit:        cfg.Cache.GlobalHardLimit,
		RebalancingGracePeriod: cfg.Cache.RebalancingGracePeriod,
		SpareStackCap:          cfg.Cache.SpareStackCap,
		RebalanceWorkers:       cfg.Cache.RebalanceWorkers,
	}, logger, metrics)
	cacheMgr.StartBackgroundRebalancing(ctx)

	txnMgr := txn.NewManager(engine, counterMgr, cacheMgr, logger, metrics)

	replMgr := replication.NewManager(engine, replication.Config{
		TTL:          cfg.Replication.ContextTTL,
		ReapInterval: cfg.Replication.ReapInterval,
	}, logger, metrics)
	replMgr.StartReaper()
	defer replMgr.Stop()

	checker := health.New(health.Config{NodeID: cfg.Server.NodeID, DataDir: cfg.Storage.DataDir}, counterMgr, cacheMgr, diskMgr, logger)
	go checker.Start(ctx)

	metricsServer := server.New(server.Config{Port: cfg.Server.MetricsPort}, registry, checker, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Fatal("storage-core: failed to start metrics server", zap.Error(err))
	}

	logger.Info("storage-core: ready",
		zap.Int("active_transactions", txnMgr.ActiveCount()),
		zap.Int("metrics_port", cfg.Server.MetricsPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("storage-core: shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := counterMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("storage-core: error shutting down counter manager", zap.Error(err))
	}
	if err := cacheMgr.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("storage-core: error shutting down cache manager", zap.Error(err))
	}
	if err := metricsServer.Stop(); err != nil {
		logger.Error("storage-core: error stopping metrics server", zap.Error(err))
	}

	logger.Info("storage-core: stopped", zap.Duration("grace_period", cfg.Server.ShutdownTimeout), zap.Time("stopped_at", time.Now()))
}
