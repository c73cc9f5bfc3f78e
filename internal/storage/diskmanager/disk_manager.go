// Package diskmanager tracks the LSM engine's own on-disk footprint —
// SSTables plus WAL, per pebble's Metrics(), not the host volume's free
// space — and enforces warning/throttle/circuit-breaker policy against
// a configured byte budget. CheckBeforeWrite satisfies
// collection.WriteGuard, so a Physical collection attached to one backs
// off bulk restore traffic before the engine outgrows its budget rather
// than after; GetDiskUsage backs the health checker's disk_space probe
// with the same cached thresholds.
package diskmanager

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/lsmengine"
)

// DiskManager monitors the engine's on-disk footprint and enforces
// write policies against a configured byte budget.
type DiskManager struct {
	engine        lsmengine.Engine
	maxBytes      uint64
	logger        *zap.Logger
	mu            sync.RWMutex
	lastCheck     time.Time
	cachedLive    uint64
	checkInterval time.Duration

	warningThreshold        float64 // percent of maxBytes
	throttleThreshold       float64
	circuitBreakerThreshold float64

	isThrottled     bool
	isCircuitBroken bool
}

// DiskManagerConfig holds configuration for disk manager.
type DiskManagerConfig struct {
	Engine                  lsmengine.Engine
	MaxBytes                uint64
	CheckInterval           time.Duration
	WarningThreshold        float64
	ThrottleThreshold       float64
	CircuitBreakerThreshold float64
}

// NewDiskManager creates a new disk manager tracking engine's footprint
// against cfg's byte budget and thresholds.
func NewDiskManager(cfg *DiskManagerConfig, logger *zap.Logger) (*DiskManager, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.MaxBytes == 0 {
		return nil, fmt.Errorf("max bytes budget is required")
	}

	dm := &DiskManager{
		engine:                  cfg.Engine,
		maxBytes:                cfg.MaxBytes,
		logger:                  logger,
		checkInterval:           cfg.CheckInterval,
		warningThreshold:        cfg.WarningThreshold,
		throttleThreshold:       cfg.ThrottleThreshold,
		circuitBreakerThreshold: cfg.CircuitBreakerThreshold,
	}

	if err := dm.checkDiskSpace(); err != nil {
		logger.Warn("Initial disk usage check failed", zap.Error(err))
	}

	return dm, nil
}

// DefaultConfig returns a default disk manager configuration for the
// given engine and byte budget.
func DefaultConfig(engine lsmengine.Engine, maxBytes uint64) *DiskManagerConfig {
	return &DiskManagerConfig{
		Engine:                  engine,
		MaxBytes:                maxBytes,
		CheckInterval:           10 * time.Second,
		WarningThreshold:        80.0,
		ThrottleThreshold:       90.0,
		CircuitBreakerThreshold: 95.0,
	}
}

// CheckBeforeWrite checks if a write of the given size can proceed.
// Returns an error if the write should be rejected.
func (dm *DiskManager) CheckBeforeWrite(estimatedBytes uint64) error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if time.Since(dm.lastCheck) > dm.checkInterval {
		dm.mu.RUnlock()
		dm.mu.Lock()
		if err := dm.checkDiskSpace(); err != nil {
			dm.logger.Warn("Disk usage check failed", zap.Error(err))
		}
		dm.mu.Unlock()
		dm.mu.RLock()
	}

	available := dm.availableBytes()

	if dm.isCircuitBroken {
		return &DiskSpaceError{
			Code:            ErrCodeDiskFull,
			Message:         fmt.Sprintf("engine footprint at %.2f%% of budget, circuit breaker engaged", dm.usagePercent()),
			UsagePercent:    dm.usagePercent(),
			AvailableBytes:  available,
			IsCircuitBroken: true,
		}
	}

	if dm.isThrottled {
		if estimatedBytes > available/10 {
			return &DiskSpaceError{
				Code:           ErrCodeDiskThrottled,
				Message:        fmt.Sprintf("engine footprint at %.2f%% of budget, write throttled", dm.usagePercent()),
				UsagePercent:   dm.usagePercent(),
				AvailableBytes: available,
				IsThrottled:    true,
			}
		}
	}

	if estimatedBytes > available {
		return &DiskSpaceError{
			Code:           ErrCodeInsufficientSpace,
			Message:        fmt.Sprintf("insufficient budget: need %d bytes, have %d bytes", estimatedBytes, available),
			UsagePercent:   dm.usagePercent(),
			AvailableBytes: available,
		}
	}

	return nil
}

// usagePercent and availableBytes must be called with at least a read
// lock held.
func (dm *DiskManager) usagePercent() float64 {
	return float64(dm.cachedLive) / float64(dm.maxBytes) * 100.0
}

func (dm *DiskManager) availableBytes() uint64 {
	if dm.cachedLive >= dm.maxBytes {
		return 0
	}
	return dm.maxBytes - dm.cachedLive
}

// checkDiskSpace refreshes the engine's self-reported footprint and
// updates threshold state. Must be called with the write lock held.
func (dm *DiskManager) checkDiskSpace() error {
	usage, err := dm.engine.DiskUsage()
	if err != nil {
		return fmt.Errorf("failed to read engine disk usage: %w", err)
	}

	dm.cachedLive = usage.LiveBytes
	dm.lastCheck = time.Now()
	usagePercent := dm.usagePercent()

	previouslyThrottled := dm.isThrottled
	previouslyBroken := dm.isCircuitBroken

	dm.isCircuitBroken = usagePercent >= dm.circuitBreakerThreshold
	dm.isThrottled = usagePercent >= dm.throttleThreshold && !dm.isCircuitBroken

	if dm.isCircuitBroken && !previouslyBroken {
		dm.logger.Error("Disk circuit breaker ENGAGED",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("live_bytes", usage.LiveBytes),
			zap.Float64("threshold", dm.circuitBreakerThreshold))
	} else if !dm.isCircuitBroken && previouslyBroken {
		dm.logger.Info("Disk circuit breaker DISENGAGED",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("live_bytes", usage.LiveBytes))
	}

	if dm.isThrottled && !previouslyThrottled && !dm.isCircuitBroken {
		dm.logger.Warn("Disk write throttling ENABLED",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("live_bytes", usage.LiveBytes),
			zap.Float64("threshold", dm.throttleThreshold))
	} else if !dm.isThrottled && previouslyThrottled {
		dm.logger.Info("Disk write throttling DISABLED",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("live_bytes", usage.LiveBytes))
	}

	if usagePercent >= dm.warningThreshold && !dm.isThrottled && !dm.isCircuitBroken {
		dm.logger.Warn("Disk usage warning",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("live_bytes", usage.LiveBytes),
			zap.Float64("warning_threshold", dm.warningThreshold))
	}

	return nil
}

// GetDiskUsage returns current engine disk usage statistics.
func (dm *DiskManager) GetDiskUsage() DiskUsageStats {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if time.Since(dm.lastCheck) > dm.checkInterval {
		dm.mu.RUnlock()
		dm.mu.Lock()
		dm.checkDiskSpace()
		dm.mu.Unlock()
		dm.mu.RLock()
	}

	return DiskUsageStats{
		UsagePercent:    dm.usagePercent(),
		AvailableBytes:  dm.availableBytes(),
		IsThrottled:     dm.isThrottled,
		IsCircuitBroken: dm.isCircuitBroken,
		LastCheck:       dm.lastCheck,
	}
}

// DiskUsageStats contains disk usage statistics.
type DiskUsageStats struct {
	UsagePercent    float64
	AvailableBytes  uint64
	IsThrottled     bool
	IsCircuitBroken bool
	LastCheck       time.Time
}

// ErrorCode classifies a DiskSpaceError.
type ErrorCode int

const (
	ErrCodeDiskFull ErrorCode = iota + 1
	ErrCodeDiskThrottled
	ErrCodeInsufficientSpace
)

// DiskSpaceError represents a disk space related error.
type DiskSpaceError struct {
	Code            ErrorCode
	Message         string
	UsagePercent    float64
	AvailableBytes  uint64
	IsThrottled     bool
	IsCircuitBroken bool
}

func (e *DiskSpaceError) Error() string {
	return e.Message
}
