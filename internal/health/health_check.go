// Package health runs periodic liveness/readiness checks against the
// storage-engine core's own subsystems and exposes them over HTTP for
// Kubernetes-style probes.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/cache"
	"github.com/Frrank1/arangodb/internal/counter"
	"github.com/Frrank1/arangodb/internal/storage/diskmanager"
)

// Status is the coarse health state reported by GetStatus.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one individual check.
type CheckResult struct {
	Name      string
	Status    string
	Message   string
	Timestamp time.Time
}

// Snapshot is the point-in-time health report GetStatus returns.
type Snapshot struct {
	NodeID    string
	Status    Status
	Timestamp int64
	Checks    map[string]CheckResult
}

// Config configures the Checker.
type Config struct {
	NodeID  string
	DataDir string
}

// Checker runs periodic checks against the data directory, the disk
// manager and the live Cache Manager, surfacing both a Kubernetes-style
// liveness/readiness pair and a detailed per-check breakdown.
type Checker struct {
	nodeID  string
	dataDir string
	logger  *zap.Logger

	counter  *counter.Manager
	cacheMgr *cache.Manager
	diskMgr  *diskmanager.DiskManager

	mu          sync.RWMutex
	lastCheck   time.Time
	status      Status
	checks      map[string]CheckResult
	livenessOK  bool
	readinessOK bool
}

// New constructs a Checker. counterMgr is stored but no check reads
// it. cacheMgr may be nil, in which case checkCacheBudget reports
// healthy with a "not wired" message. diskMgr, when non-nil, backs
// checkDiskSpace with its cached usage stats instead of a raw statfs
// call, so the check shares the same throttle/circuit-breaker
// thresholds collection writes are held to.
func New(cfg Config, counterMgr *counter.Manager, cacheMgr *cache.Manager, diskMgr *diskmanager.DiskManager, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		nodeID:      cfg.NodeID,
		dataDir:     cfg.DataDir,
		logger:      logger,
		counter:     counterMgr,
		cacheMgr:    cacheMgr,
		diskMgr:     diskMgr,
		checks:      make(map[string]CheckResult),
		livenessOK:  true,
		readinessOK: true,
		status:      StatusHealthy,
	}
}

// Start runs checks on a 10-second cadence until ctx is cancelled.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	h.runChecks()
	for {
		select {
		case <-ticker.C:
			h.runChecks()
		case <-ctx.Done():
			h.logger.Info("health: checker stopped")
			return
		}
	}
}

func (h *Checker) runChecks() {
	checks := []func() CheckResult{
		h.checkDiskSpace,
		h.checkDataDirAccessible,
		h.checkFileDescriptors,
		h.checkCacheBudget,
	}

	results := make(map[string]CheckResult, len(checks))
	allHealthy, allReady := true, true
	for _, check := range checks {
		r := check()
		results[r.Name] = r
		if r.Status != "healthy" {
			allHealthy = false
			if r.Status == "critical" {
				allReady = false
			}
		}
	}

	h.mu.Lock()
	h.lastCheck = time.Now()
	h.checks = results
	switch {
	case !allHealthy && !allReady:
		h.status = StatusUnhealthy
	case !allHealthy:
		h.status = StatusDegraded
	default:
		h.status = StatusHealthy
	}
	h.livenessOK = true
	h.readinessOK = allReady
	h.mu.Unlock()

	h.logger.Debug("health: check completed", zap.String("status", string(h.status)))
}

func (h *Checker) checkDiskSpace() CheckResult {
	if h.diskMgr != nil {
		stats := h.diskMgr.GetDiskUsage()
		switch {
		case stats.IsCircuitBroken:
			return CheckResult{Name: "disk_space", Status: "critical",
				Message: fmt.Sprintf("disk usage critical: %.2f%%", stats.UsagePercent), Timestamp: time.Now()}
		case stats.IsThrottled:
			return CheckResult{Name: "disk_space", Status: "warning",
				Message: fmt.Sprintf("disk usage high: %.2f%%", stats.UsagePercent), Timestamp: time.Now()}
		default:
			return CheckResult{Name: "disk_space", Status: "healthy",
				Message: fmt.Sprintf("disk usage: %.2f%%", stats.UsagePercent), Timestamp: time.Now()}
		}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.dataDir, &stat); err != nil {
		return CheckResult{Name: "disk_space", Status: "critical",
			Message: fmt.Sprintf("failed to stat filesystem: %v", err), Timestamp: time.Now()}
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	if total == 0 {
		return CheckResult{Name: "disk_space", Status: "healthy", Message: "no filesystem data", Timestamp: time.Now()}
	}
	usagePercent := float64(total-free) / float64(total) * 100
	switch {
	case usagePercent > 95:
		return CheckResult{Name: "disk_space", Status: "critical",
			Message: fmt.Sprintf("disk usage critical: %.2f%%", usagePercent), Timestamp: time.Now()}
	case usagePercent > 90:
		return CheckResult{Name: "disk_space", Status: "warning",
			Message: fmt.Sprintf("disk usage high: %.2f%%", usagePercent), Timestamp: time.Now()}
	default:
		return CheckResult{Name: "disk_space", Status: "healthy",
			Message: fmt.Sprintf("disk usage: %.2f%%", usagePercent), Timestamp: time.Now()}
	}
}

func (h *Checker) checkDataDirAccessible() CheckResult {
	info, err := os.Stat(h.dataDir)
	if err != nil || !info.IsDir() {
		return CheckResult{Name: "data_dir_accessible", Status: "critical",
			Message: "data directory not accessible", Timestamp: time.Now()}
	}
	testFile := fmt.Sprintf("%s/.health_check_%d", h.dataDir, time.Now().UnixNano())
	f, err := os.Create(testFile)
	if err != nil {
		return CheckResult{Name: "data_dir_accessible", Status: "critical",
			Message: fmt.Sprintf("cannot write to data directory: %v", err), Timestamp: time.Now()}
	}
	f.Close()
	os.Remove(testFile)
	return CheckResult{Name: "data_dir_accessible", Status: "healthy",
		Message: "data directory is accessible and writable", Timestamp: time.Now()}
}

func (h *Checker) checkFileDescriptors() CheckResult {
	var rlimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rlimit); err != nil {
		return CheckResult{Name: "file_descriptors", Status: "warning",
			Message: fmt.Sprintf("failed to get rlimit: %v", err), Timestamp: time.Now()}
	}
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return CheckResult{Name: "file_descriptors", Status: "healthy",
			Message: fmt.Sprintf("soft limit: %d", rlimit.Cur), Timestamp: time.Now()}
	}
	usagePercent := float64(len(entries)) / float64(rlimit.Cur) * 100
	if usagePercent > 90 {
		return CheckResult{Name: "file_descriptors", Status: "warning",
			Message: fmt.Sprintf("file descriptor usage high: %.2f%%", usagePercent), Timestamp: time.Now()}
	}
	return CheckResult{Name: "file_descriptors", Status: "healthy",
		Message: fmt.Sprintf("file descriptor usage: %.2f%%", usagePercent), Timestamp: time.Now()}
}

// checkCacheBudget reports the Cache Manager's global allocation in its
// message. It always returns healthy: the allocation is not compared
// against the hard limit.
func (h *Checker) checkCacheBudget() CheckResult {
	if h.cacheMgr == nil {
		return CheckResult{Name: "cache_budget", Status: "healthy", Message: "cache manager not wired", Timestamp: time.Now()}
	}
	alloc := h.cacheMgr.GlobalAllocation()
	return CheckResult{Name: "cache_budget", Status: "healthy",
		Message: fmt.Sprintf("global cache allocation: %d bytes", alloc), Timestamp: time.Now()}
}

func (h *Checker) IsLive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.livenessOK
}

func (h *Checker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readinessOK
}

func (h *Checker) GetStatus() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	checks := make(map[string]CheckResult, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	return Snapshot{NodeID: h.nodeID, Status: h.status, Timestamp: h.lastCheck.Unix(), Checks: checks}
}

func (h *Checker) SetReadiness(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readinessOK = ready
}

func (h *Checker) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	live := h.livenessOK
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !live {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"healthy": live})
}

func (h *Checker) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	ready := h.readinessOK
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"ready": ready})
}
