package cache

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/workerpool"
)

// Rebalance recomputes allocation priority across every live cache and
// schedules migration work for the caches most and least deserving of
// their current table size. It is a no-op while a resize is already in
// flight, and it is itself exclusive: a second call observes the busy
// flag and returns immediately rather than queuing behind the first.
func (m *Manager) Rebalance(ctx context.Context) error {
	m.mu.Lock()
	if m.runState != stateIdle {
		m.mu.Unlock()
		return nil
	}
	if time.Since(m.lastRebalance) < m.cfg.RebalancingGracePeriod {
		m.mu.Unlock()
		return nil
	}
	m.runState = stateRebalancing
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.runState = stateIdle
		m.lastRebalance = time.Now()
		m.mu.Unlock()
	}()

	priority := m.priorityList()
	if m.metric != nil {
		m.metric.CacheRebalanceTotal.Inc()
	}

	for _, snap := range priority {
		snap := snap
		target := targetLogSize(snap)
		if target == snap.cache.currentTable().LogSize {
			continue
		}
		err := m.pool.Submit(workerpool.Task{
			ID: "migrate",
			Fn: func(ctx context.Context) error {
				_, _ = m.RequestMigrate(snap.cache, target)
				return nil
			},
			Context: ctx,
		})
		if err != nil {
			m.logger.Warn("cache: failed to submit migration task", zap.Error(err))
		}
	}
	return nil
}

// priorityList orders caches by how strongly their recent access
// pattern argues for more allocation: higher windowed hit rate first,
// ties broken by most-recent access so a cache that just got busy
// doesn't lose out to one that has been merely lukewarm for longer.
func (m *Manager) priorityList() []cacheSnapshot {
	snaps := m.snapshotCaches()
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].windowed != snaps[j].windowed {
			return snaps[i].windowed > snaps[j].windowed
		}
		return snaps[i].lastAccess.After(snaps[j].lastAccess)
	})
	return snaps
}

// targetLogSize maps a cache's windowed hit rate to the table size it
// deserves: a consistently-hot cache earns a larger table, a cold one
// gets migrated down so its excess capacity can be reclaimed.
func targetLogSize(snap cacheSnapshot) int {
	current := snap.cache.currentTable().LogSize
	switch {
	case snap.windowed > 0.8 && current < spareStackCount-1:
		return current + 1
	case snap.windowed < 0.2 && current > 0:
		return current - 1
	default:
		return current
	}
}

// Resize sets the Manager's global hard limit, which takes effect
// immediately. When the new limit is below the current allocation, it
// also submits one asynchronous task per cache above log-size 0 to
// migrate it one log-size step down; the new limit does not wait for
// those tasks. Growing simply raises the ceiling.
func (m *Manager) Resize(ctx context.Context, newHardLimit int64) error {
	m.mu.Lock()
	if m.runState != stateIdle {
		m.mu.Unlock()
		return nil
	}
	m.runState = stateResizing
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.runState = stateIdle
		m.mu.Unlock()
	}()

	m.mu.Lock()
	shrinking := newHardLimit < m.globalAllocation
	m.mu.Unlock()

	if shrinking {
		for _, snap := range m.snapshotCaches() {
			snap := snap
			target := snap.cache.currentTable().LogSize - 1
			if target < 0 {
				continue
			}
			err := m.pool.Submit(workerpool.Task{
				ID: "resize-shrink",
				Fn: func(ctx context.Context) error {
					_, _ = m.RequestMigrate(snap.cache, target)
					return nil
				},
				Context: ctx,
			})
			if err != nil {
				m.logger.Warn("cache: failed to submit shrink task", zap.Error(err))
			}
		}
	}

	m.mu.Lock()
	m.cfg.GlobalHardLimit = newHardLimit
	if m.cfg.GlobalSoftLimit > newHardLimit {
		m.cfg.GlobalSoftLimit = newHardLimit * 8 / 10
	}
	m.mu.Unlock()
	m.setAllocationGauge()
	return nil
}

// StartBackgroundRebalancing runs Rebalance on cfg.RebalancingGracePeriod
// ticks until ctx is cancelled.
func (m *Manager) StartBackgroundRebalancing(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.RebalancingGracePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Rebalance(ctx); err != nil {
					m.logger.Warn("cache: rebalance pass failed", zap.Error(err))
				}
			}
		}
	}()
}
