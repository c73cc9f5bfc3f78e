// Package obsmetrics holds the Prometheus metrics exposed by the
// storage-engine core, built and registered once at process start and
// passed down to every component as an explicit constructor argument —
// the same shape the teacher's storage-node metrics registry uses, only
// re-scoped from tenant:key KV operations to counters, caches,
// transactions and replication.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric collector the core's components feed into.
type Metrics struct {
	// Counter Manager
	CounterSyncTotal         prometheus.Counter
	CounterSyncDuration      prometheus.Histogram
	CounterSyncFailuresTotal prometheus.Counter
	CounterRecoveryAdjustments prometheus.Counter

	// Cache Manager
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	CacheAllocationBytes  prometheus.Gauge
	CacheRebalanceTotal   prometheus.Counter
	CacheMigrationsTotal  prometheus.Counter

	// Transaction State
	TransactionsCommittedTotal prometheus.Counter
	TransactionsAbortedTotal   prometheus.Counter
	TransactionCommitDuration  prometheus.Histogram

	// Replication
	ReplicationContextsOpen    prometheus.Gauge
	ReplicationContextsExpired prometheus.Counter
	WalTailOperationsTotal     prometheus.Counter
}

// New constructs and registers the core's metrics on reg. Pass
// prometheus.NewRegistry() in tests to avoid polluting the default
// registry across parallel test runs.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CounterSyncTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "counter",
			Name:      "sync_total",
			Help:      "Total number of Counter Manager sync() calls.",
		}),
		CounterSyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storagecore",
			Subsystem: "counter",
			Name:      "sync_duration_seconds",
			Help:      "Duration of Counter Manager sync() calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		CounterSyncFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "counter",
			Name:      "sync_failures_total",
			Help:      "Total number of failed Counter Manager sync() calls.",
		}),
		CounterRecoveryAdjustments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "counter",
			Name:      "recovery_adjustments_total",
			Help:      "Total number of counter adjustments made during WAL replay recovery.",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total cache hits across all caches.",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total cache misses across all caches.",
		}),
		CacheAllocationBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "storagecore",
			Subsystem: "cache",
			Name:      "allocation_bytes",
			Help:      "Current global cache allocation in bytes.",
		}),
		CacheRebalanceTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "cache",
			Name:      "rebalance_total",
			Help:      "Total number of rebalance passes run.",
		}),
		CacheMigrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "cache",
			Name:      "migrations_total",
			Help:      "Total number of table migrations performed.",
		}),
		TransactionsCommittedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "txn",
			Name:      "committed_total",
			Help:      "Total number of committed top-level transactions.",
		}),
		TransactionsAbortedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "txn",
			Name:      "aborted_total",
			Help:      "Total number of aborted top-level transactions.",
		}),
		TransactionCommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storagecore",
			Subsystem: "txn",
			Name:      "commit_duration_seconds",
			Help:      "Duration of transaction commit.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReplicationContextsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "storagecore",
			Subsystem: "replication",
			Name:      "contexts_open",
			Help:      "Number of currently open replication contexts.",
		}),
		ReplicationContextsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "replication",
			Name:      "contexts_expired_total",
			Help:      "Total number of replication contexts reaped for TTL expiry.",
		}),
		WalTailOperationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "storagecore",
			Subsystem: "replication",
			Name:      "wal_tail_operations_total",
			Help:      "Total number of WAL operations emitted by tailWal.",
		}),
	}
}
