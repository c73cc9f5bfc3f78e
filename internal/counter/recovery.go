package counter

import (
	"context"

	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/lsmengine"
)

// Recover performs startup recovery:
//  1. range-scans every persisted CounterValue entry into both the
//     in-memory counters and the synced snapshot;
//  2. finds the minimum synced sequence number across all counters;
//  3. opens a WAL iterator from that minimum and replays every batch
//     with sequence greater than it;
//  4. for each Put on a Document key whose objectId is already known
//     and whose batch sequence exceeds that object's own counter
//     sequence, increments count and records the revision; for each
//     Delete/SingleDelete under the same precondition, decrements it;
//  5. if anything was adjusted, flushes the result with Sync.
//
// If WAL iteration fails mid-stream, recovery is abandoned: the
// in-memory counters keep whatever adjustments were applied before the
// failure, and nothing is flushed. The LSM remains the authority and
// counters are only a cached aggregate.
func (m *Manager) Recover(ctx context.Context) error {
	if err := m.loadPersistedCounters(); err != nil {
		return err
	}

	minSeq, any := m.minSyncedSequence()
	if !any {
		m.logger.Info("counter: no synced counters found, skipping WAL scan")
		return nil
	}

	adjusted, err := m.replayWalSince(minSeq)
	if err != nil {
		m.logger.Warn("counter: WAL recovery abandoned, keeping persisted counters", zap.Error(err))
		return nil
	}
	if adjusted > 0 {
		m.logger.Info("counter: recovery adjusted counters", zap.Int("adjusted", adjusted))
		if m.metrics != nil {
			m.metrics.CounterRecoveryAdjustments.Add(float64(adjusted))
		}
		return m.Sync(ctx)
	}
	return nil
}

func (m *Manager) loadPersistedCounters() error {
	bounds := keycodec.CounterValuesBounds()
	it, err := m.engine.NewIterator(lsmengine.ReadOptions{}, bounds.Start, bounds.End)
	if err != nil {
		return err
	}
	defer it.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	for it.First(); it.Valid(); it.Next() {
		objectID, err := keycodec.DecodeCounterValue(it.Key())
		if err != nil {
			continue
		}
		entry, err := decodeEntry(it.Value())
		if err != nil {
			continue
		}
		m.counters[objectID] = entry
		m.synced[objectID] = entry
	}
	return nil
}

func (m *Manager) minSyncedSequence() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var min uint64
	found := false
	for _, e := range m.synced {
		if !found || e.SequenceNumber < min {
			min = e.SequenceNumber
			found = true
		}
	}
	return min, found
}

// replayWalSince applies every WAL batch with sequence > fromSeq to the
// in-memory counters map, respecting each object's own recorded
// sequence number as the replay threshold. It returns the number of
// per-object adjustments made.
func (m *Manager) replayWalSince(fromSeq uint64) (int, error) {
	it, err := m.engine.GetUpdatesSince(fromSeq)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	adjusted := 0
	for it.Next() {
		seq := it.Sequence()
		h := &recoveryHandler{manager: m, seq: seq, adjusted: &adjusted}
		if err := it.Batch().Replay(h); err != nil {
			return adjusted, err
		}
	}
	if it.Err() != nil {
		return adjusted, it.Err()
	}
	return adjusted, nil
}

// recoveryHandler applies one committed batch's Document operations to
// the manager's in-memory counters. Assumes the manager's write lock is
// already held by the caller.
type recoveryHandler struct {
	manager  *Manager
	seq      uint64
	adjusted *int
}

func (h *recoveryHandler) apply(key []byte, delta int64) {
	objectID, revisionID, err := keycodec.DecodeDocument(key)
	if err != nil {
		return // not a Document key; irrelevant to counter recovery
	}
	counter, known := h.manager.counters[objectID]
	if !known || h.seq <= counter.SequenceNumber {
		return
	}
	counter.Count += delta
	counter.LatestRevision = revisionID
	counter.SequenceNumber = h.seq
	h.manager.counters[objectID] = counter
	*h.adjusted++
}

func (h *recoveryHandler) Put(key, value []byte) error {
	h.apply(key, 1)
	return nil
}

func (h *recoveryHandler) Delete(key []byte) error {
	h.apply(key, -1)
	return nil
}

func (h *recoveryHandler) SingleDelete(key []byte) error {
	h.apply(key, -1)
	return nil
}
