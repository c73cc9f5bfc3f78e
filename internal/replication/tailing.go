package replication

import (
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/lsmengine"
	"github.com/Frrank1/arangodb/internal/obsmetrics"
)

// OpType mirrors the WAL's write primitives for the tailing wire
// format.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
	OpSingleDelete
)

// Record is one logical operation emitted by tailWal: a tick (WAL
// sequence number), the operation type, the owning collection's
// object ID, the raw key, and the value for puts.
type Record struct {
	Tick uint64
	Type OpType
	CID  uint64
	Key  []byte
	Data []byte
}

// TailResult reports where a tailWal call left off: the highest tick
// emitted and whether the stream started exactly at fromTick (vs. the
// engine having already discarded earlier WAL records).
type TailResult struct {
	MaxTick         uint64
	FromTickIncluded bool
}

// TailWal opens a WAL iterator from fromTick and emits one Record per
// logical operation to emit, until emit returns false, the stream
// ends, or limit operations have been produced. limit is checked
// between batches, so the last batch is delivered whole and the count
// can exceed limit. includeSystem is honored by the caller
// filtering emit by CID; TailWal itself has no notion of which
// collections are system collections.
func TailWal(engine lsmengine.Engine, fromTick uint64, limit int, emit func(Record) bool, metrics *obsmetrics.Metrics, logger *zap.Logger) (TailResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	it, err := engine.GetUpdatesSince(fromTick)
	if err != nil {
		return TailResult{}, err
	}
	defer it.Close()

	result := TailResult{FromTickIncluded: true}
	count := 0

	for it.Next() {
		tick := it.Sequence()
		h := &tailHandler{tick: tick, emit: emit, stop: false}
		if err := it.Batch().Replay(h); err != nil {
			logger.Warn("replication: wal tail replay failed", zap.Error(err))
			break
		}
		if h.produced > 0 {
			result.MaxTick = tick
			count += h.produced
			if metrics != nil {
				metrics.WalTailOperationsTotal.Add(float64(h.produced))
			}
		}
		if h.stop {
			break
		}
		if limit > 0 && count >= limit {
			break
		}
	}
	if it.Err() != nil {
		return result, it.Err()
	}
	return result, nil
}

// tailHandler adapts one replayed batch's operations into Records,
// stopping early if emit returns false.
type tailHandler struct {
	tick     uint64
	emit     func(Record) bool
	stop     bool
	produced int
}

func (h *tailHandler) Put(key, value []byte) error {
	if h.stop {
		return nil
	}
	h.deliver(OpPut, key, value)
	return nil
}

func (h *tailHandler) Delete(key []byte) error {
	if h.stop {
		return nil
	}
	h.deliver(OpDelete, key, nil)
	return nil
}

func (h *tailHandler) SingleDelete(key []byte) error {
	if h.stop {
		return nil
	}
	h.deliver(OpSingleDelete, key, nil)
	return nil
}

func (h *tailHandler) deliver(opType OpType, key, value []byte) {
	cid, _, err := keycodec.DecodeDocument(key)
	if err != nil {
		return // not a Document key; irrelevant to followers
	}
	rec := Record{Tick: h.tick, Type: opType, CID: cid, Key: key, Data: value}
	h.produced++
	if !h.emit(rec) {
		h.stop = true
	}
}
