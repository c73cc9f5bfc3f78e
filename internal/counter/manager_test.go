package counter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/lsmengine"
)

func openEngine(t *testing.T) lsmengine.Engine {
	t.Helper()
	e, err := lsmengine.Open(t.TempDir(), lsmengine.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestLoadDefaultsToZero(t *testing.T) {
	m := New(openEngine(t), Config{}, nil, nil)
	count, rev := m.Load(1)
	require.Equal(t, int64(0), count)
	require.Equal(t, uint64(0), rev)
}

func TestUpdateThenSyncThenLoadRoundTrips(t *testing.T) {
	m := New(openEngine(t), Config{}, nil, nil)
	m.Update(1, 10, 3, 99)

	require.NoError(t, m.Sync(context.Background()))

	count, rev := m.Load(1)
	require.Equal(t, int64(3), count)
	require.Equal(t, uint64(99), rev)

	fresh := New(m.engine, Config{}, nil, nil)
	require.NoError(t, fresh.loadPersistedCounters())
	count, rev = fresh.Load(1)
	require.Equal(t, int64(3), count)
	require.Equal(t, uint64(99), rev)
}

func TestSyncIsNoopWhenNothingDirty(t *testing.T) {
	m := New(openEngine(t), Config{}, nil, nil)
	require.NoError(t, m.Sync(context.Background()))
}

func TestRemoveDeletesInMemoryAndPersisted(t *testing.T) {
	m := New(openEngine(t), Config{}, nil, nil)
	m.Update(1, 1, 1, 1)
	require.NoError(t, m.Sync(context.Background()))

	require.NoError(t, m.Remove(1))
	count, _ := m.Load(1)
	require.Equal(t, int64(0), count)

	_, err := m.engine.Get(keycodec.EncodeCounterValue(1))
	require.Error(t, err)
}

func TestRecoverWithNoSyncedCountersSkipsWalScan(t *testing.T) {
	m := New(openEngine(t), Config{}, nil, nil)
	require.NoError(t, m.Recover(context.Background()))
	count, _ := m.Load(1)
	require.Equal(t, int64(0), count)
}

func TestRecoverReplaysWalNewerThanSyncedSequence(t *testing.T) {
	engine := openEngine(t)
	m := New(engine, Config{}, nil, nil)

	// Seed a persisted counter for objectID=1 at some low sequence.
	m.Update(1, 1, 0, 0)
	require.NoError(t, m.Sync(context.Background()))

	// Commit a document insert for objectID=1 through a real transaction
	// so it lands in both pebble and the WAL with a sequence number
	// greater than the counter's synced sequence.
	txn, err := engine.BeginTransaction(lsmengine.WriteOptions{}, lsmengine.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, txn.Put(keycodec.EncodeDocument(1, 42), []byte("payload")))
	require.NoError(t, txn.Commit())

	fresh := New(engine, Config{}, nil, nil)
	require.NoError(t, fresh.Recover(context.Background()))

	count, rev := fresh.Load(1)
	require.Equal(t, int64(1), count)
	require.Equal(t, uint64(42), rev)
}

func TestStartAndShutdownFlushesFinalCounters(t *testing.T) {
	m := New(openEngine(t), Config{SyncInterval: time.Hour}, nil, nil)
	m.Start(context.Background())
	m.Update(1, 1, 5, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	count, _ := m.Load(1)
	require.Equal(t, int64(5), count)
	_, err := m.engine.Get(keycodec.EncodeCounterValue(1))
	require.NoError(t, err)
}
