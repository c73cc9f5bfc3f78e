package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Frrank1/arangodb/internal/collection"
	"github.com/Frrank1/arangodb/internal/keycodec"
	"github.com/Frrank1/arangodb/internal/lsmengine"
)

func testEngine(t *testing.T) lsmengine.Engine {
	t.Helper()
	e, err := lsmengine.Open(t.TempDir(), lsmengine.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestBindAndGetRoundTrips(t *testing.T) {
	engine := testEngine(t)
	m := NewManager(engine, Config{}, nil, nil)

	c := m.Bind("mydb")
	got, err := m.Get(c.ID)
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestBindEnforcesExclusiveUse(t *testing.T) {
	engine := testEngine(t)
	m := NewManager(engine, Config{}, nil, nil)
	c := m.Bind("mydb")

	require.NoError(t, c.Bind())
	require.Error(t, c.Bind())
	c.Release()
	require.NoError(t, c.Bind())
}

func TestCloseRemovesContext(t *testing.T) {
	engine := testEngine(t)
	m := NewManager(engine, Config{}, nil, nil)
	c := m.Bind("mydb")

	require.NoError(t, m.Close(c.ID))
	_, err := m.Get(c.ID)
	require.Error(t, err)
}

func TestDumpCopiesDocumentsFromSnapshot(t *testing.T) {
	engine := testEngine(t)
	require.NoError(t, engine.Put(keycodec.EncodeDocument(1, 1), []byte("a")))
	require.NoError(t, engine.Put(keycodec.EncodeDocument(1, 2), []byte("b")))

	m := NewManager(engine, Config{}, nil, nil)
	c := m.Bind("mydb")

	p := collection.New(1, 1, collection.TypeDocument)
	var buffer []collection.ExportedDocument
	result, err := c.Dump(p, 0, 10, &buffer)
	require.NoError(t, err)
	require.Len(t, buffer, 2)
	require.False(t, result.More)
}

func TestDumpMoreReflectsRemainingRowsAcrossChunks(t *testing.T) {
	engine := testEngine(t)
	require.NoError(t, engine.Put(keycodec.EncodeDocument(1, 1), []byte("a")))
	require.NoError(t, engine.Put(keycodec.EncodeDocument(1, 2), []byte("b")))
	require.NoError(t, engine.Put(keycodec.EncodeDocument(1, 3), []byte("c")))

	m := NewManager(engine, Config{}, nil, nil)
	c := m.Bind("mydb")
	p := collection.New(1, 1, collection.TypeDocument)

	var buffer []collection.ExportedDocument
	result, err := c.Dump(p, 0, 2, &buffer)
	require.NoError(t, err)
	require.Len(t, buffer, 2)
	require.True(t, result.More)
	require.True(t, c.More())

	result, err = c.Dump(p, result.MaxTick, 2, &buffer)
	require.NoError(t, err)
	require.Len(t, buffer, 3)
	require.False(t, result.More)
	require.False(t, c.More())
}

func TestTailWalEmitsRecordsAfterFromTick(t *testing.T) {
	engine := testEngine(t)
	txn1, err := engine.BeginTransaction(lsmengine.WriteOptions{}, lsmengine.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, txn1.Put(keycodec.EncodeDocument(1, 1), []byte("a")))
	require.NoError(t, txn1.Commit())

	var records []Record
	result, err := TailWal(engine, 0, 0, func(r Record) bool {
		records = append(records, r)
		return true
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(1), records[0].CID)
	require.Equal(t, result.MaxTick, records[0].Tick)
}

func TestReaperEvictsExpiredContexts(t *testing.T) {
	engine := testEngine(t)
	m := NewManager(engine, Config{TTL: time.Millisecond, ReapInterval: 2 * time.Millisecond}, nil, nil)
	m.StartReaper()
	t.Cleanup(m.Stop)

	c := m.Bind("mydb")
	require.Eventually(t, func() bool {
		_, err := m.Get(c.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}
