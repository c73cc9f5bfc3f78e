package collection

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Frrank1/arangodb/internal/lsmengine"
	"github.com/Frrank1/arangodb/internal/storeerr"
	"github.com/Frrank1/arangodb/internal/txn"
	"github.com/Frrank1/arangodb/internal/vpack"
)

func testEngine(t *testing.T) lsmengine.Engine {
	t.Helper()
	e, err := lsmengine.Open(t.TempDir(), lsmengine.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func beginState(t *testing.T, engine lsmengine.Engine, p *Physical) (*txn.Manager, *txn.State) {
	t.Helper()
	mgr := txn.NewManager(engine, nil, nil, nil, nil)
	s, err := mgr.Begin(txn.Options{})
	require.NoError(t, err)
	s.UseCollection(p.ObjectID)
	return mgr, s
}

func TestInsertReadRoundTrips(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	mgr, s := beginState(t, engine, p)

	require.NoError(t, p.Insert(s, 10, []byte("hello")))
	v, err := p.Read(s, 10)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	require.NoError(t, mgr.Commit(context.Background(), s))
}

func TestEdgeInsertRequiresFromTo(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeEdge)
	_, s := beginState(t, engine, p)

	err := p.Insert(s, 1, []byte(`{"x":1}`))
	require.Error(t, err)
	require.True(t, storeerr.Is(err, storeerr.BadParameter))
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	idx := NewUnique(1, func(doc []byte) (vpack.Value, error) {
		return vpack.String(string(doc)), nil
	})
	p.AddIndex(idx)
	_, s := beginState(t, engine, p)

	require.NoError(t, p.Insert(s, 1, []byte("same")))
	err := p.Insert(s, 2, []byte("same"))
	require.Error(t, err)
	require.True(t, storeerr.Is(err, storeerr.UniqueConstraintViolated))
}

func TestRemoveDeletesDocumentAndIndexEntry(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	idx := NewUnique(1, func(doc []byte) (vpack.Value, error) {
		return vpack.String(string(doc)), nil
	})
	p.AddIndex(idx)
	_, s := beginState(t, engine, p)

	require.NoError(t, p.Insert(s, 1, []byte("a")))
	require.NoError(t, p.Remove(s, 1, []byte("a")))

	_, err := p.Read(s, 1)
	require.Error(t, err)

	require.NoError(t, p.Insert(s, 2, []byte("a")))
}

func TestBuildExportCopiesLiveDocuments(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	mgr, s := beginState(t, engine, p)

	require.NoError(t, p.Insert(s, 1, []byte("a")))
	require.NoError(t, p.Insert(s, 2, []byte("b")))
	require.NoError(t, mgr.Commit(context.Background(), s))

	snap := engine.NewSnapshot()
	defer snap.Close()

	export, err := p.BuildExport(snap, FieldFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, export.Rows, 2)

	cursor := NewCursor(export, 1)
	page, err := cursor.Next()
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	require.True(t, page.HasMore)
}

func TestRestoreDataIsIdempotent(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	mgr, s := beginState(t, engine, p)

	stream := `{"type":2300,"key":"k1","data":{"_key":"k1","v":1}}` + "\n"
	require.NoError(t, p.RestoreData(s, bytes.NewBufferString(stream)))
	require.NoError(t, mgr.Commit(context.Background(), s))

	_, s2 := beginState(t, engine, p)
	require.NoError(t, p.RestoreData(s2, bytes.NewBufferString(stream)))
}

type stubWriteGuard struct{ err error }

func (g stubWriteGuard) CheckBeforeWrite(uint64) error { return g.err }

func TestRestoreDataRejectedByWriteGuard(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	p.SetWriteGuard(stubWriteGuard{err: storeerr.NewInternal("collection: disk pressure", nil)})
	_, s := beginState(t, engine, p)

	stream := `{"type":2300,"key":"k1","data":{"_key":"k1","v":1}}` + "\n"
	err := p.RestoreData(s, bytes.NewBufferString(stream))
	require.Error(t, err)
	require.True(t, storeerr.Is(err, storeerr.Internal))
}

// TestRestoreDataInsertThenRemoveLeavesNoDocument replays the
// insert-then-remove restore batch: an insert for "x"
// followed, in the same batch, by a remove for "x". Only the latest
// marker per key survives, so the net effect is that "x" is absent.
func TestRestoreDataInsertThenRemoveLeavesNoDocument(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	_, s := beginState(t, engine, p)

	stream := `{"type":2300,"key":"x","data":{"_key":"x","v":1}}` + "\n" +
		`{"type":2302,"key":"x"}` + "\n"
	require.NoError(t, p.RestoreData(s, bytes.NewBufferString(stream)))

	_, err := p.Read(s, hashKey("x"))
	require.Error(t, err)
	require.True(t, storeerr.Is(err, storeerr.NotFound))
}

// TestRestoreDataLatestDocumentMarkerWins replays two document markers
// for the same key; only the latest in stream order should survive.
func TestRestoreDataLatestDocumentMarkerWins(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeDocument)
	_, s := beginState(t, engine, p)

	stream := `{"type":2300,"key":"x","data":{"_key":"x","v":1}}` + "\n" +
		`{"type":2300,"key":"x","data":{"_key":"x","v":2}}` + "\n"
	require.NoError(t, p.RestoreData(s, bytes.NewBufferString(stream)))

	doc, err := p.Read(s, hashKey("x"))
	require.NoError(t, err)
	require.JSONEq(t, `{"_key":"x","v":2}`, string(doc))
}

// TestRestoreDataMapsLegacyEdgeMarkerToDocument checks the legacy 2301
// edge-marker code is treated identically to 2300.
func TestRestoreDataMapsLegacyEdgeMarkerToDocument(t *testing.T) {
	engine := testEngine(t)
	p := New(1, 1, TypeEdge)
	_, s := beginState(t, engine, p)

	stream := `{"type":2301,"key":"e1","data":{"_key":"e1","_from":"a/1","_to":"b/1"}}` + "\n"
	require.NoError(t, p.RestoreData(s, bytes.NewBufferString(stream)))

	_, err := p.Read(s, hashKey("e1"))
	require.NoError(t, err)
}
