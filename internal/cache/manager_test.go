package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := New(Config{GlobalHardLimit: 1 << 20, RebalancingGracePeriod: time.Millisecond}, nil, nil)
	t.Cleanup(func() { _ = m.Shutdown(time.Second) })
	return m
}

func TestCreateAndDestroyCacheTracksGlobalAllocation(t *testing.T) {
	m := testManager(t)
	c, err := m.CreateCache(TypePlain, 1024, 0, 16)
	require.NoError(t, err)
	require.Equal(t, int64(1024), m.GlobalAllocation())

	m.DestroyCache(c.ID())
	require.Equal(t, int64(0), m.GlobalAllocation())
}

func TestCreateCacheRefusesPastHardLimit(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateCache(TypePlain, 2<<20, 0, 16)
	require.Error(t, err)
}

func TestGetPutRoundTripsThroughTable(t *testing.T) {
	m := testManager(t)
	c, err := m.CreateCache(TypePlain, 1024, 0, 16)
	require.NoError(t, err)

	c.Put([]byte("k"), []byte("v"), nil)
	v, ok := c.Get([]byte("k"), nil)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestPutDeferredForWriteTransaction(t *testing.T) {
	m := testManager(t)
	c, err := m.CreateCache(TypePlain, 1024, 0, 16)
	require.NoError(t, err)

	txn := m.BeginTransaction(false)
	c.Put([]byte("k"), []byte("v"), txn)
	_, ok := c.Get([]byte("k"), nil)
	require.False(t, ok)
	m.EndTransaction(txn)
}

func TestPutVisibleForReadOnlyTransaction(t *testing.T) {
	m := testManager(t)
	c, err := m.CreateCache(TypePlain, 1024, 0, 16)
	require.NoError(t, err)

	txn := m.BeginTransaction(true)
	c.Put([]byte("k"), []byte("v"), txn)
	_, ok := c.Get([]byte("k"), nil)
	require.True(t, ok)
	m.EndTransaction(txn)
}

func TestDestroyCacheReturnsTableToSpareStack(t *testing.T) {
	m := testManager(t)
	c1, err := m.CreateCache(TypePlain, 1024, 0, 16)
	require.NoError(t, err)
	logSize := c1.currentTable().LogSize
	m.DestroyCache(c1.ID())

	require.Equal(t, 1, len(m.spareStacks[logSize]))

	c2, err := m.CreateCache(TypePlain, 1024, 0, 16)
	require.NoError(t, err)
	require.Equal(t, 0, len(m.spareStacks[logSize]))
	require.Equal(t, 0, c2.Len())
}

func TestRequestGrowDeclinedAboveHighwater(t *testing.T) {
	m := New(Config{GlobalHardLimit: 100, RebalancingGracePeriod: time.Millisecond}, nil, nil)
	t.Cleanup(func() { _ = m.Shutdown(time.Second) })

	c, err := m.CreateCache(TypePlain, 10, 0, 4)
	require.NoError(t, err)

	granted, _ := m.RequestGrow(c, 85)
	require.False(t, granted)
}

func TestRebalanceIsNoopWithoutCaches(t *testing.T) {
	m := testManager(t)
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.Rebalance(context.Background()))
}

func TestRebalanceMigratesHotCacheUp(t *testing.T) {
	m := testManager(t)
	c, err := m.CreateCache(TypePlain, 1024, 0, 1)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		c.Put([]byte{byte(i)}, []byte{byte(i)}, nil)
		_, _ = c.Get([]byte{byte(i)}, nil)
	}

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.Rebalance(context.Background()))
}

func TestResizeShrinksHardLimit(t *testing.T) {
	m := testManager(t)
	_, err := m.CreateCache(TypePlain, 512, 0, 16)
	require.NoError(t, err)

	require.NoError(t, m.Resize(context.Background(), 256))
	require.Equal(t, int64(256), m.cfg.GlobalHardLimit)
}
