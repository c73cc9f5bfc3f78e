package diskmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Frrank1/arangodb/internal/lsmengine"
)

func testEngine(t *testing.T) lsmengine.Engine {
	t.Helper()
	e, err := lsmengine.Open(t.TempDir(), lsmengine.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewRequiresEngineAndBudget(t *testing.T) {
	_, err := NewDiskManager(&DiskManagerConfig{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewDiskManager(&DiskManagerConfig{Engine: testEngine(t)}, zap.NewNop())
	require.Error(t, err)
}

func TestCheckBeforeWriteAllowsSmallWriteUnderThresholds(t *testing.T) {
	cfg := DefaultConfig(testEngine(t), 1<<30)
	cfg.CheckInterval = time.Hour
	dm, err := NewDiskManager(cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, dm.CheckBeforeWrite(1024))
}

func TestGetDiskUsageReportsCachedStats(t *testing.T) {
	cfg := DefaultConfig(testEngine(t), 1<<30)
	cfg.CheckInterval = time.Hour
	dm, err := NewDiskManager(cfg, zap.NewNop())
	require.NoError(t, err)

	stats := dm.GetDiskUsage()
	require.False(t, stats.IsCircuitBroken)
	require.False(t, stats.LastCheck.IsZero())
}

func TestCheckBeforeWriteEngagesCircuitBreakerOverBudget(t *testing.T) {
	engine := testEngine(t)
	require.NoError(t, engine.Put([]byte("k"), make([]byte, 4096)))

	cfg := DefaultConfig(engine, 1)
	cfg.CheckInterval = time.Hour
	dm, err := NewDiskManager(cfg, zap.NewNop())
	require.NoError(t, err)

	err = dm.CheckBeforeWrite(1)
	require.Error(t, err)
	dse, ok := err.(*DiskSpaceError)
	require.True(t, ok)
	require.True(t, dse.IsCircuitBroken)
}
